package domain

import "time"

// WatchRule is an operator-defined alert condition evaluated against every
// scored report. Rules decide alerting only; they never feed back into the
// risk score.
type WatchRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CEL expression over score, level, report_count, identifier_type,
	// category, ai_is_scam and ai_confidence. Must evaluate to bool.
	Expression string `json:"expression"`

	// Whether rule is active
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WatchMatch records a watch rule that fired for a report.
type WatchMatch struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Reason   string `json:"reason,omitempty"`
}
