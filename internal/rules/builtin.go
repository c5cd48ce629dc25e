package rules

import "github.com/opensource-intel/kite/internal/domain"

// BuiltinRules returns the watch rules seeded on first start. Operators can
// disable or delete them like any other rule.
func BuiltinRules() []*domain.WatchRule {
	return []*domain.WatchRule{
		{
			ID:          "critical-risk-001",
			Name:        "Critical risk report",
			Description: "Alerts whenever a report scores in the critical band",
			Expression:  "score >= 75",
			Enabled:     true,
		},
	}
}
