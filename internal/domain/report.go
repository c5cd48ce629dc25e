// Package domain defines the core types and interfaces for Kite.
package domain

import (
	"strings"
	"time"
)

// IdentifierType classifies the kind of identifier being reported.
type IdentifierType string

const (
	IdentifierPhone   IdentifierType = "phone"
	IdentifierUPI     IdentifierType = "upi"
	IdentifierWebsite IdentifierType = "website"
	IdentifierEmail   IdentifierType = "email"
	IdentifierOther   IdentifierType = "other"
)

// Valid reports whether t is one of the supported identifier types.
func (t IdentifierType) Valid() bool {
	switch t {
	case IdentifierPhone, IdentifierUPI, IdentifierWebsite, IdentifierEmail, IdentifierOther:
		return true
	}
	return false
}

// RiskLevel is the discrete bucket derived from a risk score.
type RiskLevel string

const (
	LevelLow      RiskLevel = "LOW"
	LevelMedium   RiskLevel = "MEDIUM"
	LevelHigh     RiskLevel = "HIGH"
	LevelCritical RiskLevel = "CRITICAL"
)

// NormalizeIdentifier returns the canonical form of an identifier value.
// The normalized form is the only form ever stored or compared.
func NormalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// FraudReport is a single submitted report. Reports are append-only:
// once created they are never updated or deleted, and the risk score is
// never recomputed retroactively.
type FraudReport struct {
	ID              int64          `json:"id"`
	IdentifierType  IdentifierType `json:"identifier_type"`
	IdentifierValue string         `json:"identifier_value"`
	Description     string         `json:"description"`
	Category        string         `json:"category"`
	RiskScore       int            `json:"risk_score"`
	RiskLevel       RiskLevel      `json:"risk_level"`
	RiskFactors     []string       `json:"risk_factors"`
	AIAnalysis      *AIAnalysis    `json:"ai_analysis,omitempty"`
	ReporterName    string         `json:"reporter_name"`
	ReportedAt      time.Time      `json:"reported_at"`
}

// RiskAssessment is the result of one scoring-engine invocation.
// It is produced fresh on every submission or lookup and never cached.
type RiskAssessment struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors"`
}

// ReportRequest is the payload for submitting a new fraud report.
type ReportRequest struct {
	IdentifierType  IdentifierType `json:"identifier_type" validate:"required,oneof=phone upi website email other"`
	IdentifierValue string         `json:"identifier_value" validate:"required,min=2,max=500"`
	Description     string         `json:"description" validate:"required,min=10,max=5000"`
	ReporterName    string         `json:"reporter_name" validate:"max=100"`
}

// ToReport converts a validated request into a report skeleton with the
// identifier normalized and defaults applied. Scoring fields are filled
// in by the submission workflow.
func (r *ReportRequest) ToReport() *FraudReport {
	reporter := strings.TrimSpace(r.ReporterName)
	if reporter == "" {
		reporter = "Anonymous"
	}
	return &FraudReport{
		IdentifierType:  r.IdentifierType,
		IdentifierValue: NormalizeIdentifier(r.IdentifierValue),
		Description:     r.Description,
		Category:        "unknown",
		RiskLevel:       LevelLow,
		ReporterName:    reporter,
		ReportedAt:      time.Now().UTC(),
	}
}

// AnalysisRequest asks for an AI classification without creating a report.
type AnalysisRequest struct {
	Message         string         `json:"message" validate:"required,min=5,max=5000"`
	IdentifierType  IdentifierType `json:"identifier_type,omitempty" validate:"omitempty,oneof=phone upi website email other"`
	IdentifierValue string         `json:"identifier_value,omitempty" validate:"omitempty,max=500"`
}

// SubmitResult is returned to the caller after a successful submission.
type SubmitResult struct {
	ReportID   int64          `json:"report_id"`
	Risk       RiskAssessment `json:"risk"`
	AIAnalysis AIAnalysis     `json:"ai_analysis"`
}

// LookupResult is the outcome of an identifier lookup. An identifier with
// no reports yields ReportCount 0 and a nil Risk; that is not an error.
type LookupResult struct {
	Identifier  string          `json:"identifier"`
	ReportCount int             `json:"report_count"`
	Risk        *RiskAssessment `json:"risk,omitempty"`
	Reports     []*FraudReport  `json:"reports"`
}
