package domain

import "context"

// AIAnalysis is the structured verdict from the AI collaborator. When the
// collaborator is unavailable or returns garbage, a fallback value with a
// non-empty Error is produced instead of a failure.
type AIAnalysis struct {
	IsScam      bool    `json:"is_scam"`
	Confidence  float64 `json:"confidence"`
	ScamType    string  `json:"scam_type"`
	Explanation string  `json:"explanation"`
	Advice      string  `json:"advice"`
	Error       string  `json:"error,omitempty"`
}

// Classifier is the external AI collaborator. Classify never returns an
// error: any collaborator-side failure (missing configuration, transport
// error, malformed response) degrades to a fallback AIAnalysis so the
// surrounding workflow always completes.
type Classifier interface {
	Classify(ctx context.Context, description string, idType IdentifierType, idValue string) *AIAnalysis

	// Enabled reports whether the collaborator is actually configured.
	// A disabled classifier still answers Classify with a fallback.
	Enabled() bool
}

// IntelConfig holds configuration for the AI collaborator. Credentials are
// passed explicitly at construction time, never read from ambient state.
type IntelConfig struct {
	// APIKey for the Gemini API. Empty disables AI analysis.
	APIKey string

	// Model is the Gemini model identifier.
	Model string

	// TimeoutSecs bounds each classification round-trip.
	TimeoutSecs int

	// BaseURL overrides the API endpoint (used in tests).
	BaseURL string
}
