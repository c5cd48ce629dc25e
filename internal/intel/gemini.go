// Package intel integrates the Gemini API for AI-powered scam analysis.
// Every failure path degrades to a fallback verdict with a populated Error
// field; callers never see a transport or parse error directly.
package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/opensource-intel/kite/internal/domain"
)

const (
	defaultModel   = "gemini-1.5-flash"
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultTimeout = 30 * time.Second
)

const systemPrompt = `You are an expert fraud and scam analyst specializing in Indian scams and cybercrimes.
Your job is to analyze suspicious messages, phone numbers, UPI IDs, websites, and emails to determine if they are part of a scam.

You are deeply familiar with common Indian scam patterns including:
- UPI fraud (fake refund requests, QR code scams, collect requests)
- KYC update scams (fake bank/Paytm/PhonePe KYC messages)
- OTP theft (social engineering to steal one-time passwords)
- Fake job/work-from-home offers
- Lottery/prize scams
- Loan approval scams
- Customs/courier parcel scams
- Digital arrest scams (fake police/CBI/narcotics threats)
- Investment/trading/crypto scams
- Sextortion and blackmail schemes
- Fake customer care numbers
- SIM swap fraud
- Aadhaar/PAN card misuse threats

Analyze the given content and respond ONLY with a valid JSON object (no markdown, no code fences) in this exact format:
{
    "is_scam": true/false,
    "confidence": 0.0 to 1.0,
    "scam_type": "category name",
    "explanation": "detailed explanation of why this is or is not a scam",
    "advice": "what the person should do"
}
`

// GeminiClassifier implements domain.Classifier against the Gemini
// generateContent REST API.
type GeminiClassifier struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewGeminiClassifier creates a classifier from configuration. An empty
// API key yields a disabled classifier that still answers with fallbacks.
func NewGeminiClassifier(cfg domain.IntelConfig, logger *slog.Logger) *GeminiClassifier {
	if logger == nil {
		logger = slog.Default()
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := defaultTimeout
	if cfg.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}

	return &GeminiClassifier{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Enabled reports whether an API key is configured.
func (g *GeminiClassifier) Enabled() bool {
	return g.apiKey != ""
}

// request/response shapes for the generateContent endpoint

type generateRequest struct {
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	Contents          []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Classify analyzes a description (and optional identifier context) for
// scam indicators. It never returns an error: unavailability, transport
// failures and malformed responses all produce fallback verdicts.
func (g *GeminiClassifier) Classify(ctx context.Context, description string, idType domain.IdentifierType, idValue string) *domain.AIAnalysis {
	if !g.Enabled() {
		return &domain.AIAnalysis{
			ScamType:    "unknown",
			Explanation: "AI analysis unavailable — no API key configured.",
			Advice:      "Set the GEMINI_API_KEY environment variable to enable AI analysis.",
			Error:       "No GEMINI_API_KEY set",
		}
	}

	var prompt strings.Builder
	prompt.WriteString("Analyze the following for potential scam/fraud:\n\n")
	if idType != "" && idValue != "" {
		fmt.Fprintf(&prompt, "Identifier Type: %s\n", idType)
		fmt.Fprintf(&prompt, "Identifier Value: %s\n\n", idValue)
	}
	prompt.WriteString("Content/Description:\n")
	prompt.WriteString(description)

	text, err := g.generate(ctx, prompt.String())
	if err != nil {
		g.logger.Warn("gemini request failed", "error", err)
		return &domain.AIAnalysis{
			ScamType:    "unknown",
			Explanation: fmt.Sprintf("AI analysis failed: %v", err),
			Advice:      "The AI service is temporarily unavailable. Risk score is based on pattern matching only.",
			Error:       err.Error(),
		}
	}

	return parseVerdict(text)
}

func (g *GeminiClassifier) generate(ctx context.Context, userPrompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemPrompt}}},
		Contents:          []content{{Parts: []part{{Text: userPrompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API returned status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("invalid API response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty API response")
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// parseVerdict parses the model's JSON reply. Markdown code fences are
// stripped first since models add them despite instructions.
func parseVerdict(text string) *domain.AIAnalysis {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var verdict struct {
		IsScam      bool    `json:"is_scam"`
		Confidence  float64 `json:"confidence"`
		ScamType    string  `json:"scam_type"`
		Explanation string  `json:"explanation"`
		Advice      string  `json:"advice"`
	}

	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		snippet := cleaned
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return &domain.AIAnalysis{
			ScamType:    "unknown",
			Explanation: snippet,
			Advice:      "Could not parse AI response. Please try again.",
			Error:       fmt.Sprintf("Parse error: %v", err),
		}
	}

	scamType := verdict.ScamType
	if scamType == "" {
		scamType = "unknown"
	}

	return &domain.AIAnalysis{
		IsScam:      verdict.IsScam,
		Confidence:  verdict.Confidence,
		ScamType:    scamType,
		Explanation: verdict.Explanation,
		Advice:      verdict.Advice,
	}
}
