// Package risk implements Kite's risk scoring engine.
//
// Architecture:
//
//	The engine is a pure function of its inputs: identifier type and value,
//	the free-text description, the prior report count, and an optional AI
//	confidence. It does no I/O and holds no state; callers fetch context
//	first and score afterwards.
//
// Scoring:
//
//	Four components contribute independently capped sub-scores:
//	keywords (max 30), identifier patterns (max 25), report frequency
//	(max 25) and AI confidence (max 20). The total is clamped to [0, 100]
//	and mapped to a discrete level. Every contributing signal emits a
//	human-readable factor so reviewers can see why a score was assigned.
package risk

import (
	"fmt"
	"strings"

	"github.com/opensource-intel/kite/internal/domain"
)

// Per-component caps. The caps sum to 100, so the final clamp is a safety
// net rather than a normal-path constraint.
const (
	maxKeywordScore    = 30
	maxIdentifierScore = 25
	maxFrequencyScore  = 25
	maxAIScore         = 20
)

// Level thresholds, evaluated highest-first.
const (
	thresholdCritical = 75
	thresholdHigh     = 50
	thresholdMedium   = 25
)

// noFactorsSentinel is emitted when no component produced a factor.
const noFactorsSentinel = "No significant risk factors detected"

// Input is everything the engine needs for one assessment.
type Input struct {
	IdentifierType  domain.IdentifierType
	IdentifierValue string
	Description     string

	// ReportCount is the number of prior reports for the same normalized
	// identifier, excluding the one being scored.
	ReportCount int

	// AIConfidence is the collaborator's confidence, present only when the
	// collaborator flagged the content as a scam. Nil means absent.
	AIConfidence *float64
}

// Assess computes a complete risk assessment for the given input.
func Assess(in Input) domain.RiskAssessment {
	var factors []string
	total := 0

	kwScore, kwFactors := KeywordScore(in.Description)
	total += kwScore
	factors = append(factors, kwFactors...)

	idScore, idFactors := IdentifierScore(in.IdentifierType, in.IdentifierValue)
	total += idScore
	factors = append(factors, idFactors...)

	freqScore, freqFactors := FrequencyScore(in.ReportCount)
	total += freqScore
	factors = append(factors, freqFactors...)

	aiScore, aiFactors := AIConfidenceScore(in.AIConfidence)
	total += aiScore
	factors = append(factors, aiFactors...)

	total = clamp(total, 0, 100)

	if len(factors) == 0 {
		factors = []string{noFactorsSentinel}
	}

	return domain.RiskAssessment{
		Score:   total,
		Level:   LevelForScore(total),
		Factors: factors,
	}
}

// KeywordScore scores the description against the scam keyword table.
// Each distinct matched keyword is worth 5 points, capped at 30. The factor
// lists the first five matches, with an ellipsis when more were found.
func KeywordScore(description string) (int, []string) {
	lower := strings.ToLower(description)

	var found []string
	for _, kw := range scamKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}

	if len(found) == 0 {
		return 0, nil
	}

	score := clamp(len(found)*5, 0, maxKeywordScore)

	shown := found
	ellipsis := ""
	if len(found) > 5 {
		shown = found[:5]
		ellipsis = "..."
	}
	factor := fmt.Sprintf("Contains scam keywords: %s%s", strings.Join(shown, ", "), ellipsis)

	return score, []string{factor}
}

// IdentifierScore scores the identifier value by type-specific pattern
// heuristics. Sub-rule bonuses within a type are additive; the result is
// capped at 25.
func IdentifierScore(idType domain.IdentifierType, value string) (int, []string) {
	value = domain.NormalizeIdentifier(value)

	var score int
	var factors []string

	switch idType {
	case domain.IdentifierPhone:
		score, factors = scorePhone(value)
	case domain.IdentifierUPI:
		score, factors = scoreUPI(value)
	case domain.IdentifierWebsite:
		score, factors = scoreWebsite(value)
	case domain.IdentifierEmail:
		score, factors = scoreEmail(value)
	}

	return clamp(score, 0, maxIdentifierScore), factors
}

func scorePhone(value string) (int, []string) {
	score := 0
	var factors []string

	stripped := strings.ReplaceAll(value, " ", "")
	for _, rule := range spamPhonePrefixes {
		prefix := strings.ReplaceAll(strings.ToLower(rule.prefix), " ", "")
		if strings.HasPrefix(stripped, prefix) {
			score += rule.bonus
			factors = append(factors, fmt.Sprintf(rule.factor, rule.prefix))
			break
		}
	}

	if strings.HasPrefix(value, "+") && !strings.HasPrefix(value, "+91") {
		score += internationalPhoneRule.bonus
		factors = append(factors, internationalPhoneRule.factor)
	}

	return score, factors
}

func scoreUPI(value string) (int, []string) {
	score := 0
	var factors []string

	for _, rule := range suspiciousUPIPatterns {
		if rule.re.MatchString(value) {
			score += rule.bonus
			factors = append(factors, rule.factor)
			break
		}
	}

	if randomUPIHandle.re.MatchString(value) {
		score += randomUPIHandle.bonus
		factors = append(factors, randomUPIHandle.factor)
	}

	return score, factors
}

func scoreWebsite(value string) (int, []string) {
	score := 0
	var factors []string

	if !strings.HasPrefix(value, "http") {
		value = "http://" + value
	}

	for _, rule := range suspiciousTLDs {
		if strings.Contains(value, rule.marker) {
			score += rule.bonus
			factors = append(factors, fmt.Sprintf(rule.factor, rule.marker))
			break
		}
	}

	for _, rule := range urlShorteners {
		if strings.Contains(value, rule.marker) {
			score += rule.bonus
			factors = append(factors, rule.factor)
			break
		}
	}

	return score, factors
}

func scoreEmail(value string) (int, []string) {
	if officialEntityPattern.MatchString(value) && freeMailPattern.MatchString(value) {
		return emailImpersonationBonus, []string{emailImpersonationFactor}
	}
	return 0, nil
}

// FrequencyScore maps a prior-report count to a sub-score. Buckets are
// deliberately non-linear: a second report is a weak signal, ten are not.
func FrequencyScore(count int) (int, []string) {
	switch {
	case count <= 0:
		return 0, nil
	case count == 1:
		return 5, []string{"Previously reported once"}
	case count <= 3:
		return 15, []string{fmt.Sprintf("Reported %d times before", count)}
	case count <= 10:
		return 20, []string{fmt.Sprintf("Frequently reported (%d times)", count)}
	default:
		return 25, []string{fmt.Sprintf("Heavily reported (%d times) — likely confirmed scam", count)}
	}
}

// AIConfidenceScore maps an optional AI confidence to a sub-score. A nil
// confidence (AI absent, or did not flag a scam) contributes nothing and no
// factor. A present-but-low confidence contributes 0 points yet still emits
// a factor, so the reader can tell "AI looked and saw little" apart from
// the silent-absence cases.
func AIConfidenceScore(confidence *float64) (int, []string) {
	if confidence == nil {
		return 0, nil
	}

	c := *confidence
	pct := fmt.Sprintf("%.0f%%", c*100)

	switch {
	case c >= 0.9:
		return 20, []string{fmt.Sprintf("AI highly confident this is a scam (%s)", pct)}
	case c >= 0.7:
		return 15, []string{fmt.Sprintf("AI moderately confident this is a scam (%s)", pct)}
	case c >= 0.5:
		return 10, []string{fmt.Sprintf("AI suspects this may be a scam (%s)", pct)}
	case c >= 0.3:
		return 5, []string{fmt.Sprintf("AI sees some suspicious signals (%s)", pct)}
	default:
		return 0, []string{fmt.Sprintf("AI considers this low risk (%s)", pct)}
	}
}

// LevelForScore maps a numeric score to a discrete risk level.
func LevelForScore(score int) domain.RiskLevel {
	switch {
	case score >= thresholdCritical:
		return domain.LevelCritical
	case score >= thresholdHigh:
		return domain.LevelHigh
	case score >= thresholdMedium:
		return domain.LevelMedium
	default:
		return domain.LevelLow
	}
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
