package risk

import (
	"strings"
	"testing"

	"github.com/opensource-intel/kite/internal/domain"
)

func TestKeywordScore(t *testing.T) {
	t.Run("NoKeywords", func(t *testing.T) {
		score, factors := KeywordScore("a perfectly ordinary message about the weather")
		if score != 0 {
			t.Errorf("expected score 0, got %d", score)
		}
		if len(factors) != 0 {
			t.Errorf("expected no factors, got %v", factors)
		}
	})

	t.Run("FiveDistinctKeywords", func(t *testing.T) {
		// urgent, blocked, verify, kyc, upi
		score, factors := KeywordScore("URGENT! You will be blocked, verify KYC now or pay via UPI")
		if score != 25 {
			t.Errorf("expected score 25 for 5 keywords, got %d", score)
		}
		if len(factors) != 1 {
			t.Fatalf("expected 1 factor, got %d", len(factors))
		}
		if !strings.HasPrefix(factors[0], "Contains scam keywords: ") {
			t.Errorf("unexpected factor: %q", factors[0])
		}
		if strings.Contains(factors[0], "...") {
			t.Errorf("did not expect ellipsis for exactly 5 keywords: %q", factors[0])
		}
	})

	t.Run("CappedAt30", func(t *testing.T) {
		// urgent, account, blocked, verify, kyc, upi (6 distinct)
		score, factors := KeywordScore("URGENT! Your account will be blocked, verify KYC now or pay via UPI")
		if score != 30 {
			t.Errorf("expected capped score 30, got %d", score)
		}
		if !strings.Contains(factors[0], "...") {
			t.Errorf("expected ellipsis when more than 5 keywords matched: %q", factors[0])
		}
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		low, _ := KeywordScore("lottery winner")
		up, _ := KeywordScore("LOTTERY WINNER")
		if low != up {
			t.Errorf("case sensitivity detected: %d vs %d", low, up)
		}
	})

	t.Run("MonotonicInMatches", func(t *testing.T) {
		one, _ := KeywordScore("lottery")
		two, _ := KeywordScore("lottery prize")
		three, _ := KeywordScore("lottery prize winner")
		if !(one <= two && two <= three) {
			t.Errorf("scores not monotonic: %d, %d, %d", one, two, three)
		}
	})
}

func TestIdentifierScorePhone(t *testing.T) {
	t.Run("SpamPrefixWithCountryCode", func(t *testing.T) {
		score, factors := IdentifierScore(domain.IdentifierPhone, "+91 140 1234567")
		if score != 15 {
			t.Errorf("expected 15, got %d", score)
		}
		if len(factors) != 1 || !strings.Contains(factors[0], "+91 140") {
			t.Errorf("expected spam prefix factor, got %v", factors)
		}
	})

	t.Run("BareTelemarketingPrefix", func(t *testing.T) {
		score, _ := IdentifierScore(domain.IdentifierPhone, "1401234567")
		if score != 15 {
			t.Errorf("expected 15, got %d", score)
		}
	})

	t.Run("InternationalNumber", func(t *testing.T) {
		score, factors := IdentifierScore(domain.IdentifierPhone, "+44 20 7946 0958")
		if score != 10 {
			t.Errorf("expected 10, got %d", score)
		}
		if len(factors) != 1 || factors[0] != "International number (non-Indian)" {
			t.Errorf("expected international factor, got %v", factors)
		}
	})

	t.Run("IndianNumberNoBonus", func(t *testing.T) {
		score, factors := IdentifierScore(domain.IdentifierPhone, "+91 98765 43210")
		if score != 0 {
			t.Errorf("expected 0, got %d", score)
		}
		if len(factors) != 0 {
			t.Errorf("expected no factors, got %v", factors)
		}
	})
}

func TestIdentifierScoreUPI(t *testing.T) {
	t.Run("ImpersonationPattern", func(t *testing.T) {
		score, factors := IdentifierScore(domain.IdentifierUPI, "paytm.support@okaxis")
		if score != 15 {
			t.Errorf("expected 15, got %d", score)
		}
		if len(factors) != 1 || factors[0] != "UPI ID matches suspicious pattern" {
			t.Errorf("unexpected factors: %v", factors)
		}
	})

	t.Run("FirstMatchWins", func(t *testing.T) {
		// Matches both the refund and support patterns; only one bonus applies.
		score, factors := IdentifierScore(domain.IdentifierUPI, "refund.support@ybl")
		if score != 15 {
			t.Errorf("expected 15, got %d", score)
		}
		if len(factors) != 1 {
			t.Errorf("expected exactly one pattern factor, got %v", factors)
		}
	})

	t.Run("RandomHandle", func(t *testing.T) {
		score, factors := IdentifierScore(domain.IdentifierUPI, "x9f3k2m8q1z@upi")
		if score != 5 {
			t.Errorf("expected 5, got %d", score)
		}
		if len(factors) != 1 || factors[0] != "UPI ID appears randomly generated" {
			t.Errorf("unexpected factors: %v", factors)
		}
	})

	t.Run("PatternPlusRandomHandle", func(t *testing.T) {
		score, factors := IdentifierScore(domain.IdentifierUPI, "winner12345@upi")
		if score != 20 {
			t.Errorf("expected 20 (15 + 5), got %d", score)
		}
		if len(factors) != 2 {
			t.Errorf("expected 2 factors, got %v", factors)
		}
	})

	t.Run("CleanHandle", func(t *testing.T) {
		// Bank names in the PSP suffix do not trigger the patterns; they
		// require the term before the @.
		score, factors := IdentifierScore(domain.IdentifierUPI, "ravi@oksbi")
		if score != 0 || len(factors) != 0 {
			t.Errorf("expected 0 for clean handle, got %d %v", score, factors)
		}
	})
}

func TestIdentifierScoreWebsite(t *testing.T) {
	t.Run("SuspiciousTLD", func(t *testing.T) {
		score, factors := IdentifierScore(domain.IdentifierWebsite, "free-gift-card.xyz")
		if score != 15 {
			t.Errorf("expected 15, got %d", score)
		}
		if len(factors) != 1 || !strings.Contains(factors[0], ".xyz") {
			t.Errorf("expected TLD factor, got %v", factors)
		}
	})

	t.Run("URLShortener", func(t *testing.T) {
		score, factors := IdentifierScore(domain.IdentifierWebsite, "bit.ly/3xYzAbc")
		if score != 10 {
			t.Errorf("expected 10, got %d", score)
		}
		if len(factors) != 1 {
			t.Errorf("expected shortener factor, got %v", factors)
		}
	})

	t.Run("TLDAndShortener", func(t *testing.T) {
		score, factors := IdentifierScore(domain.IdentifierWebsite, "prize.xyz/r?u=bit.ly/x")
		if score != 25 {
			t.Errorf("expected 25 (15 + 10), got %d", score)
		}
		if len(factors) != 2 {
			t.Errorf("expected 2 factors, got %v", factors)
		}
	})

	t.Run("SchemePrefixDoesNotMatter", func(t *testing.T) {
		bare, _ := IdentifierScore(domain.IdentifierWebsite, "scam.tk")
		schemed, _ := IdentifierScore(domain.IdentifierWebsite, "https://scam.tk")
		if bare != schemed {
			t.Errorf("scheme changed the score: %d vs %d", bare, schemed)
		}
	})

	t.Run("OrdinaryDomain", func(t *testing.T) {
		score, factors := IdentifierScore(domain.IdentifierWebsite, "example.com")
		if score != 0 || len(factors) != 0 {
			t.Errorf("expected 0, got %d %v", score, factors)
		}
	})
}

func TestIdentifierScoreEmail(t *testing.T) {
	t.Run("ImpersonationOnFreeMail", func(t *testing.T) {
		score, factors := IdentifierScore(domain.IdentifierEmail, "sbi.support@gmail.com")
		if score != 20 {
			t.Errorf("expected 20, got %d", score)
		}
		if len(factors) != 1 || factors[0] != "Email impersonates official entity using free email service" {
			t.Errorf("unexpected factors: %v", factors)
		}
	})

	t.Run("OfficialEntityOnOwnDomain", func(t *testing.T) {
		score, _ := IdentifierScore(domain.IdentifierEmail, "support@sbi.co.in")
		if score != 0 {
			t.Errorf("expected 0 without a free-mail host, got %d", score)
		}
	})

	t.Run("FreeMailWithoutEntity", func(t *testing.T) {
		score, _ := IdentifierScore(domain.IdentifierEmail, "ravi.kumar@gmail.com")
		if score != 0 {
			t.Errorf("expected 0 without an official-entity term, got %d", score)
		}
	})
}

func TestIdentifierScoreOther(t *testing.T) {
	score, factors := IdentifierScore(domain.IdentifierOther, "whatever value 140 bit.ly")
	if score != 0 || len(factors) != 0 {
		t.Errorf("expected no scoring for type other, got %d %v", score, factors)
	}
}

func TestIdentifierScoreNeverExceedsCap(t *testing.T) {
	// Every website sub-rule firing at once still caps at 25.
	score, _ := IdentifierScore(domain.IdentifierWebsite, "lucky.xyz.top/bit.ly/tinyurl")
	if score > 25 {
		t.Errorf("identifier score %d exceeds cap 25", score)
	}
}

func TestFrequencyScoreBuckets(t *testing.T) {
	cases := []struct {
		count int
		want  int
	}{
		{0, 0},
		{1, 5},
		{2, 15},
		{3, 15},
		{4, 20},
		{10, 20},
		{11, 25},
		{100, 25},
	}

	for _, tc := range cases {
		got, _ := FrequencyScore(tc.count)
		if got != tc.want {
			t.Errorf("count %d: expected %d, got %d", tc.count, tc.want, got)
		}
	}

	t.Run("ZeroCountHasNoFactor", func(t *testing.T) {
		_, factors := FrequencyScore(0)
		if len(factors) != 0 {
			t.Errorf("expected no factor for zero count, got %v", factors)
		}
	})

	t.Run("FactorsMentionCount", func(t *testing.T) {
		_, factors := FrequencyScore(7)
		if len(factors) != 1 || !strings.Contains(factors[0], "7") {
			t.Errorf("expected count in factor, got %v", factors)
		}
	})
}

func TestAIConfidenceScoreBuckets(t *testing.T) {
	conf := func(v float64) *float64 { return &v }

	cases := []struct {
		confidence *float64
		want       int
	}{
		{nil, 0},
		{conf(0.0), 0},
		{conf(0.29), 0},
		{conf(0.30), 5},
		{conf(0.49), 5},
		{conf(0.50), 10},
		{conf(0.69), 10},
		{conf(0.70), 15},
		{conf(0.89), 15},
		{conf(0.90), 20},
		{conf(1.0), 20},
	}

	for _, tc := range cases {
		got, _ := AIConfidenceScore(tc.confidence)
		if got != tc.want {
			if tc.confidence == nil {
				t.Errorf("confidence nil: expected %d, got %d", tc.want, got)
			} else {
				t.Errorf("confidence %.2f: expected %d, got %d", *tc.confidence, tc.want, got)
			}
		}
	}

	t.Run("AbsentEmitsNoFactor", func(t *testing.T) {
		_, factors := AIConfidenceScore(nil)
		if len(factors) != 0 {
			t.Errorf("expected no factor when confidence absent, got %v", factors)
		}
	})

	t.Run("LowConfidenceStillEmitsFactor", func(t *testing.T) {
		// Zero points but a visible factor: the asymmetry is intentional.
		score, factors := AIConfidenceScore(conf(0.1))
		if score != 0 {
			t.Errorf("expected 0, got %d", score)
		}
		if len(factors) != 1 || !strings.Contains(factors[0], "low risk") {
			t.Errorf("expected low-risk factor, got %v", factors)
		}
		if !strings.Contains(factors[0], "10%") {
			t.Errorf("expected percentage in factor, got %v", factors)
		}
	})
}

func TestLevelForScore(t *testing.T) {
	cases := []struct {
		score int
		want  domain.RiskLevel
	}{
		{0, domain.LevelLow},
		{24, domain.LevelLow},
		{25, domain.LevelMedium},
		{49, domain.LevelMedium},
		{50, domain.LevelHigh},
		{74, domain.LevelHigh},
		{75, domain.LevelCritical},
		{100, domain.LevelCritical},
	}

	for _, tc := range cases {
		if got := LevelForScore(tc.score); got != tc.want {
			t.Errorf("score %d: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestAssess(t *testing.T) {
	t.Run("NoSignals", func(t *testing.T) {
		result := Assess(Input{
			IdentifierType:  domain.IdentifierPhone,
			IdentifierValue: "+91 98765 43210",
			Description:     "someone called me about a survey",
		})
		if result.Score != 0 {
			t.Errorf("expected 0, got %d", result.Score)
		}
		if result.Level != domain.LevelLow {
			t.Errorf("expected LOW, got %s", result.Level)
		}
		if len(result.Factors) != 1 || result.Factors[0] != "No significant risk factors detected" {
			t.Errorf("expected sentinel factor, got %v", result.Factors)
		}
	})

	t.Run("SpamPrefixScenario", func(t *testing.T) {
		// Keyword sub-score 25 (urgent, blocked, verify, kyc, upi) plus
		// identifier sub-score 15 (spam prefix), no history, no AI.
		result := Assess(Input{
			IdentifierType:  domain.IdentifierPhone,
			IdentifierValue: "+91 140 1234567",
			Description:     "URGENT! You will be blocked, verify KYC now or pay via UPI",
		})
		if result.Score != 40 {
			t.Errorf("expected 40, got %d", result.Score)
		}
		if result.Level != domain.LevelMedium {
			t.Errorf("expected MEDIUM, got %s", result.Level)
		}
	})

	t.Run("FactorOrdering", func(t *testing.T) {
		conf := 0.95
		result := Assess(Input{
			IdentifierType:  domain.IdentifierUPI,
			IdentifierValue: "winner12345@upi",
			Description:     "you won a lottery prize",
			ReportCount:     2,
			AIConfidence:    &conf,
		})

		// keyword, identifier (2 factors), frequency, AI
		if len(result.Factors) != 5 {
			t.Fatalf("expected 5 factors, got %d: %v", len(result.Factors), result.Factors)
		}
		if !strings.HasPrefix(result.Factors[0], "Contains scam keywords") {
			t.Errorf("expected keyword factor first, got %q", result.Factors[0])
		}
		if result.Factors[1] != "UPI ID matches suspicious pattern" {
			t.Errorf("expected identifier factor second, got %q", result.Factors[1])
		}
		if result.Factors[3] != "Reported 2 times before" {
			t.Errorf("expected frequency factor fourth, got %q", result.Factors[3])
		}
		if !strings.Contains(result.Factors[4], "AI highly confident") {
			t.Errorf("expected AI factor last, got %q", result.Factors[4])
		}
	})

	t.Run("TotalBounded", func(t *testing.T) {
		conf := 1.0
		result := Assess(Input{
			IdentifierType:  domain.IdentifierWebsite,
			IdentifierValue: "lucky-prize.xyz/bit.ly/claim",
			Description: "otp kyc aadhaar lottery prize winner urgent verify blocked" +
				" transfer upi paytm bank account password pin cvv free offer",
			ReportCount:  50,
			AIConfidence: &conf,
		})
		if result.Score < 0 || result.Score > 100 {
			t.Errorf("score %d out of bounds", result.Score)
		}
		if result.Score != 100 {
			t.Errorf("expected saturated score 100, got %d", result.Score)
		}
		if result.Level != domain.LevelCritical {
			t.Errorf("expected CRITICAL, got %s", result.Level)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		in := Input{
			IdentifierType:  domain.IdentifierWebsite,
			IdentifierValue: "lucky-draw.xyz",
			Description:     "claim your prize now, limited time offer",
			ReportCount:     3,
		}
		a := Assess(in)
		b := Assess(in)
		if a.Score != b.Score || a.Level != b.Level || len(a.Factors) != len(b.Factors) {
			t.Errorf("assessment not deterministic: %+v vs %+v", a, b)
		}
	})
}
