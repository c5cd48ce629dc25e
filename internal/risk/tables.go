package risk

import "regexp"

// Rule tables, v1. Each group is an ordered list evaluated top to bottom
// with first-match-wins semantics; bonuses across groups are additive up to
// the per-component cap. Factor text is part of the contract: changing it
// changes the API surface reviewers and reporters see.

// scamKeywords are matched case-insensitively as substrings of the report
// description. India-specific on purpose.
var scamKeywords = []string{
	"otp", "kyc", "aadhar", "aadhaar", "pan card", "lottery", "prize",
	"winner", "congratulations", "urgent", "verify", "suspend",
	"blocked", "link", "click here", "rupees", "lakhs", "crore",
	"transfer", "upi", "paytm", "phonepe", "gpay", "google pay",
	"loan approved", "credit card", "insurance", "refund", "cashback",
	"job offer", "work from home", "earn money", "investment",
	"trading", "bitcoin", "crypto", "forex", "stock tips",
	"customs", "courier", "parcel", "fedex", "police", "cbi",
	"narcotics", "arrest", "warrant", "legal action",
	"whatsapp", "telegram", "bank", "rbi", "sbi", "hdfc", "icici",
	"account", "password", "pin", "cvv", "expire",
	"free", "offer", "limited time", "act now", "immediately",
	"sextortion", "video", "compromise", "blackmail",
}

// prefixRule scores a phone number by its leading digits.
type prefixRule struct {
	prefix string
	bonus  int
	factor string // %s is the display form of the prefix
}

var spamPhonePrefixes = []prefixRule{
	{prefix: "+91 140", bonus: 15, factor: "Phone number starts with known spam prefix: %s"}, // known spam block
	{prefix: "140", bonus: 15, factor: "Phone number starts with known spam prefix: %s"},     // TRAI-tagged telemarketing
}

// regexRule scores a value by a compiled pattern.
type regexRule struct {
	re     *regexp.Regexp
	bonus  int
	factor string
}

var suspiciousUPIPatterns = []regexRule{
	{re: regexp.MustCompile(`.*paytm.*@.*`), bonus: 15, factor: "UPI ID matches suspicious pattern"},    // impersonating Paytm
	{re: regexp.MustCompile(`.*rbi.*@.*`), bonus: 15, factor: "UPI ID matches suspicious pattern"},      // impersonating RBI
	{re: regexp.MustCompile(`.*sbi.*@.*`), bonus: 15, factor: "UPI ID matches suspicious pattern"},      // impersonating SBI
	{re: regexp.MustCompile(`.*refund.*@.*`), bonus: 15, factor: "UPI ID matches suspicious pattern"},   // refund scam
	{re: regexp.MustCompile(`.*lucky.*@.*`), bonus: 15, factor: "UPI ID matches suspicious pattern"},    // lottery scam
	{re: regexp.MustCompile(`.*winner.*@.*`), bonus: 15, factor: "UPI ID matches suspicious pattern"},   // prize scam
	{re: regexp.MustCompile(`.*support.*@.*`), bonus: 15, factor: "UPI ID matches suspicious pattern"},  // fake support
	{re: regexp.MustCompile(`.*helpdesk.*@.*`), bonus: 15, factor: "UPI ID matches suspicious pattern"}, // fake helpdesk
}

// randomUPIHandle flags long alphanumeric local parts typical of
// auto-generated mule accounts.
var randomUPIHandle = regexRule{
	re:     regexp.MustCompile(`^[a-z0-9]{10,}@`),
	bonus:  5,
	factor: "UPI ID appears randomly generated",
}

// substringRule scores a value containing a fixed marker.
type substringRule struct {
	marker string
	bonus  int
	factor string // %s is the marker, when the template contains a verb slot
}

var suspiciousTLDs = []substringRule{
	{marker: ".xyz", bonus: 15, factor: "Uses suspicious domain extension: %s"},
	{marker: ".top", bonus: 15, factor: "Uses suspicious domain extension: %s"},
	{marker: ".buzz", bonus: 15, factor: "Uses suspicious domain extension: %s"},
	{marker: ".club", bonus: 15, factor: "Uses suspicious domain extension: %s"},
	{marker: ".icu", bonus: 15, factor: "Uses suspicious domain extension: %s"},
	{marker: ".tk", bonus: 15, factor: "Uses suspicious domain extension: %s"},
	{marker: ".ml", bonus: 15, factor: "Uses suspicious domain extension: %s"},
	{marker: ".ga", bonus: 15, factor: "Uses suspicious domain extension: %s"},
}

var urlShorteners = []substringRule{
	{marker: "bit.ly", bonus: 10, factor: "Uses URL shortener (often used for phishing)"},
	{marker: "tinyurl", bonus: 10, factor: "Uses URL shortener (often used for phishing)"},
	{marker: "t.co", bonus: 10, factor: "Uses URL shortener (often used for phishing)"},
	{marker: "goo.gl", bonus: 10, factor: "Uses URL shortener (often used for phishing)"},
	{marker: "is.gd", bonus: 10, factor: "Uses URL shortener (often used for phishing)"},
	{marker: "rebrand.ly", bonus: 10, factor: "Uses URL shortener (often used for phishing)"},
}

// Email impersonation: an official-sounding local part hosted on a free
// consumer provider. Both sides must match.
var (
	officialEntityPattern = regexp.MustCompile(`(bank|sbi|hdfc|icici|rbi|govt|gov)`)
	freeMailPattern       = regexp.MustCompile(`@(gmail|yahoo|hotmail|outlook)`)

	emailImpersonationBonus  = 20
	emailImpersonationFactor = "Email impersonates official entity using free email service"
)

var internationalPhoneRule = struct {
	bonus  int
	factor string
}{
	bonus:  10,
	factor: "International number (non-Indian)",
}
