package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// Placeholder tokens substituted for redacted spans. Kept stable because they
// end up in persisted review documents.
const (
	PlaceholderURL    = "[redacted:url]"
	PlaceholderEmail  = "[redacted:email]"
	PlaceholderID     = "[redacted:id]"
	PlaceholderPhone  = "[redacted:phone]"
	PlaceholderHandle = "[redacted:handle]"
)

var (
	urlRe   = regexp.MustCompile(`https?://[^\s<>"]+|www\.[^\s<>"]+`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	// Account/order/reference identifiers quoted verbatim by reviewers.
	accountRe = regexp.MustCompile(`(?i)\b(?:account|order|transaction|ticket|ref|id)\s*[#:]?\s*\d{6,}\b`)
	phoneRes  = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{3}[-.\s]\d{3}[-.\s]\d{4}\b`),
		regexp.MustCompile(`\+\d{1,3}[-.\s]?\d{4,14}\b`),
		regexp.MustCompile(`\b\d{10}\b`),
	}
	handleRe     = regexp.MustCompile(`@[A-Za-z0-9_]+`)
	// Long digit runs in any grouping, e.g. "98765 43210". Checked only by
	// HasPII: too aggressive to redact, but a safe reason to reject.
	digitRunRe   = regexp.MustCompile(`\d(?:[\s.-]?\d){8,}`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	punctRunRe   = regexp.MustCompile(`([!?.])(?:[!?.]){2,}`)
)

var punctuationMap = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
	"–", "-", "—", "-",
	"…", "...",
	" ", " ",
)

// Normalizer cleans raw review text. Pure, side-effect free, never fails:
// input that cannot be parsed degrades to an empty string.
type Normalizer struct{}

// New returns a stateless text normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize strips markup and control characters, maps common unicode
// punctuation to ASCII, redacts PII spans and collapses whitespace.
func (n *Normalizer) Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	text := stripHTML(raw)
	text = punctuationMap.Replace(text)
	text = stripControl(text)

	text = urlRe.ReplaceAllString(text, PlaceholderURL)
	text = emailRe.ReplaceAllString(text, PlaceholderEmail)
	text = accountRe.ReplaceAllString(text, PlaceholderID)
	for _, re := range phoneRes {
		text = re.ReplaceAllString(text, PlaceholderPhone)
	}
	text = handleRe.ReplaceAllString(text, PlaceholderHandle)

	text = punctRunRe.ReplaceAllString(text, "$1$1")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = strings.Trim(text, `"'`)
	return strings.TrimSpace(text)
}

// HasPII reports whether any redaction pattern still matches the text.
// Used by the validator as a second line of defense after Normalize.
func (n *Normalizer) HasPII(text string) bool {
	if emailRe.MatchString(text) || accountRe.MatchString(text) || digitRunRe.MatchString(text) {
		return true
	}
	for _, re := range phoneRes {
		if re.MatchString(text) {
			return true
		}
	}
	return handleRe.MatchString(text)
}

func stripHTML(raw string) string {
	if !strings.ContainsRune(raw, '<') {
		return raw
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	return doc.Text()
}

func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
}

