package callflow

import (
	"regexp"
	"strings"
	"unicode"
)

// Validator reports whether a lowercased, trimmed utterance is acceptable.
type Validator func(input string) bool

// Normalizer turns a trimmed utterance into the value stored on the session.
type Normalizer func(input string) string

var (
	nonDigit     = regexp.MustCompile(`\D`)
	phonePattern = regexp.MustCompile(`^\+?1?[-\s.]?(\([0-9]{3}\)|[0-9]{3})[-\s.]?[0-9]{3}[-\s.]?[0-9]{4}$`)
)

func digits(input string) string {
	return nonDigit.ReplaceAllString(input, "")
}

// ValidZIP accepts 5-digit and ZIP+4 US postal codes. Separators and
// surrounding words are ignored.
func ValidZIP(input string) bool {
	d := digits(input)
	return len(d) == 5 || len(d) == 9
}

// NormalizeZIP keeps the first five digits of input.
func NormalizeZIP(input string) string {
	d := digits(input)
	if len(d) > 5 {
		d = d[:5]
	}
	return d
}

// ValidPhone accepts common US phone formats: optional +1, optional
// parentheses around the area code, and dash, dot or space separators.
func ValidPhone(input string) bool {
	return phonePattern.MatchString(strings.TrimSpace(input))
}

// NormalizePhone returns the ten significant digits of a US number.
func NormalizePhone(input string) string {
	d := digits(input)
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	return d
}

const (
	ServiceInstallation = "installation"
	ServiceRepair       = "repair"
)

// ServiceClassifier sorts an utterance into installation or repair by
// keyword presence. It is a substring match, not intent understanding:
// products lists the nouns that make "new <product>" mean installation.
type ServiceClassifier struct {
	Products []string
}

// Valid requires the utterance to contain at least one letter.
func (c ServiceClassifier) Valid(input string) bool {
	return strings.IndexFunc(input, unicode.IsLetter) >= 0
}

// Classify returns ServiceInstallation or ServiceRepair.
func (c ServiceClassifier) Classify(input string) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "install") {
		return ServiceInstallation
	}
	for _, p := range c.Products {
		if strings.Contains(lower, "new "+p) {
			return ServiceInstallation
		}
	}
	return ServiceRepair
}

// timelinePhrases is ordered so longer phrases win over the words they contain.
var timelinePhrases = []struct {
	pattern   *regexp.Regexp
	canonical string
}{
	{regexp.MustCompile(`\bas soon as possible\b`), "asap"},
	{regexp.MustCompile(`\basap\b`), "asap"},
	{regexp.MustCompile(`\bemergency\b`), "asap"},
	{regexp.MustCompile(`\burgent(ly)?\b`), "urgent"},
	{regexp.MustCompile(`\btoday\b`), "today"},
	{regexp.MustCompile(`\btomorrow\b`), "tomorrow"},
	{regexp.MustCompile(`\bthis week\b`), "this week"},
	{regexp.MustCompile(`\bnext week\b`), "next week"},
	{regexp.MustCompile(`\b1\s*-\s*2 weeks\b`), "1-2 weeks"},
	{regexp.MustCompile(`\b1\s*-\s*4 weeks\b`), "1-4 weeks"},
	{regexp.MustCompile(`\bthis month\b`), "this month"},
	{regexp.MustCompile(`\bnext month\b`), "next month"},
	{regexp.MustCompile(`\bmonths?\b`), "month"},
	{regexp.MustCompile(`\bsoon\b`), "soon"},
	{regexp.MustCompile(`\blater\b`), "later"},
	{regexp.MustCompile(`\bnot sure\b`), "not sure"},
}

func matchTimeline(input string) (string, bool) {
	lower := strings.ToLower(input)
	for _, p := range timelinePhrases {
		if p.pattern.MatchString(lower) {
			return p.canonical, true
		}
	}
	return "", false
}

// MatchTimeline reports whether input contains a known urgency phrase.
func MatchTimeline(input string) bool {
	_, ok := matchTimeline(input)
	return ok
}

// NormalizeTimeline returns the canonical urgency phrase, or "" if none matches.
func NormalizeTimeline(input string) string {
	canonical, _ := matchTimeline(input)
	return canonical
}

var roofTypes = []struct {
	keyword   string
	canonical string
}{
	{"shingle", "shingle"},
	{"asphalt", "shingle"},
	{"metal", "metal"},
	{"tile", "tile"},
	{"flat", "flat"},
	{"slate", "slate"},
}

// ValidRoofType accepts the roof materials the crews service.
func ValidRoofType(input string) bool {
	return NormalizeRoofType(input) != ""
}

// NormalizeRoofType returns the canonical roof material, or "" if none matches.
func NormalizeRoofType(input string) string {
	lower := strings.ToLower(input)
	for _, r := range roofTypes {
		if strings.Contains(lower, r.keyword) {
			return r.canonical
		}
	}
	return ""
}
