package commits

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Info is a classified commit. Type is empty when it could not be determined.
type Info struct {
	Hash     string `json:"hash,omitempty"`
	Type     string `json:"type,omitempty"`
	Scope    string `json:"scope,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Breaking bool   `json:"breaking"`
	Header   string `json:"header"`
}

var (
	conventionalHeader = regexp.MustCompile(`^(\w+)(?:\(([^)]*)\))?(!)?: (.+)$`)
	breakingFooter     = regexp.MustCompile(`(?m)^BREAKING[ -]CHANGE: ?`)

	guessHeader   = regexp.MustCompile(`^(\w+)(\([^)]+\))?:\s*(.+)`)
	guessBreaking = regexp.MustCompile(`(?i)breaking|break`)
	guessMajor    = regexp.MustCompile(`(?i)major`)
)

// splitMessage returns the NFC-normalised header and the remaining body.
func splitMessage(message string) (header, body string) {
	message = norm.NFC.String(strings.ReplaceAll(message, "\r\n", "\n"))
	header, body, _ = strings.Cut(strings.TrimSpace(message), "\n")
	return strings.TrimSpace(header), strings.TrimSpace(body)
}

// ParseConventional parses message with the conventional-commit grammar.
// ok is false when the header carries no recognisable type.
func ParseConventional(message string) (Info, bool) {
	header, body := splitMessage(message)
	info := Info{Header: header}

	m := conventionalHeader.FindStringSubmatch(header)
	if m == nil {
		return info, false
	}
	info.Type = strings.ToLower(m[1])
	info.Scope = m[2]
	info.Subject = strings.TrimSpace(m[4])
	info.Breaking = m[3] == "!" || strings.Contains(header, "!:") || breakingFooter.MatchString(body)
	return info, true
}

// keyword buckets for headers without a type prefix, checked in order.
var guessBuckets = []struct {
	kind     string
	keywords []string
}{
	{"fix", []string{"fix", "bug", "patch"}},
	{"feat", []string{"feat", "feature", "add"}},
	{"chore", []string{"chore", "refactor", "docs", "style", "test"}},
}

// ParseBestGuess applies lenient heuristics to message. It never fails;
// Type stays empty when nothing matched.
func ParseBestGuess(message string) Info {
	header, body := splitMessage(message)
	info := Info{
		Header:   header,
		Breaking: guessBreaking.MatchString(body) || strings.Contains(header, "!:") || guessMajor.MatchString(header),
	}

	if m := guessHeader.FindStringSubmatch(header); m != nil {
		info.Type = strings.ToLower(m[1])
		info.Scope = strings.Trim(m[2], "()")
		info.Subject = strings.TrimSpace(m[3])
		return info
	}

	info.Subject = header
	lower := strings.ToLower(header)
	for _, bucket := range guessBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				info.Type = bucket.kind
				return info
			}
		}
	}
	return info
}
