package flow

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// Wildcard matches every branch.
const Wildcard = "*"

var patternCache sync.Map // string -> *regexp.Regexp

// compile turns a glob into an anchored regex. Only * and ? are special.
func compile(pattern string) *regexp.Regexp {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp)
	}
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re := regexp.MustCompile(b.String())
	patternCache.Store(pattern, re)
	return re
}

// MatchPattern reports whether branch matches pattern: exact, the universal
// wildcard, or a glob. An empty pattern matches nothing.
func MatchPattern(pattern, branch string) bool {
	switch {
	case pattern == "":
		return false
	case pattern == Wildcard, pattern == branch:
		return true
	case !strings.ContainsAny(pattern, "*?"):
		return false
	default:
		return compile(pattern).MatchString(branch)
	}
}

// CheckPattern rejects patterns that can never name a branch.
func CheckPattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty pattern")
	}
	for _, r := range pattern {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("pattern %q contains whitespace or control characters", pattern)
		}
	}
	if strings.Contains(pattern, "..") {
		return fmt.Errorf("pattern %q contains '..'", pattern)
	}
	return nil
}
