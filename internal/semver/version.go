package semver

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	xsemver "golang.org/x/mod/semver"
)

// Version is a parsed semantic version. Build metadata is kept for display
// but ignored for precedence.
type Version struct {
	Major      int64
	Minor      int64
	Patch      int64
	Prerelease []string
	Build      string
}

var strictPattern = regexp.MustCompile(
	`^v?(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)` +
		`(?:-((?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*))*))?` +
		`(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`)

var coercePattern = regexp.MustCompile(`(\d{1,16})(?:\.(\d{1,16}))?(?:\.(\d{1,16}))?`)

// Parse parses a strict semantic version. A leading "v" is accepted.
func Parse(s string) (Version, error) {
	m := strictPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Version{}, fmt.Errorf("invalid semantic version %q", s)
	}
	v := Version{Build: m[5]}
	var err error
	if v.Major, err = strconv.ParseInt(m[1], 10, 64); err != nil {
		return Version{}, fmt.Errorf("invalid major in %q: %w", s, err)
	}
	if v.Minor, err = strconv.ParseInt(m[2], 10, 64); err != nil {
		return Version{}, fmt.Errorf("invalid minor in %q: %w", s, err)
	}
	if v.Patch, err = strconv.ParseInt(m[3], 10, 64); err != nil {
		return Version{}, fmt.Errorf("invalid patch in %q: %w", s, err)
	}
	if m[4] != "" {
		v.Prerelease = strings.Split(m[4], ".")
	}
	return v, nil
}

// Coerce extracts the first "X[.Y[.Z]]" run of digits from s, dropping any
// prerelease or build suffix. Missing components default to zero.
func Coerce(s string) (Version, bool) {
	m := coercePattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, false
	}
	var v Version
	v.Major, _ = strconv.ParseInt(m[1], 10, 64)
	if m[2] != "" {
		v.Minor, _ = strconv.ParseInt(m[2], 10, 64)
	}
	if m[3] != "" {
		v.Patch, _ = strconv.ParseInt(m[3], 10, 64)
	}
	return v, true
}

// ParseOrCoerce parses s strictly and falls back to Coerce.
func ParseOrCoerce(s string) (Version, bool) {
	if v, err := Parse(s); err == nil {
		return v, true
	}
	return Coerce(s)
}

// MustParse is Parse for constants in tests and defaults.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version without a "v" prefix.
func (v Version) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if len(v.Prerelease) > 0 {
		b.WriteByte('-')
		b.WriteString(strings.Join(v.Prerelease, "."))
	}
	if v.Build != "" {
		b.WriteByte('+')
		b.WriteString(v.Build)
	}
	return b.String()
}

// IsPrerelease reports whether v carries a prerelease identifier.
func (v Version) IsPrerelease() bool {
	return len(v.Prerelease) > 0
}

// Core returns major.minor.patch only.
func (v Version) Core() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
}

// Compare returns -1, 0 or +1 by semver precedence.
func Compare(a, b Version) int {
	return xsemver.Compare("v"+a.String(), "v"+b.String())
}

// Tag pairs a tag name with its coerced version.
type Tag struct {
	Name    string
	Version Version
}

// SortTags coerces every tag name, drops the ones that do not coerce, and
// returns the rest sorted by descending precedence. Equal versions keep
// their input order.
func SortTags(names []string) []Tag {
	tags := make([]Tag, 0, len(names))
	for _, n := range names {
		v, ok := Coerce(n)
		if !ok {
			continue
		}
		tags = append(tags, Tag{Name: n, Version: v})
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return Compare(tags[i].Version, tags[j].Version) > 0
	})
	return tags
}

// Highest returns the highest-precedence coercible tag.
func Highest(names []string) (Tag, bool) {
	tags := SortTags(names)
	if len(tags) == 0 {
		return Tag{}, false
	}
	return tags[0], true
}
