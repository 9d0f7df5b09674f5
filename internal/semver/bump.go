package semver

import (
	"fmt"
	"strconv"
)

// BumpType is the semantic-versioning category of a change.
type BumpType string

const (
	BumpNone       BumpType = ""
	BumpMajor      BumpType = "major"
	BumpMinor      BumpType = "minor"
	BumpPatch      BumpType = "patch"
	BumpPrerelease BumpType = "prerelease"
	BumpRelease    BumpType = "release"
)

// ParseBumpType parses a bump name. The empty string and "none" map to BumpNone.
func ParseBumpType(s string) (BumpType, error) {
	switch BumpType(s) {
	case BumpMajor, BumpMinor, BumpPatch, BumpPrerelease, BumpRelease:
		return BumpType(s), nil
	case BumpNone:
		return BumpNone, nil
	}
	if s == "none" {
		return BumpNone, nil
	}
	return BumpNone, fmt.Errorf("unknown bump type %q", s)
}

// Priority orders bump types: major=3, minor=2, patch=1,
// prerelease/release=0, none=-1.
func (b BumpType) Priority() int {
	switch b {
	case BumpMajor:
		return 3
	case BumpMinor:
		return 2
	case BumpPatch:
		return 1
	case BumpPrerelease, BumpRelease:
		return 0
	default:
		return -1
	}
}

// IsIncrement reports whether b is major, minor or patch.
func (b BumpType) IsIncrement() bool {
	return b == BumpMajor || b == BumpMinor || b == BumpPatch
}

func (b BumpType) String() string {
	if b == BumpNone {
		return "none"
	}
	return string(b)
}

// MostSignificant reduces bumps to the highest priority. On ties the first
// value seen is kept.
func MostSignificant(bumps []BumpType) BumpType {
	best := BumpNone
	for _, b := range bumps {
		if b.Priority() > best.Priority() {
			best = b
		}
	}
	return best
}

// Policy is the versioning behaviour applied to a branch.
type Policy string

const (
	PolicyDoNothing  Policy = "do-nothing"
	PolicyApplyBump  Policy = "apply-bump"
	PolicyPrerelease Policy = "pre-release"
	PolicyFinalize   Policy = "finalize"
)

// Policies lists every known policy in declaration order.
var Policies = []Policy{PolicyDoNothing, PolicyApplyBump, PolicyPrerelease, PolicyFinalize}

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	for _, p := range Policies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown versioning strategy %q (want one of %v)", s, Policies)
}

// Decider computes next versions. PrereleaseID, when set, names the
// prerelease identifier attached by the pre-release policy ("beta" gives
// 1.2.0-beta.1).
type Decider struct {
	PrereleaseID string
}

// Decide returns the next version for current under policy, or false when
// nothing should be bumped. Invalid input is "no bump", never an error.
func Decide(current string, bump BumpType, policy Policy) (string, bool) {
	return Decider{}.Decide(current, bump, policy)
}

// Decide is the package-level Decide with d's options.
func (d Decider) Decide(current string, bump BumpType, policy Policy) (string, bool) {
	switch policy {
	case PolicyApplyBump:
		if !bump.IsIncrement() {
			return "", false
		}
		v, ok := ParseOrCoerce(current)
		if !ok {
			return "", false
		}
		return Increment(v, bump).String(), true

	case PolicyPrerelease:
		if !bump.IsIncrement() {
			return "", false
		}
		v, ok := ParseOrCoerce(current)
		if !ok {
			return "", false
		}
		if v.IsPrerelease() {
			return IncrementPrerelease(v).String(), true
		}
		next := Increment(v, bump)
		next.Prerelease = d.marker()
		return next.String(), true

	case PolicyFinalize:
		v, err := Parse(current)
		if err != nil || !v.IsPrerelease() {
			return "", false
		}
		return v.Core().String(), true

	default:
		return "", false
	}
}

func (d Decider) marker() []string {
	if d.PrereleaseID == "" {
		return []string{"1"}
	}
	return []string{d.PrereleaseID, "1"}
}

// Increment bumps v by b. A prerelease of the target version is released
// rather than bumped again: 1.2.0-1 + minor is 1.2.0.
func Increment(v Version, b BumpType) Version {
	pre := v.IsPrerelease()
	next := v.Core()
	switch b {
	case BumpMajor:
		if !(pre && v.Minor == 0 && v.Patch == 0) {
			next.Major++
		}
		next.Minor, next.Patch = 0, 0
	case BumpMinor:
		if !(pre && v.Patch == 0) {
			next.Minor++
		}
		next.Patch = 0
	case BumpPatch:
		if !pre {
			next.Patch++
		}
	default:
		return v
	}
	return next
}

// IncrementPrerelease bumps the prerelease counter only: the last numeric
// identifier is incremented, or ".1" is appended when none exists.
func IncrementPrerelease(v Version) Version {
	next := v
	next.Build = ""
	next.Prerelease = append([]string(nil), v.Prerelease...)
	for i := len(next.Prerelease) - 1; i >= 0; i-- {
		n, err := strconv.ParseInt(next.Prerelease[i], 10, 64)
		if err == nil {
			next.Prerelease[i] = strconv.FormatInt(n+1, 10)
			return next
		}
	}
	next.Prerelease = append(next.Prerelease, "1")
	return next
}

// FinalizeVersion strips prerelease and build suffixes. Unparseable input is
// coerced; input with no digits is returned unchanged.
func FinalizeVersion(s string) string {
	v, ok := ParseOrCoerce(s)
	if !ok {
		return s
	}
	return v.Core().String()
}
