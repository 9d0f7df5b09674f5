package flow

import "slices"

// Specificity scores.
const (
	ScoreExact      = 100
	ScorePattern    = 50
	ScoreWildcard   = 10
	BonusVersioning = 20
	BonusBase       = 10
)

// Match returns the most specific flow for q, or nil when none matches.
// Ties go to the earlier flow.
func Match(flows []Flow, q Query) *Flow {
	best, bestScore := -1, -1
	for i := range flows {
		f := &flows[i]
		if !candidate(f, q) {
			continue
		}
		if s := Score(f, q.CurrentBranch); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return nil
	}
	return &flows[best]
}

// Candidates returns every flow matching q, in list order.
func Candidates(flows []Flow, q Query) []Flow {
	var out []Flow
	for i := range flows {
		if candidate(&flows[i], q) {
			out = append(out, flows[i])
		}
	}
	return out
}

func candidate(f *Flow, q Query) bool {
	if len(f.Triggered) > 0 && q.EventType != "" && !slices.Contains(f.Triggered, q.EventType) {
		return false
	}
	if fromMatches(f, q.CurrentBranch) {
		return true
	}
	// Destination side, for sync-style flows evaluated on the target.
	return MatchPattern(f.To, q.CurrentBranch)
}

func fromMatches(f *Flow, branch string) bool {
	if !MatchPattern(f.From, branch) {
		return false
	}
	for _, ex := range f.FromExclude {
		if MatchPattern(ex, branch) {
			return false
		}
	}
	return true
}

// Score is the specificity of f for branch.
func Score(f *Flow, branch string) int {
	var s int
	switch {
	case f.From == branch || f.To == branch:
		s = ScoreExact
	case f.From == Wildcard:
		s = ScoreWildcard
	default:
		s = ScorePattern
	}
	if f.Versioning != "" {
		s += BonusVersioning
	}
	if f.Base != "" {
		s += BonusBase
	}
	return s
}
