package flow

import (
	"fmt"

	"github.com/roach88/bumpflow/internal/semver"
)

// Source prefixes recorded on a resolved ActionConfiguration.
const (
	SourceFlow    = "flow:"
	SourceBranch  = "branch:"
	SourceDefault = "default"
)

// Resolve turns cfg into the ActionConfiguration for q. The winning flow is
// used first, then the first matching branch rule, then defaults.
func Resolve(cfg *VersioningConfig, q Query, defaults ActionConfiguration) (ActionConfiguration, error) {
	out := defaults
	out.Source = SourceDefault
	if cfg == nil {
		return out, nil
	}

	if f := Match(cfg.Flows, q); f != nil {
		if err := apply(cfg, &out, f.Versioning, f.Base); err != nil {
			return defaults, fmt.Errorf("flow %q: %w", f.Name, err)
		}
		out.Source = SourceFlow + f.Name
		return out, nil
	}

	for _, rule := range cfg.Branches {
		if !MatchPattern(rule.Pattern, q.CurrentBranch) {
			continue
		}
		if err := apply(cfg, &out, rule.Versioning, rule.Base); err != nil {
			return defaults, fmt.Errorf("branch rule %q: %w", rule.Pattern, err)
		}
		out.Source = SourceBranch + rule.Pattern
		return out, nil
	}
	return out, nil
}

// apply layers versioning (a preset name or a strategy) and base onto out.
func apply(cfg *VersioningConfig, out *ActionConfiguration, versioning, base string) error {
	if versioning != "" {
		if p, ok := cfg.Presets[versioning]; ok {
			if err := p.applyTo(out); err != nil {
				return fmt.Errorf("preset %q: %w", versioning, err)
			}
		} else {
			policy, err := semver.ParsePolicy(versioning)
			if err != nil {
				return fmt.Errorf("versioning %q is neither a preset nor a strategy", versioning)
			}
			out.Strategy = policy
		}
	}
	if base != "" {
		out.BaseBranch = base
	}
	return nil
}

func (p Preset) applyTo(out *ActionConfiguration) error {
	if p.Strategy != "" {
		policy, err := semver.ParsePolicy(p.Strategy)
		if err != nil {
			return err
		}
		out.Strategy = policy
	}
	if p.BaseBranch != "" {
		out.BaseBranch = p.BaseBranch
	}
	if p.BranchTemplate != "" {
		out.BranchTemplate = p.BranchTemplate
	}
	if p.CreateBranch != nil {
		out.CreateBranch = *p.CreateBranch
	}
	if p.TagPrereleases != nil {
		out.TagPrereleases = *p.TagPrereleases
	}
	if p.PrereleaseID != "" {
		out.PrereleaseID = p.PrereleaseID
	}
	return nil
}
