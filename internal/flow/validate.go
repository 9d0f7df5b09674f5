package flow

import (
	"fmt"
	"sort"

	"github.com/roach88/bumpflow/internal/semver"
)

// ValidationError is one problem found in a policy document.
type ValidationError struct {
	Field   string // e.g. "flows[2].from"
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks cfg and returns every problem found, in document order.
func Validate(cfg *VersioningConfig) []error {
	if cfg == nil {
		return nil
	}
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	names := make([]string, 0, len(cfg.Presets))
	for name := range cfg.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := cfg.Presets[name]
		if p.Strategy != "" {
			if _, err := semver.ParsePolicy(p.Strategy); err != nil {
				add("presets."+name+".strategy", "%v", err)
			}
		}
		if p.BaseBranch != "" {
			if err := CheckPattern(p.BaseBranch); err != nil {
				add("presets."+name+".base-branch", "%v", err)
			}
		}
	}

	versioning := func(field, v string) {
		if v == "" {
			return
		}
		if _, ok := cfg.Presets[v]; ok {
			return
		}
		if _, err := semver.ParsePolicy(v); err != nil {
			add(field, "%q is neither a preset nor a strategy", v)
		}
	}

	for i, r := range cfg.Branches {
		field := fmt.Sprintf("branches[%d]", i)
		if err := CheckPattern(r.Pattern); err != nil {
			add(field+".pattern", "%v", err)
		}
		versioning(field+".versioning", r.Versioning)
	}

	seen := map[string]int{}
	for i, f := range cfg.Flows {
		field := fmt.Sprintf("flows[%d]", i)
		if f.Name == "" {
			add(field+".name", "name is required")
		} else if j, dup := seen[f.Name]; dup {
			add(field+".name", "duplicate flow name %q (also flows[%d])", f.Name, j)
		} else {
			seen[f.Name] = i
		}
		if err := CheckPattern(f.From); err != nil {
			add(field+".from", "%v", err)
		}
		if f.To != "" {
			if err := CheckPattern(f.To); err != nil {
				add(field+".to", "%v", err)
			}
		}
		for k, ex := range f.FromExclude {
			if err := CheckPattern(ex); err != nil {
				add(fmt.Sprintf("%s.from-exclude[%d]", field, k), "%v", err)
			}
		}
		versioning(field+".versioning", f.Versioning)
	}
	return errs
}
