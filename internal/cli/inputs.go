package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/bumpflow/internal/config"
	"github.com/roach88/bumpflow/internal/engine"
	"github.com/roach88/bumpflow/internal/flow"
	"github.com/roach88/bumpflow/internal/vcs"
)

// Overrides are injection points for tests. Zero values select the real
// implementations.
type Overrides struct {
	// Repo replaces the git repository in --dir.
	Repo vcs.Repository
	// IDs replaces the UUIDv7 run ID generator.
	IDs engine.IDGenerator
	// Now replaces the wall clock.
	Now func() time.Time
}

func (o Overrides) repo(dir string) vcs.Repository {
	if o.Repo != nil {
		return o.Repo
	}
	return vcs.NewGit(dir, slog.Default())
}

func (o Overrides) engine(repo vcs.Repository) *engine.Engine {
	opts := []engine.Option{engine.WithLogger(slog.Default())}
	if o.IDs != nil {
		opts = append(opts, engine.WithIDGenerator(o.IDs))
	}
	if o.Now != nil {
		opts = append(opts, engine.WithClock(o.Now))
	}
	return engine.New(repo, opts...)
}

// loadInputs resolves flags, BUMPFLOW_* variables and the config file.
func loadInputs(opts *RootOptions, cmd *cobra.Command) (*viper.Viper, config.Inputs, error) {
	v := config.New()
	in, err := config.Load(v, cmd.Flags(), opts.Config)
	return v, in, err
}

// loadPolicy reads and validates a policy document. An empty path means no
// policy.
func loadPolicy(path string) (*flow.VersioningConfig, error) {
	if path == "" {
		return nil, nil
	}
	cfg, err := flow.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if errs := flow.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid policy %s: %w", path, errors.Join(errs...))
	}
	return cfg, nil
}

func request(in config.Inputs, policy *flow.VersioningConfig) engine.Request {
	return engine.Request{
		CurrentBranch:   in.CurrentBranch,
		EventType:       in.EventType,
		TargetBranch:    in.TargetBranch,
		Defaults:        in.Defaults(),
		Policy:          policy,
		Manifest:        in.Manifest,
		LookbackCommits: in.LookbackCommits,
		MaxCount:        in.MaxCount,
		PackageManager:  in.PackageManagerIn(),
	}
}

// pipelineError maps engine errors onto exit codes.
func pipelineError(f *OutputFormatter, err error) error {
	switch {
	case engine.IsNoReference(err):
		return f.Fail(ExitFailure, ErrCodeNoReference, "no reference point found", err)
	case engine.IsPolicyError(err):
		return f.Fail(ExitCommandError, ErrCodePolicy, "policy could not be resolved", err)
	case engine.IsRepositoryError(err):
		return f.Fail(ExitCommandError, ErrCodeRepository, "repository could not be read", err)
	default:
		return f.Fail(ExitCommandError, ErrCodeGeneric, "decision failed", err)
	}
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
