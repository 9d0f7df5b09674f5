// Package config resolves runtime inputs from flags, BUMPFLOW_* environment
// variables and an optional .bumpflow.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/bumpflow/internal/flow"
	"github.com/roach88/bumpflow/internal/manifest"
	"github.com/roach88/bumpflow/internal/reference"
	"github.com/roach88/bumpflow/internal/semver"
)

// EnvPrefix prefixes every environment variable, e.g. BUMPFLOW_BASE_BRANCH.
const EnvPrefix = "BUMPFLOW"

// DefaultFile is looked up in the repository root when no config file is
// given explicitly.
const DefaultFile = ".bumpflow.yaml"

// Keys. Flag names and config file keys are identical.
const (
	KeyDir             = "dir"
	KeyStrategy        = "strategy"
	KeyBaseBranch      = "base-branch"
	KeyBranchTemplate  = "branch-template"
	KeyTagPrereleases  = "tag-prereleases"
	KeyCreateBranch    = "create-branch"
	KeyPrereleaseID    = "prerelease-id"
	KeyLookbackCommits = "lookback-commits"
	KeyMaxCount        = "max-count"
	KeyManifest        = "manifest"
	KeyPackageManager  = "package-manager"
	KeyPolicy          = "policy"
	KeyEventType       = "event-type"
	KeyTargetBranch    = "target-branch"
	KeyCurrentBranch   = "current-branch"
	KeyAuditDB         = "audit-db"
)

// Inputs are the resolved runtime inputs of a run.
type Inputs struct {
	Dir             string
	Strategy        semver.Policy
	BaseBranch      string
	BranchTemplate  string
	TagPrereleases  bool
	CreateBranch    bool
	PrereleaseID    string
	LookbackCommits int
	MaxCount        int
	Manifest        string
	PackageManager  string // empty means detect from lockfiles
	PolicyFile      string
	EventType       string
	TargetBranch    string
	CurrentBranch   string // empty means ask the repository
	AuditDB         string // empty disables decision history
}

// AddFlags registers every input on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(KeyDir, ".", "Repository directory")
	fs.String(KeyStrategy, string(semver.PolicyApplyBump), "Versioning strategy: do-nothing, apply-bump, pre-release, finalize")
	fs.String(KeyBaseBranch, "", "Base branch; enables branch-based reference discovery")
	fs.String(KeyBranchTemplate, "release/{version}", "Release branch name template")
	fs.Bool(KeyTagPrereleases, false, "Create tags for prerelease versions")
	fs.Bool(KeyCreateBranch, false, "Create a release branch")
	fs.String(KeyPrereleaseID, "", "Prerelease identifier, e.g. beta")
	fs.Int(KeyLookbackCommits, reference.DefaultLookbackCommits, "Commits searched for a bootstrap baseline")
	fs.Int(KeyMaxCount, reference.DefaultMaxCount, "Commits searched for the last version change")
	fs.String(KeyManifest, manifest.DefaultPath, "Package manifest path")
	fs.String(KeyPackageManager, "", "Package manager: npm, yarn, pnpm (default: detect)")
	fs.String(KeyPolicy, "", "Versioning policy document (.yaml, .toml, .cue, .json)")
	fs.String(KeyEventType, "", "CI event type, e.g. push or pull_request")
	fs.String(KeyTargetBranch, "", "Target branch of a pull request")
	fs.String(KeyCurrentBranch, "", "Branch being evaluated (default: checked-out branch)")
	fs.String(KeyAuditDB, "", "SQLite database recording decision history")
}

// New returns a viper instance reading BUMPFLOW_* variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load binds fs, reads configFile (or DefaultFile in the repository
// directory when it exists) and returns validated Inputs.
func Load(v *viper.Viper, fs *pflag.FlagSet, configFile string) (Inputs, error) {
	if err := v.BindPFlags(fs); err != nil {
		return Inputs{}, fmt.Errorf("bind flags: %w", err)
	}

	if configFile == "" {
		candidate := filepath.Join(v.GetString(KeyDir), DefaultFile)
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Inputs{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	in := Inputs{
		Dir:             v.GetString(KeyDir),
		BaseBranch:      v.GetString(KeyBaseBranch),
		BranchTemplate:  v.GetString(KeyBranchTemplate),
		TagPrereleases:  v.GetBool(KeyTagPrereleases),
		CreateBranch:    v.GetBool(KeyCreateBranch),
		PrereleaseID:    v.GetString(KeyPrereleaseID),
		LookbackCommits: v.GetInt(KeyLookbackCommits),
		MaxCount:        v.GetInt(KeyMaxCount),
		Manifest:        v.GetString(KeyManifest),
		PackageManager:  v.GetString(KeyPackageManager),
		PolicyFile:      v.GetString(KeyPolicy),
		EventType:       v.GetString(KeyEventType),
		TargetBranch:    v.GetString(KeyTargetBranch),
		CurrentBranch:   v.GetString(KeyCurrentBranch),
		AuditDB:         v.GetString(KeyAuditDB),
	}
	policy, err := semver.ParsePolicy(v.GetString(KeyStrategy))
	if err != nil {
		return Inputs{}, fmt.Errorf("%s: %w", KeyStrategy, err)
	}
	in.Strategy = policy

	if err := in.Validate(); err != nil {
		return Inputs{}, err
	}
	return in, nil
}

// Validate checks value ranges and enums.
func (in Inputs) Validate() error {
	var errs []error
	if in.LookbackCommits < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyLookbackCommits))
	}
	if in.MaxCount < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyMaxCount))
	}
	if in.PackageManager != "" {
		if _, err := manifest.ParsePackageManager(in.PackageManager); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", KeyPackageManager, err))
		}
	}
	if in.BranchTemplate != "" && !strings.Contains(in.BranchTemplate, "{version}") {
		errs = append(errs, fmt.Errorf("%s must contain {version}", KeyBranchTemplate))
	}
	return errors.Join(errs...)
}

// Defaults is the ActionConfiguration used when no flow or branch rule of
// the policy document applies.
func (in Inputs) Defaults() flow.ActionConfiguration {
	return flow.ActionConfiguration{
		Strategy:       in.Strategy,
		BaseBranch:     in.BaseBranch,
		CreateBranch:   in.CreateBranch,
		TagPrereleases: in.TagPrereleases,
		BranchTemplate: in.BranchTemplate,
		PrereleaseID:   in.PrereleaseID,
	}
}

// PackageManagerIn resolves the configured package manager, detecting it
// from lockfiles in the repository directory when unset.
func (in Inputs) PackageManagerIn() manifest.PackageManager {
	if in.PackageManager != "" {
		if pm, err := manifest.ParsePackageManager(in.PackageManager); err == nil {
			return pm
		}
	}
	return manifest.DetectPackageManager(in.Dir)
}
