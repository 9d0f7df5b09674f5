package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/bumpflow/internal/canonical"
	"github.com/roach88/bumpflow/internal/commits"
	"github.com/roach88/bumpflow/internal/flow"
	"github.com/roach88/bumpflow/internal/manifest"
	"github.com/roach88/bumpflow/internal/reference"
	"github.com/roach88/bumpflow/internal/semver"
	"github.com/roach88/bumpflow/internal/store"
	"github.com/roach88/bumpflow/internal/tactic"
	"github.com/roach88/bumpflow/internal/vcs"
)

// DefaultBranchTemplate names release branches when no template is set.
const DefaultBranchTemplate = "release/{version}"

// TagPrefix is prepended to versions to form tag names.
const TagPrefix = "v"

// Engine runs the decision pipeline against one repository.
type Engine struct {
	repo   vcs.Repository
	logger *slog.Logger
	ids    IDGenerator
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator sets the run ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithClock sets the source of Decision.CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over repo.
func New(repo vcs.Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		logger: slog.Default(),
		ids:    UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request holds the inputs of one run.
type Request struct {
	// CurrentBranch overrides the checked-out branch, e.g. in CI where the
	// checkout is detached.
	CurrentBranch string
	EventType     string
	TargetBranch  string

	// Defaults apply when no flow or branch rule of Policy matches.
	Defaults flow.ActionConfiguration
	Policy   *flow.VersioningConfig

	Manifest        string
	LookbackCommits int
	MaxCount        int
	PackageManager  manifest.PackageManager
}

// Decision is the result of a run.
type Decision struct {
	RunID      string    `json:"run_id"`
	DecisionID string    `json:"decision_id"`
	CreatedAt  time.Time `json:"created_at"`

	Git            reference.GitInfo        `json:"git"`
	Branch         string                   `json:"branch"`
	Action         flow.ActionConfiguration `json:"action"`
	Policy         semver.Policy            `json:"policy"`
	Reference      reference.Point          `json:"reference"`
	PackageManager manifest.PackageManager  `json:"package_manager"`

	Commits        []commits.Info  `json:"commits,omitempty"`
	Bump           semver.BumpType `json:"bump"`
	Forced         bool            `json:"forced,omitempty"`
	CurrentVersion string          `json:"current_version"`
	NextVersion    string          `json:"next_version,omitempty"`
	ShouldBump     bool            `json:"should_bump"`
	Tag            string          `json:"tag,omitempty"`
	ReleaseBranch  string          `json:"release_branch,omitempty"`

	Outcomes []store.StageOutcome `json:"outcomes"`
}

// Decide runs the full pipeline for req.
func (e *Engine) Decide(ctx context.Context, req Request) (*Decision, error) {
	d, state, err := e.discover(ctx, req)
	if err != nil {
		return nil, err
	}
	log := e.logger.With("run_id", d.RunID)

	history, err := e.repo.Log(ctx, vcs.LogFilter{Since: d.Reference.ReferenceCommit})
	if err != nil {
		return nil, newError(ErrCodeRepository, StageClassify, "read commits since reference", err)
	}
	classifier := &commits.Classifier{Logger: log}
	cls, err := classifier.Classify(ctx, history, d.Reference.ReferenceCommit)
	d.Outcomes = append(d.Outcomes, staged(StageClassify, cls.Outcomes)...)
	if err != nil {
		log.Info("commit classification exhausted, no bump signal", "error", err)
	}
	d.Commits = cls.Commits
	d.Bump = cls.Bump

	reader := manifest.NewReader(e.repo, state.ManifestPath)
	current, err := reader.VersionAt(ctx, "HEAD")
	if err != nil {
		log.Debug("manifest version unavailable, using reference version", "error", err)
		current = d.Reference.ReferenceVersion
	}
	d.CurrentVersion = current

	e.decide(d)

	if err := identify(d); err != nil {
		return nil, newError(ErrCodeDecision, StageDecide, "compute decision id", err)
	}
	log.Info("decision",
		"branch", d.Branch,
		"policy", d.Policy,
		"bump", d.Bump.String(),
		"current", d.CurrentVersion,
		"next", d.NextVersion)
	return d, nil
}

// Discover runs the pipeline up to and including reference discovery.
func (e *Engine) Discover(ctx context.Context, req Request) (*Decision, error) {
	d, _, err := e.discover(ctx, req)
	return d, err
}

func (e *Engine) discover(ctx context.Context, req Request) (*Decision, reference.State, error) {
	d := &Decision{
		RunID:          e.ids.NewID(),
		CreatedAt:      e.now().UTC(),
		PackageManager: req.PackageManager,
	}
	log := e.logger.With("run_id", d.RunID)

	info, outcomes := gather(ctx, e.repo, log)
	d.Git = info
	d.Outcomes = append(d.Outcomes, staged(StageGather, outcomes)...)

	d.Branch = req.CurrentBranch
	if d.Branch == "" {
		d.Branch = info.Branch
	}

	action, err := flow.Resolve(req.Policy, flow.Query{
		CurrentBranch: d.Branch,
		EventType:     req.EventType,
		TargetBranch:  req.TargetBranch,
	}, req.Defaults)
	if err != nil {
		return nil, reference.State{}, newError(ErrCodePolicy, StageFlow, "resolve policy", err)
	}
	if action.BranchTemplate == "" {
		action.BranchTemplate = DefaultBranchTemplate
	}
	d.Action = action
	d.Policy = action.Strategy
	log.Debug("policy resolved", "source", action.Source, "strategy", action.Strategy, "base", action.BaseBranch)

	state := reference.State{
		BaseBranch:      action.BaseBranch,
		CurrentBranch:   d.Branch,
		ManifestPath:    req.Manifest,
		LookbackCommits: req.LookbackCommits,
		MaxCount:        req.MaxCount,
		GitInfo:         &info,
	}.WithDefaults()
	if info.Head != "" {
		state.ActiveBranch = info.Head
	}

	disc, err := reference.NewDiscoverer(e.repo, log).Discover(ctx, state)
	d.Outcomes = append(d.Outcomes, staged(StageReference, disc.Outcomes)...)
	if err != nil {
		return nil, state, newError(ErrCodeNoReference, StageReference, "discover reference point", err)
	}
	d.Reference = disc.Point
	return d, state, nil
}

// decide fills the version fields of d from its signal and policy.
func (e *Engine) decide(d *Decision) {
	if d.Bump == semver.BumpNone && d.Reference.ShouldForceBump {
		d.Bump = semver.BumpPatch
		d.Forced = true
	}

	if d.Reference.ShouldFinalizeVersions && d.Policy != semver.PolicyDoNothing {
		if v, err := semver.Parse(d.CurrentVersion); err == nil && v.IsPrerelease() {
			d.Policy = semver.PolicyFinalize
		}
	}

	decider := semver.Decider{PrereleaseID: d.Action.PrereleaseID}
	next, ok := decider.Decide(d.CurrentVersion, d.Bump, d.Policy)
	if !ok {
		return
	}
	d.NextVersion = next
	d.ShouldBump = true

	prerelease := false
	if v, err := semver.Parse(next); err == nil {
		prerelease = v.IsPrerelease()
	}
	if !prerelease || d.Action.TagPrereleases {
		d.Tag = TagPrefix + next
	}
	if d.Action.CreateBranch {
		d.ReleaseBranch = RenderBranch(d.Action.BranchTemplate, next)
	}
}

// RenderBranch substitutes version into template.
func RenderBranch(template, version string) string {
	if template == "" {
		template = DefaultBranchTemplate
	}
	return strings.ReplaceAll(template, "{version}", version)
}

// identify sets the content-addressed DecisionID. Run-specific fields (run
// ID, timestamps, outcome messages) are excluded.
func identify(d *Decision) error {
	fields := map[string]any{
		"head":              d.Git.Head,
		"branch":            d.Branch,
		"policy":            string(d.Policy),
		"source":            d.Action.Source,
		"reference_commit":  d.Reference.ReferenceCommit,
		"reference_version": d.Reference.ReferenceVersion,
		"current_version":   d.CurrentVersion,
		"bump":              d.Bump.String(),
		"next_version":      d.NextVersion,
		"tag":               d.Tag,
		"release_branch":    d.ReleaseBranch,
	}
	id, err := canonical.DecisionID(fields)
	if err != nil {
		return err
	}
	d.DecisionID = id
	return nil
}

func staged(stage string, outcomes []tactic.Outcome) []store.StageOutcome {
	out := make([]store.StageOutcome, len(outcomes))
	for i, o := range outcomes {
		out[i] = store.StageOutcome{Stage: stage, Outcome: o}
	}
	return out
}
