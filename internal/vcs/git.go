package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Compile-time check.
var _ Repository = (*Git)(nil)

const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// gitRetryMaxElapsed bounds retries on lock contention, e.g. a concurrent
// CI step holding .git/index.lock.
const gitRetryMaxElapsed = 10 * time.Second

// Git runs git subprocesses in Dir.
type Git struct {
	Dir    string
	Binary string // defaults to "git"
	Logger *slog.Logger
}

// NewGit returns a Git adapter for the repository at dir.
func NewGit(dir string, logger *slog.Logger) *Git {
	if logger == nil {
		logger = slog.Default()
	}
	return &Git{Dir: dir, Binary: "git", Logger: logger}
}

func newGitBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = gitRetryMaxElapsed
	return bo
}

// isRetryable matches git failures caused by another process holding a lock.
func isRetryable(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "index.lock") ||
		strings.Contains(s, "cannot lock ref") ||
		strings.Contains(s, "unable to create") && strings.Contains(s, ".lock")
}

// run executes git with args and returns trimmed stdout.
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}

	var out string
	op := func() error {
		cmd := exec.CommandContext(ctx, bin, args...)
		cmd.Dir = g.Dir
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			wrapped := fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), msg, err)
			if isRetryable(msg) {
				g.log().Debug("git lock contention, retrying", "args", args)
				return wrapped
			}
			return backoff.Permanent(wrapped)
		}
		out = strings.TrimRight(stdout.String(), " \t\r\n")
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(newGitBackoff(), ctx)); err != nil {
		return "", err
	}
	return out, nil
}

func (g *Git) log() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// Log lists commits newest first.
func (g *Git) Log(ctx context.Context, f LogFilter) ([]Commit, error) {
	args := []string{"log"}
	if f.MaxCount > 0 {
		args = append(args, fmt.Sprintf("--max-count=%d", f.MaxCount))
	}

	if f.LineRange != "" {
		if f.Path == "" {
			return nil, errors.New("git log: line range requires a path")
		}
		args = append(args, "--format="+recordSep+"%H", fmt.Sprintf("-L%s:%s", f.LineRange, f.Path))
		args = append(args, revision(f))
		out, err := g.run(ctx, args...)
		if err != nil {
			return nil, err
		}
		return parseHashRecords(out), nil
	}

	args = append(args, "--format=%H"+fieldSep+"%an"+fieldSep+"%aI"+fieldSep+"%B"+recordSep)
	args = append(args, revision(f))
	if f.Path != "" {
		args = append(args, "--", f.Path)
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseLogRecords(out)
}

func revision(f LogFilter) string {
	ref := f.Ref
	if ref == "" {
		ref = "HEAD"
	}
	if f.Since != "" {
		return f.Since + ".." + ref
	}
	return ref
}

// parseHashRecords extracts the hash leading each record. Line-log output
// interleaves patches after the format line, which are ignored.
func parseHashRecords(out string) []Commit {
	var commits []Commit
	for _, rec := range strings.Split(out, recordSep) {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		hash, _, _ := strings.Cut(rec, "\n")
		commits = append(commits, Commit{Hash: strings.TrimSpace(hash)})
	}
	return commits
}

func parseLogRecords(out string) ([]Commit, error) {
	var commits []Commit
	for _, rec := range strings.Split(out, recordSep) {
		rec = strings.TrimLeft(rec, "\r\n")
		if strings.TrimSpace(rec) == "" {
			continue
		}
		parts := strings.SplitN(rec, fieldSep, 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("git log: malformed record %q", rec)
		}
		c := Commit{
			Hash:    parts[0],
			Author:  parts[1],
			Message: strings.TrimSpace(parts[3]),
		}
		if ts, err := time.Parse(time.RFC3339, parts[2]); err == nil {
			c.Date = ts
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// Tags lists all tag names.
func (g *Git) Tags(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "tag", "--list")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Diff returns the zero-context diff of path across r, so only changed lines
// appear. When r.From is the parent of a root commit, the commit's own patch
// is returned instead.
func (g *Git) Diff(ctx context.Context, r Range, path string) (string, error) {
	out, err := g.run(ctx, "diff", "--unified=0", r.From, r.To, "--", path)
	if err == nil {
		return out, nil
	}
	if strings.HasSuffix(r.From, "^") && strings.TrimSuffix(r.From, "^") == r.To {
		return g.run(ctx, "show", "--format=", "--unified=0", r.To, "--", path)
	}
	return "", err
}

// Show returns the content of path at ref.
func (g *Git) Show(ctx context.Context, ref, path string) (string, error) {
	out, err := g.run(ctx, "show", ref+":"+path)
	if err != nil {
		return "", fmt.Errorf("%w: %s:%s: %v", ErrNotFound, ref, path, err)
	}
	return out, nil
}

// RevParse resolves ref to a commit hash.
func (g *Git) RevParse(ctx context.Context, ref string) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, ref, err)
	}
	return out, nil
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if out == "HEAD" {
		return "", ErrDetachedHead
	}
	return out, nil
}
