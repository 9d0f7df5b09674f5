// Package vcs defines the version-control collaborator used by discovery and
// classification, and its git subprocess implementation.
package vcs

import (
	"context"
	"errors"
	"time"
)

// ErrDetachedHead is returned by CurrentBranch when HEAD is not on a branch.
var ErrDetachedHead = errors.New("HEAD is detached")

// ErrNotFound is returned when a ref or path does not exist.
var ErrNotFound = errors.New("not found")

// Commit is one log entry.
type Commit struct {
	Hash    string
	Author  string
	Date    time.Time
	Message string // full message: header, blank line, body, footers
}

// LogFilter narrows a log query.
type LogFilter struct {
	// Ref is the revision to walk from. Empty means HEAD.
	Ref string

	// Since excludes Since and its ancestors (Since..Ref).
	Since string

	// Path restricts to commits touching this path.
	Path string

	// LineRange restricts to commits changing the lines matched by a git
	// line-log range such as `/"version":/,+1`. Requires Path. Commits
	// returned with a LineRange carry only their Hash.
	LineRange string

	// MaxCount bounds the number of commits. Zero means unbounded.
	MaxCount int
}

// Range is a from..to diff range.
type Range struct {
	From string
	To   string
}

// ParentOf returns the range covering the single commit hash.
func ParentOf(hash string) Range {
	return Range{From: hash + "^", To: hash}
}

// Repository is the narrow view of a repository the core needs.
// Log must return commits newest first.
type Repository interface {
	Log(ctx context.Context, filter LogFilter) ([]Commit, error)
	Tags(ctx context.Context) ([]string, error)
	Diff(ctx context.Context, r Range, path string) (string, error)
	Show(ctx context.Context, ref, path string) (string, error)
	RevParse(ctx context.Context, ref string) (string, error)
	CurrentBranch(ctx context.Context) (string, error)
}
