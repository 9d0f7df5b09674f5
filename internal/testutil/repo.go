package testutil

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/bumpflow/internal/vcs"
)

// Files maps paths to full file contents for a commit.
type Files map[string]string

type node struct {
	hash    string
	message string
	parent  *node
	files   map[string]string // full tree snapshot
	changed map[string]bool
	commit  vcs.Commit
}

// Repo is an in-memory, linear-history repository implementing
// vcs.Repository. Each branch is a chain of first parents; merges are not
// modelled.
//
// Builder methods (Commit, Tag, Branch, Checkout) panic on misuse, which
// only ever signals a broken test.
type Repo struct {
	mu       sync.Mutex
	nodes    map[string]*node
	branches map[string]string
	tags     map[string]string
	head     string // branch name; empty when detached
	detached string
	clock    *DeterministicClock

	// Author is recorded on new commits.
	Author string
}

var _ vcs.Repository = (*Repo)(nil)

// NewRepo creates an empty repository with branch checked out.
func NewRepo(branch string) *Repo {
	if branch == "" {
		branch = "main"
	}
	return &Repo{
		nodes:    make(map[string]*node),
		branches: map[string]string{branch: ""},
		tags:     make(map[string]string),
		head:     branch,
		clock:    NewDeterministicClock(),
		Author:   "Test Author",
	}
}

func (r *Repo) headNode() *node {
	if r.head == "" {
		return r.nodes[r.detached]
	}
	return r.nodes[r.branches[r.head]]
}

// Commit records a commit on the current branch changing files, and returns
// its hash.
func (r *Repo) Commit(message string, files Files) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent := r.headNode()
	n := &node{
		message: message,
		parent:  parent,
		files:   make(map[string]string),
		changed: make(map[string]bool),
	}
	if parent != nil {
		for p, c := range parent.files {
			n.files[p] = c
		}
	}
	for p, c := range files {
		n.files[p] = c
		n.changed[p] = true
	}

	date := r.clock.Next()
	n.hash = hashNode(parent, message, date.Unix(), files)
	n.commit = vcs.Commit{Hash: n.hash, Author: r.Author, Date: date, Message: message}
	r.nodes[n.hash] = n

	if r.head == "" {
		r.detached = n.hash
	} else {
		r.branches[r.head] = n.hash
	}
	return n.hash
}

func hashNode(parent *node, message string, ts int64, files Files) string {
	h := sha1.New()
	if parent != nil {
		fmt.Fprintf(h, "parent %s\n", parent.hash)
	}
	fmt.Fprintf(h, "time %d\n%s\n", ts, message)
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(h, "%s\x00%s\x00", p, files[p])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Tag points name at HEAD.
func (r *Repo) Tag(name string) {
	r.TagAt(name, "HEAD")
}

// TagAt points name at ref.
func (r *Repo) TagAt(name, ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.resolve(ref)
	if err != nil {
		panic(fmt.Sprintf("testutil: tag %s: %v", name, err))
	}
	r.tags[name] = n.hash
}

// Branch creates name at HEAD without switching to it.
func (r *Repo) Branch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.branches[name]; ok {
		panic(fmt.Sprintf("testutil: branch %s already exists", name))
	}
	var hash string
	if n := r.headNode(); n != nil {
		hash = n.hash
	}
	r.branches[name] = hash
}

// Checkout switches HEAD to branch name, or detaches at any other ref.
func (r *Repo) Checkout(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.branches[ref]; ok {
		r.head, r.detached = ref, ""
		return
	}
	n, err := r.resolve(ref)
	if err != nil {
		panic(fmt.Sprintf("testutil: checkout %s: %v", ref, err))
	}
	r.head, r.detached = "", n.hash
}

// resolve understands HEAD, branches, tags, full hashes, unique hash
// prefixes of at least four characters, and any number of trailing ^.
func (r *Repo) resolve(ref string) (*node, error) {
	base := strings.TrimRight(ref, "^")
	ups := len(ref) - len(base)

	var n *node
	switch {
	case base == "HEAD":
		n = r.headNode()
	case r.branches[base] != "":
		n = r.nodes[r.branches[base]]
	case r.tags[base] != "":
		n = r.nodes[r.tags[base]]
	default:
		n = r.nodes[base]
		if n == nil && len(base) >= 4 {
			n = r.byPrefix(base)
		}
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %s", vcs.ErrNotFound, ref)
	}
	for i := 0; i < ups; i++ {
		n = n.parent
		if n == nil {
			return nil, fmt.Errorf("%w: %s", vcs.ErrNotFound, ref)
		}
	}
	return n, nil
}

func (r *Repo) byPrefix(prefix string) *node {
	var found *node
	for h, n := range r.nodes {
		if strings.HasPrefix(h, prefix) {
			if found != nil {
				return nil
			}
			found = n
		}
	}
	return found
}

// Log walks first parents from the filter's ref, newest first.
func (r *Repo) Log(_ context.Context, f vcs.LogFilter) ([]vcs.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref := f.Ref
	if ref == "" {
		ref = "HEAD"
	}
	start, err := r.resolve(ref)
	if err != nil {
		if ref == "HEAD" {
			return nil, nil
		}
		return nil, err
	}

	stop := map[string]bool{}
	if f.Since != "" {
		since, err := r.resolve(f.Since)
		if err != nil {
			return nil, err
		}
		for n := since; n != nil; n = n.parent {
			stop[n.hash] = true
		}
	}

	var match func(*node) bool
	if f.LineRange != "" {
		if f.Path == "" {
			return nil, fmt.Errorf("log: line range requires a path")
		}
		re, err := lineRangePattern(f.LineRange)
		if err != nil {
			return nil, err
		}
		match = func(n *node) bool { return lineChanged(n, f.Path, re) }
	}

	var out []vcs.Commit
	for n := start; n != nil && !stop[n.hash]; n = n.parent {
		if f.Path != "" && !n.changed[f.Path] {
			continue
		}
		if match != nil {
			if !match(n) {
				continue
			}
			out = append(out, vcs.Commit{Hash: n.hash})
		} else {
			out = append(out, n.commit)
		}
		if f.MaxCount > 0 && len(out) == f.MaxCount {
			break
		}
	}
	return out, nil
}

// lineRangePattern extracts the regex of a `/regex/,+N` line range.
func lineRangePattern(lr string) (*regexp.Regexp, error) {
	if !strings.HasPrefix(lr, "/") {
		return nil, fmt.Errorf("log: unsupported line range %q", lr)
	}
	end := strings.Index(lr[1:], "/")
	if end < 0 {
		return nil, fmt.Errorf("log: unterminated line range %q", lr)
	}
	return regexp.Compile(lr[1 : end+1])
}

func matchedLine(content string, re *regexp.Regexp) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		if re.MatchString(line) {
			return line, true
		}
	}
	return "", false
}

// lineChanged reports whether the first line matching re in path differs
// between n and its parent, including its introduction.
func lineChanged(n *node, path string, re *regexp.Regexp) bool {
	cur, ok := matchedLine(n.files[path], re)
	if !ok {
		return false
	}
	if n.parent == nil {
		return true
	}
	prev, ok := matchedLine(n.parent.files[path], re)
	return !ok || prev != cur
}

// Tags lists tag names in lexical order, like `git tag --list`.
func (r *Repo) Tags(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tags))
	for name := range r.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Diff renders a minimal line diff of path: removed lines then added lines,
// with no context lines, matching git diff --unified=0. A From past the root
// commit diffs against an empty file.
func (r *Repo) Diff(_ context.Context, rg vcs.Range, path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	to, err := r.resolve(rg.To)
	if err != nil {
		return "", err
	}
	var before string
	if from, err := r.resolve(rg.From); err == nil {
		before = from.files[path]
	} else if !(strings.HasSuffix(rg.From, "^") && to.parent == nil) {
		return "", err
	}
	return lineDiff(path, before, to.files[path]), nil
}

func lineDiff(path, before, after string) string {
	if before == after {
		return ""
	}
	oldLines, newLines := splitLines(before), splitLines(after)
	inOld, inNew := set(oldLines), set(newLines)

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", path, path)
	for _, l := range oldLines {
		if !inNew[l] {
			b.WriteString("-" + l + "\n")
		}
	}
	for _, l := range newLines {
		if !inOld[l] {
			b.WriteString("+" + l + "\n")
		}
	}
	return b.String()
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func set(lines []string) map[string]bool {
	m := make(map[string]bool, len(lines))
	for _, l := range lines {
		m[l] = true
	}
	return m
}

// Show returns path at ref.
func (r *Repo) Show(_ context.Context, ref, path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.resolve(ref)
	if err != nil {
		return "", err
	}
	content, ok := n.files[path]
	if !ok {
		return "", fmt.Errorf("%w: %s:%s", vcs.ErrNotFound, ref, path)
	}
	return content, nil
}

// RevParse resolves ref to a full hash.
func (r *Repo) RevParse(_ context.Context, ref string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.resolve(ref)
	if err != nil {
		return "", err
	}
	return n.hash, nil
}

// CurrentBranch returns the checked-out branch.
func (r *Repo) CurrentBranch(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.head == "" {
		return "", vcs.ErrDetachedHead
	}
	return r.head, nil
}
