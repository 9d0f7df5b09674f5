// Package manifest reads the version field of a package manifest.
package manifest

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/roach88/bumpflow/internal/vcs"
)

// DefaultPath is the manifest read when none is configured.
const DefaultPath = "package.json"

// DefaultVersion is reported when a manifest has no readable version.
const DefaultVersion = "0.0.0"

// ErrNoVersion is returned when the manifest has no string version field.
var ErrNoVersion = errors.New("manifest has no version field")

// VersionOf extracts the top-level "version" string from manifest content.
// The field is treated as an opaque string.
func VersionOf(content string) (string, error) {
	if !gjson.Valid(content) {
		return "", fmt.Errorf("manifest is not valid JSON")
	}
	v := gjson.Get(content, "version")
	if v.Type != gjson.String || v.String() == "" {
		return "", ErrNoVersion
	}
	return v.String(), nil
}

// Reader reads manifest versions at arbitrary refs.
type Reader struct {
	Repo vcs.Repository
	Path string
}

// NewReader returns a Reader for path, defaulting to package.json.
func NewReader(repo vcs.Repository, path string) *Reader {
	if path == "" {
		path = DefaultPath
	}
	return &Reader{Repo: repo, Path: path}
}

// VersionAt reads the version at ref.
func (r *Reader) VersionAt(ctx context.Context, ref string) (string, error) {
	content, err := r.Repo.Show(ctx, ref, r.Path)
	if err != nil {
		return "", fmt.Errorf("read %s at %s: %w", r.Path, ref, err)
	}
	v, err := VersionOf(content)
	if err != nil {
		return "", fmt.Errorf("%s at %s: %w", r.Path, ref, err)
	}
	return v, nil
}

// VersionAtOrDefault is VersionAt falling back to DefaultVersion.
func (r *Reader) VersionAtOrDefault(ctx context.Context, ref string) string {
	v, err := r.VersionAt(ctx, ref)
	if err != nil {
		return DefaultVersion
	}
	return v
}
