package flow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a policy document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatCUE  Format = "cue"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".cue":
		return FormatCUE, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported policy file extension %q", filepath.Ext(path))
	}
}

// LoadFile reads and decodes a policy document. Unknown fields are
// rejected so typos surface instead of being silently ignored.
func LoadFile(path string) (*VersioningConfig, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	cfg, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses data in format.
func Decode(data []byte, format Format) (*VersioningConfig, error) {
	var cfg VersioningConfig
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case FormatTOML:
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("failed to parse TOML: unknown fields %s", strings.Join(keys, ", "))
		}
	case FormatCUE, FormatJSON:
		if err := decodeCUE(data, &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported policy format %q", format)
	}
	return &cfg, nil
}

var topLevelFields = map[string]bool{"presets": true, "branches": true, "flows": true}

// decodeCUE evaluates data as CUE (JSON is a subset) and decodes the
// concrete result.
func decodeCUE(data []byte, cfg *VersioningConfig) error {
	v := cuecontext.New().CompileBytes(data)
	if err := v.Err(); err != nil {
		return fmt.Errorf("failed to compile CUE: %w", err)
	}

	iter, err := v.Fields()
	if err != nil {
		return fmt.Errorf("policy must be a struct: %w", err)
	}
	var unknown []string
	for iter.Next() {
		if !topLevelFields[iter.Selector().String()] {
			unknown = append(unknown, iter.Selector().String())
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown fields %s", strings.Join(unknown, ", "))
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("policy is not concrete: %w", err)
	}
	if err := v.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode CUE: %w", err)
	}
	return nil
}
