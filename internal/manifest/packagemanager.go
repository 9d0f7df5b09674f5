package manifest

import (
	"fmt"
	"os"
	"path/filepath"
)

// PackageManager is the closed set of supported package managers.
type PackageManager int

const (
	Npm PackageManager = iota
	Yarn
	Pnpm
)

func (p PackageManager) String() string {
	switch p {
	case Npm:
		return "npm"
	case Yarn:
		return "yarn"
	case Pnpm:
		return "pnpm"
	default:
		return "unknown"
	}
}

// Lockfile returns the lockfile name owned by p.
func (p PackageManager) Lockfile() string {
	switch p {
	case Yarn:
		return "yarn.lock"
	case Pnpm:
		return "pnpm-lock.yaml"
	default:
		return "package-lock.json"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p PackageManager) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePackageManager parses a package manager name. Empty means npm.
func ParsePackageManager(s string) (PackageManager, error) {
	switch s {
	case "", "npm":
		return Npm, nil
	case "yarn":
		return Yarn, nil
	case "pnpm":
		return Pnpm, nil
	default:
		return Npm, fmt.Errorf("unknown package manager %q (want npm, yarn or pnpm)", s)
	}
}

// DetectPackageManager picks the package manager from the lockfile present
// in dir. pnpm and yarn lockfiles take precedence over npm's.
func DetectPackageManager(dir string) PackageManager {
	for _, p := range []PackageManager{Pnpm, Yarn, Npm} {
		if _, err := os.Stat(filepath.Join(dir, p.Lockfile())); err == nil {
			return p
		}
	}
	return Npm
}
