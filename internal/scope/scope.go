// Package scope classifies filesystem entries for indexing and enforces the
// project root boundary.
package scope

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/reporecall/pkg/types"
)

// DefaultMaxFileSize is the size ceiling for indexable files (10 MB)
const DefaultMaxFileSize = 10 << 20

// Root is a canonical project root
type Root struct {
	Path string // Absolute, symlinks resolved
}

// NewRoot canonicalizes a project root. The directory must exist.
func NewRoot(projectRoot string) (*Root, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidScope, projectRoot)
	}
	return &Root{Path: resolved}, nil
}

// Resolve returns the canonical scan root for an optional scope. An empty
// scope means the project root itself. Relative scopes are joined to the
// project root. The result is rejected with ErrOutsideRoot if it escapes the
// root after symlink resolution.
func (r *Root) Resolve(scopePath string) (string, error) {
	if scopePath == "" || scopePath == "." {
		return r.Path, nil
	}

	candidate := scopePath
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(r.Path, candidate)
	}
	candidate = filepath.Clean(candidate)

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		if !r.Contains(candidate) {
			return "", fmt.Errorf("%w: %s", types.ErrOutsideRoot, scopePath)
		}
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", types.ErrInvalidScope, scopePath)
		}
		return "", fmt.Errorf("failed to resolve scope: %w", err)
	}
	if !r.Contains(resolved) {
		return "", fmt.Errorf("%w: %s", types.ErrOutsideRoot, scopePath)
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", types.ErrInvalidScope, scopePath)
	}
	return resolved, nil
}

// Contains reports whether an absolute path is the root or lies beneath it
func (r *Root) Contains(path string) bool {
	rel, err := filepath.Rel(r.Path, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Rel returns the slash separated path relative to the root
func (r *Root) Rel(path string) (string, error) {
	if !r.Contains(path) {
		return "", fmt.Errorf("%w: %s", types.ErrOutsideRoot, path)
	}
	rel, err := filepath.Rel(r.Path, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Canonical resolves symlinks in path and verifies it stays inside the root
func (r *Root) Canonical(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	if !r.Contains(resolved) {
		return "", fmt.Errorf("%w: %s", types.ErrOutsideRoot, path)
	}
	return resolved, nil
}
