// Package security keeps every file the server reads or writes inside the
// configured directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator provides security validation for file paths
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a new path validator for the given directory
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{configuredDirectory: abs}, nil
}

// Directory returns the configured directory.
func (v *PathValidator) Directory() string {
	return v.configuredDirectory
}

// Resolve makes path absolute, joining relative paths onto the configured
// directory, and checks that the result stays inside it.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	within, err := v.IsPathWithinDirectory(absPath)
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}
	if !within {
		return "", fmt.Errorf("path is outside configured directory: %s", path)
	}
	return absPath, nil
}

// ResolveInput resolves an existing regular file inside the directory.
func (v *PathValidator) ResolveInput(path string) (string, error) {
	abs, err := v.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory: %s", path)
	}
	return abs, nil
}

// ResolveOutput resolves a file to be written. Its parent directory must
// exist inside the configured directory.
func (v *PathValidator) ResolveOutput(path string) (string, error) {
	abs, err := v.Resolve(path)
	if err != nil {
		return "", err
	}
	if abs == v.configuredDirectory {
		return "", fmt.Errorf("output path must name a file")
	}
	info, err := os.Stat(filepath.Dir(abs))
	if err != nil {
		return "", fmt.Errorf("cannot access output directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("output parent is not a directory: %s", filepath.Dir(abs))
	}
	if existing, err := os.Lstat(abs); err == nil && existing.IsDir() {
		return "", fmt.Errorf("output path is a directory: %s", path)
	}
	return abs, nil
}

// IsPathWithinDirectory checks if a path is within the configured directory,
// also after resolving symlinks on either side.
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)
	cleanDir := filepath.Clean(v.configuredDirectory)

	realPath := cleanPath
	if resolved, err := filepath.EvalSymlinks(cleanPath); err == nil {
		realPath = resolved
	} else if resolvedParent, err := filepath.EvalSymlinks(filepath.Dir(cleanPath)); err == nil {
		// not written yet
		realPath = filepath.Join(resolvedParent, filepath.Base(cleanPath))
	}

	realDir := cleanDir
	if resolved, err := filepath.EvalSymlinks(cleanDir); err == nil {
		realDir = resolved
	}

	pathOk := within(cleanPath, cleanDir) || within(cleanPath, realDir)
	realPathOk := within(realPath, cleanDir) || within(realPath, realDir)
	return pathOk && realPathOk, nil
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	dirWithSep := dir
	if !strings.HasSuffix(dirWithSep, string(filepath.Separator)) {
		dirWithSep += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dirWithSep)
}
