// Package filemanager prepares the files root that the file tools are
// confined to. It refuses system and credential directories, creates the
// root when missing and checks that it is writable.
package filemanager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"toolgate/internal/logging"
	"toolgate/pkg/fileops"
)

const probeName = ".toolgate-probe"

// ValidateRoot checks if the provided files root is acceptable without
// creating it. This is pure validation with no side effects.
func ValidateRoot(input string) error {
	path := strings.TrimSpace(input)
	if path == "" {
		return fmt.Errorf("files root cannot be empty")
	}

	// Check for ".." components in raw input (before expansion)
	if hasParentComponent(path) {
		return fmt.Errorf("path traversal not allowed")
	}

	expandedPath := fileops.ExpandPath(path)

	if !filepath.IsAbs(expandedPath) {
		return fmt.Errorf("path must be absolute or relative to home directory (~)")
	}

	// Symlinks first, so a link into /etc is reported as such
	if err := validateSymlinkSecurity(expandedPath); err != nil {
		return err
	}

	if isReservedDirectory(expandedPath) {
		return fmt.Errorf("cannot use system or reserved directories")
	}

	if info, err := os.Stat(expandedPath); err == nil && !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	return nil
}

// PrepareRoot validates root, creates it if needed and verifies it is
// writable. It returns the canonical root path that tools resolve against.
func PrepareRoot(root string, logger logging.Logger) (string, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	if err := ValidateRoot(root); err != nil {
		return "", fmt.Errorf("invalid files root: %w", err)
	}

	expandedPath := fileops.ExpandPath(strings.TrimSpace(root))
	if err := fileops.EnsureDirectoryExists(expandedPath); err != nil {
		return "", err
	}

	canonical, err := fileops.CanonicalRoot(expandedPath)
	if err != nil {
		return "", err
	}

	if err := probeWritable(canonical, logger); err != nil {
		return "", fmt.Errorf("files root is not writable: %w", err)
	}

	logger.Debug("Files root ready", "root", canonical)
	return canonical, nil
}

// probeWritable creates and removes a probe file through an os.Root.
func probeWritable(dir string, logger logging.Logger) error {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("cannot open root: %w", err)
	}
	defer root.Close()

	f, err := root.OpenFile(probeName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, writeErr := f.Write([]byte("probe"))
	closeErr := f.Close()

	if err := root.Remove(probeName); err != nil {
		// The directory is usable; only the probe is left behind
		logger.Warn("Could not remove probe file", "error", err)
	}

	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// validateSymlinkSecurity rejects paths that resolve, directly or through
// their nearest existing ancestor, into a reserved directory.
func validateSymlinkSecurity(path string) error {
	existing := filepath.Clean(path)
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return fmt.Errorf("cannot resolve parent directory of %s", path)
		}
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return fmt.Errorf("cannot resolve path: %w", err)
	}
	if isReservedDirectory(resolved) {
		return fmt.Errorf("path resolves to reserved directory: %s", resolved)
	}
	return nil
}

func hasParentComponent(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}
