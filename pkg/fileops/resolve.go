package fileops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

var (
	// ErrEmptyPath is returned for empty or whitespace-only paths
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrInvalidPath is returned for paths the operating system cannot represent
	ErrInvalidPath = errors.New("invalid path")

	// ErrOutsideRoot is returned when a path resolves outside its root
	ErrOutsideRoot = errors.New("path resolves outside root")

	// ErrNotRegularFile is returned when a file was expected
	ErrNotRegularFile = errors.New("path is not a regular file")

	// ErrNotDirectory is returned when a directory was expected
	ErrNotDirectory = errors.New("path is not a directory")
)

// ResolveMode selects what ResolveInRoot expects to find at the path.
type ResolveMode int

const (
	// ResolveFile requires an existing regular file
	ResolveFile ResolveMode = iota

	// ResolveDir requires an existing directory
	ResolveDir

	// ResolveCreate allows a path that does not exist yet. Its nearest existing
	// ancestor must resolve inside the root; if the path itself exists it must
	// be a regular file.
	ResolveCreate
)

// String returns the mode name for logs.
func (m ResolveMode) String() string {
	switch m {
	case ResolveFile:
		return "file"
	case ResolveDir:
		return "dir"
	case ResolveCreate:
		return "create"
	default:
		return fmt.Sprintf("ResolveMode(%d)", int(m))
	}
}

// CanonicalRoot returns the absolute, symlink-free form of root and checks
// that it is an existing directory.
func CanonicalRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", ErrEmptyPath
	}

	abs, err := filepath.Abs(ExpandPath(root))
	if err != nil {
		return "", fmt.Errorf("cannot resolve root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("cannot resolve root: %w", normalizeFSError(err))
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("cannot access root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root %w", ErrNotDirectory)
	}

	return resolved, nil
}

// ResolveInRoot resolves candidate against root and returns the canonical
// absolute path, guaranteed to lie inside the canonical root.
//
// Relative candidates are joined to the root. Absolute candidates are taken
// as-is and must already point inside the root (in either its literal or its
// symlink-resolved spelling).
//
// Errors wrap ErrEmptyPath, ErrInvalidPath, ErrOutsideRoot, ErrNotRegularFile,
// ErrNotDirectory, fs.ErrNotExist or fs.ErrPermission.
func ResolveInRoot(root, candidate string, mode ResolveMode) (string, error) {
	if strings.TrimSpace(candidate) == "" {
		return "", ErrEmptyPath
	}
	if strings.ContainsRune(candidate, 0) {
		return "", fmt.Errorf("%w: contains NUL byte", ErrInvalidPath)
	}

	base, err := CanonicalRoot(root)
	if err != nil {
		return "", err
	}
	literalBase, err := filepath.Abs(ExpandPath(root))
	if err != nil {
		return "", fmt.Errorf("cannot resolve root: %w", err)
	}

	var joined string
	if filepath.IsAbs(candidate) {
		joined = filepath.Clean(candidate)
	} else {
		joined = filepath.Join(base, candidate)
	}

	// Lexical check first: "../" escapes are rejected before any stat so that
	// the response does not depend on what exists outside the root.
	if !IsWithin(base, joined) && !IsWithin(literalBase, joined) {
		return "", ErrOutsideRoot
	}

	if mode == ResolveCreate {
		return resolveForCreate(base, joined)
	}

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", normalizeFSError(err)
	}
	if !IsWithin(base, resolved) {
		return "", ErrOutsideRoot
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", normalizeFSError(err)
	}

	switch mode {
	case ResolveFile:
		if !info.Mode().IsRegular() {
			return "", ErrNotRegularFile
		}
	case ResolveDir:
		if !info.IsDir() {
			return "", ErrNotDirectory
		}
	}

	return resolved, nil
}

// resolveForCreate walks up from joined to its nearest existing ancestor,
// resolves that ancestor's symlinks and re-attaches the missing components.
func resolveForCreate(base, joined string) (string, error) {
	existing := joined
	var missing []string

	for {
		_, err := os.Lstat(existing)
		if err == nil {
			break
		}
		err = normalizeFSError(err)
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", err
		}
		missing = append([]string{filepath.Base(existing)}, missing...)
		existing = parent
	}

	// A dangling symlink fails here, which keeps writes from following it.
	resolvedAncestor, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", normalizeFSError(err)
	}
	if !IsWithin(base, resolvedAncestor) {
		return "", ErrOutsideRoot
	}

	info, err := os.Stat(resolvedAncestor)
	if err != nil {
		return "", normalizeFSError(err)
	}

	if len(missing) == 0 {
		if !info.Mode().IsRegular() {
			return "", ErrNotRegularFile
		}
		return resolvedAncestor, nil
	}

	if !info.IsDir() {
		return "", ErrNotDirectory
	}

	return filepath.Join(append([]string{resolvedAncestor}, missing...)...), nil
}

// IsWithin reports whether target is base itself or lies beneath it.
// Both paths are compared after filepath.Clean; no symlinks are resolved.
func IsWithin(base, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(target))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// normalizeFSError folds "a path component is not a directory" into
// fs.ErrNotExist: "file.txt/child" simply does not exist.
func normalizeFSError(err error) error {
	if errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("%w: %v", fs.ErrNotExist, err)
	}
	return err
}
