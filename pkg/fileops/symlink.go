package fileops

import (
	"fmt"
	"os"
	"path/filepath"
)

// IsSymlink checks if a given path is a symbolic link.
// This function uses lstat to examine the file without following symlinks.
//
// Usage example:
//
//	isLink, err := fileops.IsSymlink("/path/to/potential/symlink")
//	if err != nil {
//	    return fmt.Errorf("failed to check symlink: %w", err)
//	}
func IsSymlink(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat path: %w", err)
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}

// ResolveSymlink resolves a symbolic link and returns the final target path.
// This function follows symlink chains until it reaches a non-symlink target.
func ResolveSymlink(linkPath string) (string, error) {
	resolved, err := filepath.EvalSymlinks(linkPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlink: %w", normalizeFSError(err))
	}
	return resolved, nil
}

// ValidateSymlinkSecurity validates that a symlink resolves inside one of the
// allowed base paths. It returns the canonical target on success.
//
// The function checks:
//   - Symlink exists and is actually a symlink
//   - Symlink can be resolved (not broken, no loops)
//   - Resolved target is within one of the allowed base paths, comparing
//     canonical forms of both sides
//
// Usage example:
//
//	target, err := fileops.ValidateSymlinkSecurity("/project/link.txt", []string{"/safe/storage"})
//	if err != nil {
//	    return fmt.Errorf("symlink security check failed: %w", err)
//	}
func ValidateSymlinkSecurity(linkPath string, allowedBasePaths []string) (string, error) {
	isLink, err := IsSymlink(linkPath)
	if err != nil {
		return "", fmt.Errorf("cannot check if path is symlink: %w", err)
	}
	if !isLink {
		return "", fmt.Errorf("path is not a symbolic link: %s", linkPath)
	}

	resolved, err := ResolveSymlink(linkPath)
	if err != nil {
		return "", err
	}

	for _, basePath := range allowedBasePaths {
		baseCanonical, err := CanonicalRoot(basePath)
		if err != nil {
			continue
		}
		if IsWithin(baseCanonical, resolved) {
			return resolved, nil
		}
	}

	return "", fmt.Errorf("symlink target: %w", ErrOutsideRoot)
}
