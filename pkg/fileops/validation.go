package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrFileTooLarge is returned when a file or payload exceeds its size limit
	ErrFileTooLarge = errors.New("file exceeds size limit")

	// ErrExtensionNotAllowed is returned when a file extension is not on the allow-list
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
)

// ExpandPath expands a path that starts with "~/" to the user's home directory.
// This is a utility function for handling user home directory shortcuts.
//
// Usage example:
//
//	expanded := fileops.ExpandPath("~/Documents/file.txt")
//	// Returns something like "/home/user/Documents/file.txt"
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// ValidateSize checks a byte count against a limit.
func ValidateSize(size, maxSize int64) error {
	if size > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds limit %d bytes", ErrFileTooLarge, size, maxSize)
	}
	return nil
}

// NormalizeExtensions lowercases extensions and ensures a leading dot.
// Empty entries are dropped.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// ValidateExtension checks the extension of path against an allow-list
// produced by NormalizeExtensions. An empty allow-list allows everything.
func ValidateExtension(path string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	if ext == "" {
		return fmt.Errorf("%w: no extension", ErrExtensionNotAllowed)
	}
	return fmt.Errorf("%w: %s", ErrExtensionNotAllowed, ext)
}
