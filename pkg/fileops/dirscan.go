package fileops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ErrScanLimit is returned when a scan stops because MaxFiles was reached.
// Results gathered up to that point are still returned.
var ErrScanLimit = errors.New("scan file limit reached")

// DirectoryScanOptions configures the behavior of directory scanning operations.
type DirectoryScanOptions struct {
	// SkipUnreadableDirs determines whether to skip directories that cannot be read
	// or to return an error. Setting to true makes scanning more resilient.
	SkipUnreadableDirs bool

	// MaxDepth limits the maximum recursion depth for directory traversal.
	MaxDepth int

	// MaxFiles stops the scan once this many files were collected (0 = no limit).
	MaxFiles int

	// IncludeHidden determines whether to include files and directories that start with '.'
	IncludeHidden bool

	// SkipPatterns contains directory names that should be skipped during scanning.
	// These are exact matches against directory names (not full paths).
	SkipPatterns []string

	// FileFilter is an optional function that determines whether a file should be included.
	FileFilter func(filename string) bool
}

// FileInfo represents information about a discovered file during directory scanning.
type FileInfo struct {
	// Name is the base filename without path components
	Name string

	// Path is the relative path from the scan root to this file
	Path string

	// Size is the file size in bytes (of the target, for symlinks)
	Size int64

	// ModTime is the last modification time
	ModTime time.Time

	// Symlink is true when the entry is a link whose target stays inside the root
	Symlink bool
}

// SecureDirectoryScanner provides secure, configurable directory scanning with
// built-in protection against directory traversal and symlink attacks.
//
// The scanner operates within a security boundary defined by an os.Root,
// preventing access to files outside the designated scan area.
type SecureDirectoryScanner struct {
	root     *os.Root
	opts     *DirectoryScanOptions
	results  []FileInfo
	visited  map[string]bool
	scanRoot string
}

// NewDirectoryScanner creates a new secure directory scanner for the given path.
// scanPath must be an existing directory; callers receiving untrusted input
// should pass it through ResolveInRoot with ResolveDir first.
//
// Usage example:
//
//	scanner, err := fileops.NewDirectoryScanner(dir, &fileops.DirectoryScanOptions{MaxDepth: 10})
//	if err != nil {
//	    return fmt.Errorf("failed to create scanner: %w", err)
//	}
//	defer scanner.Close()
func NewDirectoryScanner(scanPath string, opts *DirectoryScanOptions) (*SecureDirectoryScanner, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}

	canonical, err := CanonicalRoot(scanPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access scan path: %w", err)
	}

	root, err := os.OpenRoot(canonical)
	if err != nil {
		return nil, fmt.Errorf("cannot create secure scan root: %w", err)
	}

	return &SecureDirectoryScanner{
		root:     root,
		opts:     opts,
		visited:  make(map[string]bool),
		scanRoot: canonical,
	}, nil
}

// DefaultScanOptions returns sensible default scanning options.
func DefaultScanOptions() *DirectoryScanOptions {
	return &DirectoryScanOptions{
		SkipUnreadableDirs: true,
		MaxDepth:           10,
		MaxFiles:           1000,
		IncludeHidden:      false,
		SkipPatterns:       defaultSkipPatterns(),
	}
}

func defaultSkipPatterns() []string {
	return []string{
		"node_modules",
		".git",
		"vendor",
		"__pycache__",
		".cache",
		".idea",
		".vscode",
	}
}

// Close releases resources associated with the scanner.
func (s *SecureDirectoryScanner) Close() error {
	if s.root != nil {
		err := s.root.Close()
		s.root = nil
		return err
	}
	return nil
}

// ScanDirectory performs a recursive scan of the configured directory.
// Results are sorted by path. When MaxFiles is hit the collected results are
// returned together with an error wrapping ErrScanLimit. A cancelled ctx
// aborts the scan with ctx.Err().
func (s *SecureDirectoryScanner) ScanDirectory(ctx context.Context) ([]FileInfo, error) {
	if s.root == nil {
		return nil, fmt.Errorf("scanner has been closed")
	}

	s.results = nil
	s.visited = make(map[string]bool)

	err := s.scanRecursive(ctx, ".", 1)

	results := slices.Clone(s.results)
	slices.SortFunc(results, func(a, b FileInfo) int {
		return strings.Compare(a.Path, b.Path)
	})

	if err != nil {
		if errors.Is(err, ErrScanLimit) {
			return results, err
		}
		return nil, fmt.Errorf("directory scan failed: %w", err)
	}
	return results, nil
}

func (s *SecureDirectoryScanner) scanRecursive(ctx context.Context, relativePath string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > s.opts.MaxDepth {
		return nil
	}

	cleanPath := filepath.Clean(relativePath)
	if s.visited[cleanPath] {
		return nil
	}
	s.visited[cleanPath] = true

	if cleanPath != "." && s.shouldSkipDirectory(filepath.Base(cleanPath)) {
		return nil
	}

	dir, err := s.root.Open(cleanPath)
	if err != nil {
		if s.opts.SkipUnreadableDirs {
			return nil
		}
		return fmt.Errorf("failed to open directory %s: %w", cleanPath, err)
	}
	defer dir.Close()

	entries, err := dir.ReadDir(-1)
	if err != nil {
		if s.opts.SkipUnreadableDirs {
			return nil
		}
		return fmt.Errorf("failed to read directory %s: %w", cleanPath, err)
	}

	for _, entry := range entries {
		entryPath := filepath.Join(cleanPath, entry.Name())

		switch {
		case entry.IsDir():
			if err := s.scanRecursive(ctx, entryPath, depth+1); err != nil {
				return err
			}

		case entry.Type()&os.ModeSymlink != 0:
			// Directory links are never followed; file links only when the
			// target stays inside the scan root.
			info, ok := s.symlinkTarget(entryPath)
			if !ok || !s.shouldIncludeFile(entry.Name()) {
				continue
			}
			if err := s.add(FileInfo{
				Name:    entry.Name(),
				Path:    entryPath,
				Size:    info.Size(),
				ModTime: info.ModTime(),
				Symlink: true,
			}); err != nil {
				return err
			}

		case entry.Type().IsRegular():
			if !s.shouldIncludeFile(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				if s.opts.SkipUnreadableDirs {
					continue
				}
				return fmt.Errorf("failed to get file info for %s: %w", entryPath, err)
			}
			if err := s.add(FileInfo{
				Name:    entry.Name(),
				Path:    entryPath,
				Size:    info.Size(),
				ModTime: info.ModTime(),
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *SecureDirectoryScanner) add(fi FileInfo) error {
	if s.opts.MaxFiles > 0 && len(s.results) >= s.opts.MaxFiles {
		return ErrScanLimit
	}
	s.results = append(s.results, fi)
	return nil
}

// symlinkTarget returns the target's info when the link resolves to a regular
// file inside the scan root.
func (s *SecureDirectoryScanner) symlinkTarget(relativePath string) (os.FileInfo, bool) {
	full := filepath.Join(s.scanRoot, relativePath)
	target, err := ValidateSymlinkSecurity(full, []string{s.scanRoot})
	if err != nil {
		return nil, false
	}
	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	return info, true
}

func (s *SecureDirectoryScanner) shouldSkipDirectory(dirName string) bool {
	if !s.opts.IncludeHidden && strings.HasPrefix(dirName, ".") {
		return true
	}
	return slices.Contains(s.opts.SkipPatterns, dirName)
}

func (s *SecureDirectoryScanner) shouldIncludeFile(fileName string) bool {
	if !s.opts.IncludeHidden && strings.HasPrefix(fileName, ".") {
		return false
	}
	if s.opts.FileFilter != nil {
		return s.opts.FileFilter(fileName)
	}
	return true
}
