package fileops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to destPath atomically. The destination either
// appears fully written or keeps its previous content.
//
// The function uses a temporary file approach:
//  1. Creates a temporary file in the destination directory
//  2. Writes all data to the temporary file
//  3. Syncs data to disk to ensure durability
//  4. Checks ctx; a cancelled write stops here
//  5. Atomically renames the temporary file to the final destination
//
// Security considerations:
//   - destPath should come from ResolveInRoot; no traversal validation is done here
//   - The temporary file is removed on every failure path
//
// Usage example:
//
//	if err := fileops.AtomicWriteFile(ctx, resolved, []byte("hello"), 0o644); err != nil {
//	    return fmt.Errorf("write failed: %w", err)
//	}
func AtomicWriteFile(ctx context.Context, destPath string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(destPath)

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := tempFile.Name()

	// Ensure cleanup of temp file if anything goes wrong
	var renamed bool
	defer func() {
		tempFile.Close()
		if !renamed {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := tempFile.Chmod(perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	renamed = true
	return nil
}

// EnsureDirectoryExists creates a directory and all necessary parent directories.
// This is equivalent to `mkdir -p` and is safe to call multiple times.
//
// The function sets directory permissions to 0755 (readable and executable by all,
// writable by owner only).
func EnsureDirectoryExists(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}
