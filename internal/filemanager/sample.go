package filemanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"toolgate/pkg/fileops"
)

// SampleFileName and SampleFileContent describe the file written by
// SeedSampleFile.
const (
	SampleFileName    = "example.txt"
	SampleFileContent = "Hello from toolgate!\nThis file lives in the files root and can be read with read_file.\n"
)

// SeedSampleFile writes the sample file into a root returned by PrepareRoot.
// An existing sample file is left alone.
func SeedSampleFile(ctx context.Context, root string) (string, error) {
	path := filepath.Join(root, SampleFileName)
	if _, err := os.Lstat(path); err == nil {
		return path, nil
	}
	if err := fileops.AtomicWriteFile(ctx, path, []byte(SampleFileContent), 0o644); err != nil {
		return "", fmt.Errorf("failed to write sample file: %w", err)
	}
	return path, nil
}
