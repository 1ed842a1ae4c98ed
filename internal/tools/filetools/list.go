package filetools

import (
	"context"
	"errors"
	"path/filepath"

	"toolgate/internal/config"
	"toolgate/internal/logging"
	"toolgate/internal/toolerr"
	"toolgate/internal/validation"
	"toolgate/pkg/fileops"
)

// Listing bounds.
const (
	MaxListDepth = 10
	MaxListFiles = 1000
)

// ListedFile is one entry of list_files.
type ListedFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ListResult is the payload of list_files.
type ListResult struct {
	Directory string       `json:"directory"`
	Files     []ListedFile `json:"files"`
	Count     int          `json:"count"`
	Truncated bool         `json:"truncated,omitempty"`
}

// ListFiles lists readable files under a directory inside the files root.
type ListFiles struct {
	base
}

// NewListFiles creates the list_files handler.
func NewListFiles(cfg config.FilesConfig, logger logging.Logger) *ListFiles {
	return &ListFiles{base: newBase(cfg, logger, ListFilesName)}
}

func (t *ListFiles) Description() string {
	return "List files with allowed extensions under a directory of the files area, recursively. Paths are relative to that directory."
}

func (t *ListFiles) Args() []validation.ArgSpec {
	return []validation.ArgSpec{
		{
			Name:        "directory",
			Description: "Directory relative to the files directory; defaults to its top level",
			Type:        validation.TypeString,
			Validator:   validation.PathValidator(t.cfg.Root, fileops.ResolveDir),
		},
	}
}

func (t *ListFiles) Handle(ctx context.Context, args validation.Args) (any, error) {
	dir := args.String("directory")
	if dir == "" {
		canonical, err := fileops.CanonicalRoot(t.cfg.Root)
		if err != nil {
			return nil, toolerr.Internal(err)
		}
		dir = canonical
	}

	opts := fileops.DefaultScanOptions()
	opts.MaxDepth = MaxListDepth
	opts.MaxFiles = MaxListFiles
	opts.FileFilter = func(name string) bool {
		return fileops.ValidateExtension(name, t.cfg.AllowedExtensions) == nil
	}

	scanner, err := fileops.NewDirectoryScanner(dir, opts)
	if err != nil {
		return nil, toolerr.FromFS(err, "directory")
	}
	defer scanner.Close()

	found, err := scanner.ScanDirectory(ctx)
	truncated := errors.Is(err, fileops.ErrScanLimit)
	if err != nil && !truncated {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, toolerr.FromFS(err, "directory")
	}

	files := make([]ListedFile, 0, len(found))
	for _, f := range found {
		files = append(files, ListedFile{Path: filepath.ToSlash(f.Path), Size: f.Size})
	}

	if truncated {
		t.logger.Warn("Listing truncated", "directory", dir, "limit", MaxListFiles)
	}
	return ListResult{
		Directory: dir,
		Files:     files,
		Count:     len(files),
		Truncated: truncated,
	}, nil
}
