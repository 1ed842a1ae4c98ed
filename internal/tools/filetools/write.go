package filetools

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"toolgate/internal/config"
	"toolgate/internal/logging"
	"toolgate/internal/toolerr"
	"toolgate/internal/validation"
	"toolgate/pkg/fileops"
)

// WriteResult is the payload of write_file.
type WriteResult struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`
	Created  bool   `json:"created"`
}

// WriteFile creates or replaces a text file inside the files root.
type WriteFile struct {
	base
}

// NewWriteFile creates the write_file handler.
func NewWriteFile(cfg config.FilesConfig, logger logging.Logger) *WriteFile {
	return &WriteFile{base: newBase(cfg, logger, WriteFileName)}
}

func (t *WriteFile) Description() string {
	return "Create or overwrite a UTF-8 text file inside the allowed files directory. Missing parent directories are created."
}

func (t *WriteFile) Args() []validation.ArgSpec {
	return []validation.ArgSpec{
		{
			Name:        "file_path",
			Description: "Path of the file, relative to the files directory",
			Type:        validation.TypeString,
			Required:    true,
			Validator:   validation.PathValidator(t.cfg.Root, fileops.ResolveCreate),
		},
		{
			Name:        "content",
			Description: "Text to write; may be empty",
			Type:        validation.TypeString,
			Required:    true,
			AllowEmpty:  true,
		},
		{
			Name:        "encoding",
			Description: "Text encoding; only utf-8 is supported",
			Type:        validation.TypeString,
			Validator:   validation.Encoding,
		},
	}
}

func (t *WriteFile) Handle(ctx context.Context, args validation.Args) (any, error) {
	path := args.String("file_path")
	data := []byte(args.String("content"))

	if err := t.checkExtension("file_path", path); err != nil {
		return nil, err
	}
	if err := t.checkContentSize("content", int64(len(data))); err != nil {
		return nil, err
	}

	created := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		created = true
	}

	if err := fileops.EnsureDirectoryExists(filepath.Dir(path)); err != nil {
		return nil, toolerr.FromFS(err, "parent directory")
	}

	if err := fileops.AtomicWriteFile(ctx, path, data, 0o644); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, toolerr.FromFS(err, "parent directory")
	}

	t.logger.Info("Wrote file", "path", path, "size", len(data), "created", created)
	return WriteResult{
		Path:     path,
		Size:     int64(len(data)),
		Encoding: "utf-8",
		Created:  created,
	}, nil
}
