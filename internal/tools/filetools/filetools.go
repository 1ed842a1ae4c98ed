// Package filetools implements the file tools: read_file, write_file and
// list_files. Every path argument is resolved inside the configured files
// root before any I/O happens.
package filetools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"toolgate/internal/config"
	"toolgate/internal/dispatch"
	"toolgate/internal/logging"
	"toolgate/internal/toolerr"
	"toolgate/pkg/fileops"
)

// Tool names.
const (
	ReadFileName  = "read_file"
	WriteFileName = "write_file"
	ListFilesName = "list_files"
)

// Register adds the file tools to reg.
func Register(reg *dispatch.Registry, cfg config.FilesConfig, logger logging.Logger) error {
	if err := reg.Register(ReadFileName, NewReadFile(cfg, logger)); err != nil {
		return err
	}
	if err := reg.Register(WriteFileName, NewWriteFile(cfg, logger)); err != nil {
		return err
	}
	return reg.Register(ListFilesName, NewListFiles(cfg, logger))
}

// base carries what every file tool shares.
type base struct {
	cfg    config.FilesConfig
	logger logging.Logger
}

func newBase(cfg config.FilesConfig, logger logging.Logger, tool string) base {
	if logger == nil {
		logger = logging.Nop()
	}
	cfg.AllowedExtensions = fileops.NormalizeExtensions(cfg.AllowedExtensions)
	return base{cfg: cfg, logger: logger.With("component", tool)}
}

// checkExtension rejects a target whose extension is not allowed. The file
// is not one this tool may handle, so the kind is NotAFile.
func (b base) checkExtension(argName, path string) error {
	if err := fileops.ValidateExtension(path, b.cfg.AllowedExtensions); err != nil {
		return toolerr.FileRejected("file type not allowed").WithDetail(argName).WithCause(err)
	}
	return nil
}

// checkFileSize rejects an existing file larger than the limit.
func (b base) checkFileSize(argName string, size int64) error {
	if err := fileops.ValidateSize(size, b.cfg.MaxFileSize); err != nil {
		return toolerr.FileRejected(fmt.Sprintf("file exceeds maximum size of %d bytes", b.cfg.MaxFileSize)).WithDetail(argName).WithCause(err)
	}
	return nil
}

// checkContentSize rejects write content larger than the limit.
func (b base) checkContentSize(argName string, size int64) error {
	if err := fileops.ValidateSize(size, b.cfg.MaxFileSize); err != nil {
		return toolerr.BadArgument(argName, fmt.Sprintf("%s exceeds maximum size of %d bytes", argName, b.cfg.MaxFileSize)).WithCause(err)
	}
	return nil
}

// openRoot opens the canonical files root as an os.Root and returns the
// path of resolved relative to it.
func (b base) openRoot(resolved string) (*os.Root, string, error) {
	canonical, err := fileops.CanonicalRoot(b.cfg.Root)
	if err != nil {
		return nil, "", toolerr.Internal(fmt.Errorf("files root: %w", err))
	}
	rel, err := filepath.Rel(canonical, resolved)
	if err != nil || !fileops.IsWithin(canonical, resolved) {
		return nil, "", toolerr.PathTraversal().WithCause(errors.Join(err, fileops.ErrOutsideRoot))
	}
	root, err := os.OpenRoot(canonical)
	if err != nil {
		return nil, "", toolerr.Internal(fmt.Errorf("open files root: %w", err))
	}
	return root, rel, nil
}
