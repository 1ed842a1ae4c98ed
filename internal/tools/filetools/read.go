package filetools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"toolgate/internal/config"
	"toolgate/internal/logging"
	"toolgate/internal/toolerr"
	"toolgate/internal/validation"
	"toolgate/pkg/fileops"

	"github.com/adrg/frontmatter"
)

// ReadResult is the payload of read_file.
type ReadResult struct {
	Content  string `json:"content"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`

	// Frontmatter holds the YAML header of markdown files, when present.
	// Content is always the full file text.
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// ReadFile reads a text file inside the files root.
type ReadFile struct {
	base
}

// NewReadFile creates the read_file handler.
func NewReadFile(cfg config.FilesConfig, logger logging.Logger) *ReadFile {
	return &ReadFile{base: newBase(cfg, logger, ReadFileName)}
}

func (t *ReadFile) Description() string {
	return "Read a UTF-8 text file inside the allowed files directory."
}

func (t *ReadFile) Args() []validation.ArgSpec {
	return []validation.ArgSpec{
		{
			Name:        "file_path",
			Description: "Path of the file, relative to the files directory",
			Type:        validation.TypeString,
			Required:    true,
			Validator:   validation.PathValidator(t.cfg.Root, fileops.ResolveFile),
		},
		{
			Name:        "encoding",
			Description: "Text encoding; only utf-8 is supported",
			Type:        validation.TypeString,
			Validator:   validation.Encoding,
		},
	}
}

func (t *ReadFile) Handle(ctx context.Context, args validation.Args) (any, error) {
	path := args.String("file_path")

	if err := t.checkExtension("file_path", path); err != nil {
		return nil, err
	}

	root, rel, err := t.openRoot(path)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	f, err := root.Open(rel)
	if err != nil {
		return nil, toolerr.FromFS(err, "file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, toolerr.FromFS(err, "file")
	}
	if !info.Mode().IsRegular() {
		return nil, toolerr.NotAFile()
	}
	if err := t.checkFileSize("file_path", info.Size()); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The file may grow between Stat and Read.
	content, err := io.ReadAll(io.LimitReader(f, t.cfg.MaxFileSize+1))
	if err != nil {
		return nil, toolerr.FromFS(err, "file")
	}
	if err := t.checkFileSize("file_path", int64(len(content))); err != nil {
		return nil, err
	}

	if !utf8.Valid(content) {
		return nil, toolerr.FileRejected("file is not valid utf-8 text").WithDetail("file_path")
	}

	result := ReadResult{
		Content:  string(content),
		Path:     path,
		Size:     int64(len(content)),
		Encoding: "utf-8",
	}
	if isMarkdown(path) {
		result.Frontmatter = t.parseFrontmatter(content)
	}

	t.logger.Debug("Read file", "path", path, "size", result.Size)
	return result, nil
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// parseFrontmatter returns the YAML header or nil. Malformed headers are
// not an error for a plain read.
func (t *ReadFile) parseFrontmatter(content []byte) map[string]any {
	var matter map[string]any
	if _, err := frontmatter.Parse(bytes.NewReader(content), &matter); err != nil {
		t.logger.Debug("Ignoring malformed frontmatter", "error", err)
		return nil
	}
	if len(matter) == 0 {
		return nil
	}
	return normalizeYAML(matter).(map[string]any)
}

// normalizeYAML converts nested map[interface{}]interface{} values, as
// produced by some YAML decoders, into JSON-encodable map[string]any.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
