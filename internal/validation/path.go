package validation

import (
	"errors"
	"fmt"
	"io/fs"

	"toolgate/internal/toolerr"
	"toolgate/pkg/fileops"
)

// ValidatePath resolves candidate inside root and requires an existing
// regular file. It returns the canonical absolute path.
//
// Fails with PathTraversal, NotFound or NotAFile.
func ValidatePath(root, candidate string) (string, error) {
	return ResolvePath(root, candidate, fileops.ResolveFile)
}

// ResolvePath is ValidatePath with a selectable mode: ResolveFile for reads,
// ResolveDir for listings and ResolveCreate for writes to a path that may
// not exist yet.
func ResolvePath(root, candidate string, mode fileops.ResolveMode) (string, error) {
	if _, err := fileops.CanonicalRoot(root); err != nil {
		// A broken root is a server misconfiguration, not a caller error.
		return "", toolerr.Internal(fmt.Errorf("allowed root %q: %w", root, err))
	}

	resolved, err := fileops.ResolveInRoot(root, candidate, mode)
	if err != nil {
		return "", classifyPathError(err, mode)
	}
	return resolved, nil
}

func classifyPathError(err error, mode fileops.ResolveMode) *toolerr.Error {
	switch {
	case errors.Is(err, fileops.ErrEmptyPath):
		return toolerr.MissingArgument("path")
	case errors.Is(err, fileops.ErrInvalidPath):
		return toolerr.BadArgument("path", "path contains invalid characters").WithCause(err)
	case errors.Is(err, fileops.ErrOutsideRoot):
		return toolerr.PathTraversal().WithCause(err)
	case errors.Is(err, fileops.ErrNotRegularFile):
		return toolerr.NotAFile().WithCause(err)
	case errors.Is(err, fileops.ErrNotDirectory):
		if mode == fileops.ResolveCreate {
			return toolerr.NotFound("parent directory").WithCause(err)
		}
		return toolerr.NotADirectory().WithCause(err)
	case errors.Is(err, fs.ErrNotExist):
		return toolerr.NotFound(notFoundNoun(mode)).WithCause(err)
	default:
		return toolerr.FromFS(err, notFoundNoun(mode))
	}
}

func notFoundNoun(mode fileops.ResolveMode) string {
	switch mode {
	case fileops.ResolveDir:
		return "directory"
	case fileops.ResolveCreate:
		return "parent directory"
	default:
		return "file"
	}
}

// PathValidator returns a Validator that resolves string arguments inside
// root with the given mode. The validated value is the canonical path.
func PathValidator(root string, mode fileops.ResolveMode) Validator {
	return ValidatorFunc(func(value any) (any, error) {
		s, ok := value.(string)
		if !ok {
			return nil, toolerr.BadArgument("path", "path must be a string")
		}
		return ResolvePath(root, s, mode)
	})
}
