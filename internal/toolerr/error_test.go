package toolerr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantKind    Kind
		wantMessage string
	}{
		{
			name:        "classified error passes through",
			err:         PathTraversal(),
			wantKind:    KindPathTraversal,
			wantMessage: "path resolves outside the allowed root",
		},
		{
			name:     "wrapped classified error keeps its kind",
			err:      fmt.Errorf("reading: %w", NotFound("file")),
			wantKind: KindNotFound,
		},
		{
			name:     "deadline exceeded becomes timeout",
			err:      context.DeadlineExceeded,
			wantKind: KindTimeout,
		},
		{
			name:     "cancellation becomes timeout",
			err:      fmt.Errorf("query: %w", context.Canceled),
			wantKind: KindTimeout,
		},
		{
			name:        "plain error becomes internal",
			err:         errors.New("open /secret/location/db.sqlite: disk on fire"),
			wantKind:    KindInternalError,
			wantMessage: "internal error",
		},
		{
			name:        "invalid kind is coerced",
			err:         &Error{Kind: "Bogus", Message: "select * from users"},
			wantKind:    KindInternalError,
			wantMessage: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantKind, got.Kind)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, got.Message)
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestInternalNeverLeaksCauseInMessage(t *testing.T) {
	cause := errors.New("no such table: secret_admin_table")
	err := Internal(cause)

	assert.Equal(t, KindInternalError, err.Kind)
	assert.Equal(t, "internal error", err.Message)
	assert.NotContains(t, err.Message, "secret_admin_table")
	assert.ErrorIs(t, err, cause)
}

func TestNewCoercesInternalMessage(t *testing.T) {
	err := New(KindInternalError, "failed reading /etc/shadow")
	assert.Equal(t, "internal error", err.Message)
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", MissingArgument("table"))

	assert.ErrorIs(t, err, New(KindMissingArgument, ""))
	assert.NotErrorIs(t, err, New(KindNotFound, ""))
}

func TestFromFS(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
	}{
		{"not exist", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, KindNotFound},
		{"permission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, KindInternalError},
		{"already classified", NotAFile(), KindNotAFile},
		{"other", errors.New("io failure"), KindInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromFS(tt.err, "file")
			require.NotNil(t, got)
			assert.Equal(t, tt.wantKind, got.Kind)
		})
	}

	assert.Nil(t, FromFS(nil, "file"))
}

func TestFromFSRealMissingFile(t *testing.T) {
	_, err := os.Stat(t.TempDir() + "/missing.txt")
	got := FromFS(err, "file")
	assert.Equal(t, KindNotFound, got.Kind)
	assert.Equal(t, "file not found", got.Message)
}

func TestErrorString(t *testing.T) {
	err := BadArgument("limit", "limit must be an integer").WithCause(errors.New("strconv"))
	assert.Equal(t, "MissingArgument: limit must be an integer (limit): strconv", err.Error())
}

func TestKindValid(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, Kind("Whatever").Valid())
	assert.False(t, Kind("InvalidArgument").Valid())
	assert.False(t, Kind("PermissionDenied").Valid())
}

func TestKindsAreClosed(t *testing.T) {
	assert.Equal(t, []Kind{
		"MissingArgument",
		"PathTraversal",
		"NotFound",
		"NotAFile",
		"InvalidIdentifier",
		"UnknownTool",
		"Timeout",
		"InternalError",
	}, Kinds)
}

func TestConstructorsStayInTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		wantKind   Kind
		wantDetail string
	}{
		{"bad argument", BadArgument("file_path", "file_path must be a string"), KindMissingArgument, "file_path"},
		{"not a directory", NotADirectory(), KindNotAFile, ""},
		{"file rejected", FileRejected("file type not allowed"), KindNotAFile, ""},
		{"unknown column", UnknownColumn("columns", "password"), KindInvalidIdentifier, "columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.err.Kind.Valid())
			assert.Equal(t, tt.wantKind, tt.err.Kind)
			assert.Equal(t, tt.wantDetail, tt.err.Detail)
		})
	}
}

func TestFromFSPermissionHidesCause(t *testing.T) {
	got := FromFS(&fs.PathError{Op: "open", Path: "/srv/private/key.txt", Err: fs.ErrPermission}, "file")
	assert.Equal(t, KindInternalError, got.Kind)
	assert.Equal(t, "internal error", got.Message)
	assert.NotContains(t, got.Message, "/srv/private")
}
