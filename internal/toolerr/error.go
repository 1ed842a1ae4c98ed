package toolerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a tool failure. The set is closed: use the constants below.
type Kind string

const (
	// KindMissingArgument indicates a required argument was absent or empty,
	// or that no usable value was supplied under its name (wrong type,
	// unsupported value, undeclared name)
	KindMissingArgument Kind = "MissingArgument"

	// KindPathTraversal indicates a path resolved outside the allowed root
	KindPathTraversal Kind = "PathTraversal"

	// KindNotFound indicates the addressed file, directory or table does not exist
	KindNotFound Kind = "NotFound"

	// KindNotAFile indicates the path exists but is not a file the tool can
	// handle: not a regular file (or not a directory for listings), a
	// disallowed type, too large or not text
	KindNotAFile Kind = "NotAFile"

	// KindInvalidIdentifier indicates a SQL identifier failed the allow-list
	// pattern or names a column the table does not have
	KindInvalidIdentifier Kind = "InvalidIdentifier"

	// KindUnknownTool indicates no handler is registered under the requested name
	KindUnknownTool Kind = "UnknownTool"

	// KindTimeout indicates the handler exceeded its time budget
	KindTimeout Kind = "Timeout"

	// KindInternalError is the catch-all for unclassified lower-level failures
	KindInternalError Kind = "InternalError"
)

// Kinds lists every valid Kind in declaration order.
var Kinds = []Kind{
	KindMissingArgument,
	KindPathTraversal,
	KindNotFound,
	KindNotAFile,
	KindInvalidIdentifier,
	KindUnknownTool,
	KindTimeout,
	KindInternalError,
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// internalMessage is the only message an InternalError ever shows a caller.
const internalMessage = "internal error"

// Error is a classified tool failure.
type Error struct {
	// Kind is the classification
	Kind Kind

	// Message is a caller-safe description
	Message string

	// Detail is optional caller-safe context such as an argument name
	Detail string

	// Cause is the underlying error, kept for server-side logging only
	Cause error
}

// New creates a classified error. An invalid kind is coerced to InternalError.
func New(kind Kind, message string) *Error {
	if !kind.Valid() {
		kind = KindInternalError
	}
	if kind == KindInternalError {
		message = internalMessage
	}
	return &Error{Kind: kind, Message: message}
}

// WithDetail attaches caller-safe context and returns the same error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithCause attaches the low-level error and returns the same error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// Error formats the error as "Kind: message (detail): cause".
// The cause is included because this string is meant for logs.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, toolerr.New(toolerr.KindNotFound, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind carried by err, or InternalError when err is
// unclassified. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// Classify returns the classified error carried by err.
//
// Context deadline and cancellation errors become Timeout. Anything else
// without a kind becomes InternalError with the original error as Cause.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		if !classified.Kind.Valid() {
			return New(KindInternalError, "").WithCause(err)
		}
		return classified
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout().WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return New(KindTimeout, "request cancelled").WithCause(err)
	}

	return New(KindInternalError, "").WithCause(err)
}
