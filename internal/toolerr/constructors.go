package toolerr

import (
	"errors"
	"fmt"
	"io/fs"
)

// MissingArgument reports an absent or empty required argument.
func MissingArgument(name string) *Error {
	return New(KindMissingArgument, fmt.Sprintf("%s is required", name)).WithDetail(name)
}

// BadArgument reports an argument that was supplied but cannot be used:
// wrong type, unsupported value or a name the tool does not declare. It
// shares MissingArgument's kind since no acceptable value arrived; reason
// is caller-safe and Detail carries the argument name.
func BadArgument(name, reason string) *Error {
	return New(KindMissingArgument, reason).WithDetail(name)
}

// PathTraversal reports a path escaping the allowed root.
func PathTraversal() *Error {
	return New(KindPathTraversal, "path resolves outside the allowed root")
}

// NotFound reports a missing resource. what is a generic noun ("file",
// "table"), never the resolved location.
func NotFound(what string) *Error {
	return New(KindNotFound, what+" not found")
}

// NotAFile reports a path that exists but is not a regular file.
func NotAFile() *Error {
	return New(KindNotAFile, "path is not a regular file")
}

// NotADirectory reports a path that exists but is not a directory.
func NotADirectory() *Error {
	return New(KindNotAFile, "path is not a directory")
}

// FileRejected reports a regular file the tool refuses to handle, such as a
// disallowed extension or an oversize file.
func FileRejected(reason string) *Error {
	return New(KindNotAFile, reason)
}

// InvalidIdentifier reports an identifier rejected by the allow-list.
func InvalidIdentifier(name string) *Error {
	return New(KindInvalidIdentifier, "identifier must start with a letter or underscore and contain only letters, digits and underscores (max 128)").WithDetail(name)
}

// UnknownColumn reports a well-formed column name the table does not have.
// argName is the argument that named it.
func UnknownColumn(argName, column string) *Error {
	return New(KindInvalidIdentifier, "unknown column "+column).WithDetail(argName)
}

// UnknownTool reports a request for an unregistered tool.
func UnknownTool(name string) *Error {
	return New(KindUnknownTool, "no tool is registered under this name").WithDetail(name)
}

// Timeout reports an exceeded time budget.
func Timeout() *Error {
	return New(KindTimeout, "tool did not complete within its time budget")
}

// Internal wraps an unclassified failure. The caller only ever sees the
// generic message.
func Internal(cause error) *Error {
	return New(KindInternalError, "").WithCause(cause)
}

// FromFS classifies a filesystem error from the os and io/fs packages.
// what names the resource for NotFound messages. Permission failures are
// server-side conditions and become InternalError.
func FromFS(err error, what string) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NotFound(what).WithCause(err)
	case errors.Is(err, fs.ErrPermission):
		return Internal(err)
	default:
		return Classify(err)
	}
}
