package dispatch

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"toolgate/internal/toolerr"
)

// Request is one tool invocation. Arguments stay untrusted until the
// handler's ArgSpecs bind them.
type Request struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// DecodeRequest reads a single JSON request object from r.
func DecodeRequest(r io.Reader) (Request, error) {
	var req Request
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("failed to decode request: %w", err)
	}
	req.Tool = strings.TrimSpace(req.Tool)
	return req, nil
}

// Status tags an Envelope.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Envelope is the only shape a dispatch produces. Exactly one of Data and
// Error is set, matching Status.
type Envelope struct {
	Status Status     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the caller-visible part of a classified error.
type ErrorBody struct {
	Kind    toolerr.Kind `json:"kind"`
	Message string       `json:"message"`
	Detail  string       `json:"detail,omitempty"`
}

// Success wraps a handler payload. A nil payload becomes an empty object so
// that Data is always present on success.
func Success(data any) Envelope {
	if data == nil {
		data = map[string]any{}
	}
	return Envelope{Status: StatusSuccess, Data: data}
}

// Failure wraps an error. Unclassified errors become InternalError; the
// cause never leaves the process.
func Failure(err error) Envelope {
	classified := toolerr.Classify(err)
	if classified == nil {
		classified = toolerr.Internal(nil)
	}

	body := &ErrorBody{
		Kind:    classified.Kind,
		Message: classified.Message,
	}
	if classified.Kind != toolerr.KindInternalError {
		body.Detail = classified.Detail
	}
	return Envelope{Status: StatusError, Error: body}
}

// OK reports whether the envelope carries a success.
func (e Envelope) OK() bool {
	return e.Status == StatusSuccess
}

// ErrorKind returns the error kind, or "" on success.
func (e Envelope) ErrorKind() toolerr.Kind {
	if e.Error == nil {
		return ""
	}
	return e.Error.Kind
}
