// Package toolerr defines the closed error taxonomy shared by validators,
// tool handlers and the dispatcher.
//
// Every failure that reaches a caller is an *Error carrying one Kind from a
// fixed set. Kinds travel as structured values from the point of failure to
// the response envelope; nothing downstream derives a kind from a message.
//
// An *Error has two layers of information:
//
//   - Kind, Message and Detail are safe to show to a caller. Message is a
//     short human-readable sentence, Detail names the offending argument or
//     limit when there is one.
//   - Cause is the low-level error (I/O, driver, panic value) and is only for
//     server-side logs. It may contain filesystem paths or query text and is
//     never serialized.
//
// Classify coerces any error into an *Error. Errors that carry no kind
// become InternalError with a generic message.
package toolerr
