// Package dispatch routes tool requests to registered handlers and wraps
// every outcome in a uniform Envelope.
//
// # Lifecycle
//
// Handlers are registered by name on a Registry during startup. Creating a
// Dispatcher freezes the registry: later registrations fail and lookups no
// longer take a lock.
//
//	reg := dispatch.NewRegistry()
//	reg.MustRegister("read_file", filetools.NewReadFile(cfg, logger))
//	d := dispatch.NewDispatcher(reg, logger, dispatch.WithTimeout(30*time.Second))
//	env := d.Dispatch(ctx, dispatch.Request{Tool: "read_file", Arguments: args})
//
// # Execution
//
// For a known tool, Dispatch binds the raw arguments against the handler's
// declared ArgSpecs and calls Handle, both in a separate goroutine bounded by
// the dispatcher timeout. When the budget runs out the caller gets a Timeout
// envelope at once; the handler sees a cancelled context and its eventual
// result is discarded. Panics are recovered and reported as InternalError.
//
// Every dispatch gets a request id (a UUID) that appears in log entries and
// on the tool.dispatch trace span.
package dispatch
