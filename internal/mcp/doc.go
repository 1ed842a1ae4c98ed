// Package mcp exposes the tool registry over the Model Context Protocol (MCP)
// using mcp-go.
//
// Every registered tool becomes an MCP tool whose input schema is derived from
// its declared arguments. A tools/call request is turned into a
// dispatch.Request and run through the Dispatcher, so MCP clients get exactly
// the validation, timeouts and error classification any other caller gets.
//
// # Results
//
// The tool result carries one text content item holding the JSON envelope:
//
//	{"status":"success","data":{...}}
//	{"status":"error","error":{"kind":"PathTraversal","message":"..."}}
//
// Error envelopes also set IsError on the result. Protocol-level errors are
// reserved for failures of the adapter itself.
//
// # Usage
//
// The server is typically started as a subprocess by an MCP-capable client:
//
//	toolgate serve
//
// It reads JSON-RPC requests from stdin and writes responses to stdout until it
// receives EOF or the context is cancelled. Logs go to stderr or, with DEBUG
// set, to toolgate.log, never to stdout.
//
// # References
//
//   - Model Context Protocol: https://modelcontextprotocol.io/specification
//   - mcp-go Library: https://github.com/mark3labs/mcp-go
package mcp
