package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"toolgate/internal/dispatch"
	"toolgate/internal/logging"
	"toolgate/internal/validation"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServerName is announced to clients during initialization.
const ServerName = "toolgate"

const instructions = `toolgate exposes file and database tools. File paths are relative to one
allowed directory; database tools are read-only. Every result is a JSON envelope with
"status" set to "success" or "error"; errors carry a machine-readable "kind".`

// Server represents an MCP server instance using mcp-go
type Server struct {
	dispatcher *dispatch.Dispatcher
	logger     logging.Logger
	mcpServer  *server.MCPServer
}

// NewServer creates an MCP server with one MCP tool per registered tool.
func NewServer(d *dispatch.Dispatcher, logger logging.Logger, version string) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		dispatcher: d,
		logger:     logger.With("component", "mcp"),
		mcpServer: server.NewMCPServer(
			ServerName,
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
			server.WithInstructions(instructions),
		),
	}

	for _, info := range d.Registry().Tools() {
		s.mcpServer.AddTool(toolDefinition(info), s.handler(info.Name))
		s.logger.Debug("Registered MCP tool", "tool", info.Name, "args", len(info.Args))
	}
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Serve speaks MCP over in and out until in is exhausted or ctx is done.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("Starting MCP stdio server", "tools", len(s.dispatcher.Registry().Tools()))

	stdio := server.NewStdioServer(s.mcpServer)
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	s.logger.Info("MCP stdio server stopped")
	return nil
}

// handler adapts one tool to the mcp-go handler signature.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := s.dispatcher.Dispatch(ctx, dispatch.Request{
			Tool:      name,
			Arguments: req.GetArguments(),
		})
		return envelopeResult(env)
	}
}

func envelopeResult(env dispatch.Envelope) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	result := mcp.NewToolResultText(string(body))
	result.IsError = !env.OK()
	return result, nil
}

// toolDefinition builds the MCP tool, including its input schema, from the
// declared arguments.
func toolDefinition(info dispatch.ToolInfo) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(info.Description)}

	for _, arg := range info.Args {
		props := []mcp.PropertyOption{mcp.Description(arg.Description)}
		if arg.Required {
			props = append(props, mcp.Required())
		}

		switch arg.Type {
		case validation.TypeInteger, validation.TypeNumber:
			opts = append(opts, mcp.WithNumber(arg.Name, props...))
		case validation.TypeBoolean:
			opts = append(opts, mcp.WithBoolean(arg.Name, props...))
		case validation.TypeObject:
			opts = append(opts, mcp.WithObject(arg.Name, props...))
		default:
			opts = append(opts, mcp.WithString(arg.Name, props...))
		}
	}

	return mcp.NewTool(info.Name, opts...)
}
