// Package mcp supplies a scheduler.Executor for type="tool" actions that
// dispatches through a connected Model Context Protocol server, using
// github.com/modelcontextprotocol/go-sdk. It is one pluggable executor
// behind registry.Registry, never imported by the core itself.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Trafexofive/Cortex-MK1/runtime/action"
)

// Executor calls tools exposed by one connected MCP session. Name
// resolution is a direct pass-through: Action.Name is the MCP tool name.
type Executor struct {
	session *mcp.ClientSession
}

// NewExecutor wraps an already-established MCP client session.
func NewExecutor(session *mcp.ClientSession) *Executor {
	return &Executor{session: session}
}

// Dial connects to an MCP server over streamable HTTP and returns an
// Executor wrapping the resulting session. Callers that already manage
// their own mcp.Client/session should use NewExecutor instead.
func Dial(ctx context.Context, endpoint string) (*Executor, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "cortex-mk1", Version: "0.1.0"}, nil)
	transport := &mcp.StreamableClientTransport{Endpoint: endpoint}
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect to %s: %w", endpoint, err)
	}
	return NewExecutor(session), nil
}

// Execute implements scheduler.Executor: it calls act.Name as an MCP tool
// with act.Parameters as arguments and flattens the tool's text content
// blocks into the returned result.
func (e *Executor) Execute(ctx context.Context, act action.Action) (any, error) {
	result, err := e.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      act.Name,
		Arguments: act.Parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp: call tool %q: %w", act.Name, err)
	}
	if result.IsError {
		return nil, fmt.Errorf("mcp: tool %q reported an error: %s", act.Name, flattenText(result))
	}
	return flattenText(result), nil
}

// Close releases the underlying MCP session.
func (e *Executor) Close() error {
	return e.session.Close()
}

func flattenText(result *mcp.CallToolResult) string {
	var out string
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			if out != "" {
				out += "\n"
			}
			out += text.Text
		}
	}
	return out
}
