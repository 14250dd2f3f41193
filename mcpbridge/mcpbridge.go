// Package mcpbridge implements MCP node/edge tool calls: connecting to a
// Model Context Protocol server over stdio and invoking one of its tools
// by name, satisfying nodes.ToolCaller.
//
// The teacher's own adapter/mcp is documentation-only (adapter/mcp/doc.go
// describes an MCPClient/MCPTool API with no implementation file anywhere
// under the teacher's tree), so this is grounded instead on the real
// modelcontextprotocol/go-sdk client API and on the server-side usage
// pattern (mcp.Tool/mcp.CallToolRequest/mcp.CallToolResult shapes) visible
// in the retrieved pack's Argo Workflows MCP server.
package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Bridge holds one live MCP client session, implementing nodes.ToolCaller.
type Bridge struct {
	session *mcp.ClientSession
}

// Dial launches command as a subprocess and speaks MCP over its
// stdin/stdout, per the teacher doc's "Standard Input/Output (stdio)"
// transport — the most common MCP server connection type.
func Dial(ctx context.Context, command string, args ...string) (*Bridge, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "cannoli", Version: "0.1.0"}, nil)
	transport := &mcp.CommandTransport{Command: exec.CommandContext(ctx, command, args...)}
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpbridge: connect: %w", err)
	}
	return &Bridge{session: session}, nil
}

func (b *Bridge) Close() error {
	return b.session.Close()
}

// ListToolNames returns every tool the connected server advertises, for a
// run's startup diagnostics.
func (b *Bridge) ListToolNames(ctx context.Context) ([]string, error) {
	res, err := b.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("mcpbridge: list tools: %w", err)
	}
	names := make([]string, 0, len(res.Tools))
	for _, t := range res.Tools {
		names = append(names, t.Name)
	}
	return names, nil
}

// CallTool implements nodes.ToolCaller: invoke name with args and flatten
// the result's text content blocks into a single string for a call node's
// content field.
func (b *Bridge) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := b.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("mcpbridge: call %s: %w", name, err)
	}
	if res.IsError {
		return "", fmt.Errorf("mcpbridge: %s reported an error: %s", name, flattenText(res.Content))
	}
	return flattenText(res.Content), nil
}

func flattenText(content []mcp.Content) string {
	var b strings.Builder
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(tc.Text)
			continue
		}
		raw, err := json.Marshal(c)
		if err == nil {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.Write(raw)
		}
	}
	return b.String()
}
