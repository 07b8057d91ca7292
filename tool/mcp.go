package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FromMCP exposes a tool listed by a local MCP client session as a plain
// function, so it can be offered to the model and executed locally.
func FromMCP(t *mcp.Tool) Function {
	f := Function{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.InputSchema,
	}
	if f.Parameters == nil {
		f.Parameters = Object(nil)
	}
	return f
}

// FromMCPList converts every tool of a tools/list result.
func FromMCPList(res *mcp.ListToolsResult) []Tool {
	if res == nil {
		return nil
	}
	tools := make([]Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		tools = append(tools, FromMCP(t))
	}
	return tools
}

// MCPClient runs function calls against a local MCP server.
type MCPClient struct {
	session *mcp.ClientSession
	names   map[string]struct{}
}

func NewMCPClient(session *mcp.ClientSession) *MCPClient {
	return &MCPClient{session: session, names: make(map[string]struct{})}
}

// Tools lists all tools of the server, following pagination.
func (c *MCPClient) Tools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	names := make(map[string]struct{})
	for t, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("list mcp tools: %w", err)
		}
		names[t.Name] = struct{}{}
		tools = append(tools, FromMCP(t))
	}
	c.names = names
	return tools, nil
}

// Has reports whether name was returned by the last successful call to Tools.
func (c *MCPClient) Has(name string) bool {
	_, ok := c.names[name]
	return ok
}

// Call invokes a tool. Structured content is returned as is, otherwise the text
// content is joined. A tool level failure is returned as an error.
func (c *MCPClient) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("call mcp tool %s: %w", name, err)
	}

	var texts []string
	for _, part := range res.Content {
		if t, ok := part.(*mcp.TextContent); ok {
			texts = append(texts, t.Text)
		}
	}
	text := strings.Join(texts, "\n")

	if res.IsError {
		return nil, errors.New(text)
	}
	if res.StructuredContent != nil {
		return res.StructuredContent, nil
	}
	return text, nil
}

func (c *MCPClient) Close() error {
	return c.session.Close()
}
