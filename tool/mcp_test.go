package tool

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Text string `json:"text" jsonschema:"text to echo"`
}

type sumArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

type sumResult struct {
	Sum int `json:"sum"`
}

func newMCPClient(t *testing.T) (*MCPClient, *mcp.Server) {
	t.Helper()
	ctx := context.Background()

	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "v0.0.1"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "echo", Description: "Echo text"},
		func(ctx context.Context, req *mcp.CallToolRequest, args echoArgs) (*mcp.CallToolResult, any, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: args.Text}}}, nil, nil
		})
	mcp.AddTool(server, &mcp.Tool{Name: "sum", Description: "Add two numbers"},
		func(ctx context.Context, req *mcp.CallToolRequest, args sumArgs) (*mcp.CallToolResult, sumResult, error) {
			return nil, sumResult{Sum: args.A + args.B}, nil
		})
	mcp.AddTool(server, &mcp.Tool{Name: "quota", Description: "Always fails"},
		func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: "quota exceeded"}},
			}, nil, nil
		})

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "rtchat", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	c := NewMCPClient(session)
	t.Cleanup(func() {
		_ = c.Close()
		_ = serverSession.Wait()
	})
	return c, server
}

func TestFromMCP(t *testing.T) {
	f := FromMCP(&mcp.Tool{Name: "ping", Description: "Ping"})
	require.Equal(t, Function{Name: "ping", Description: "Ping", Parameters: Object(nil)}, f)

	schema := map[string]any{"type": "object", "properties": map[string]any{"host": map[string]any{"type": "string"}}}
	f = FromMCP(&mcp.Tool{Name: "ping", InputSchema: schema})
	require.Equal(t, schema, f.Parameters)

	require.Nil(t, FromMCPList(nil))
	require.Len(t, FromMCPList(&mcp.ListToolsResult{Tools: []*mcp.Tool{{Name: "a"}, {Name: "b"}}}), 2)
}

func TestMCPClient_Tools(t *testing.T) {
	c, _ := newMCPClient(t)
	require.False(t, c.Has("echo"))

	tools, err := c.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 3)

	names := map[string]string{}
	for _, tl := range tools {
		f, ok := tl.(Function)
		require.True(t, ok)
		require.NotNil(t, f.Parameters)
		names[f.Name] = f.Description
	}
	require.Equal(t, map[string]string{
		"echo":  "Echo text",
		"sum":   "Add two numbers",
		"quota": "Always fails",
	}, names)

	require.True(t, c.Has("echo"))
	require.False(t, c.Has("get_time"))
}

func TestMCPClient_Call(t *testing.T) {
	c, _ := newMCPClient(t)
	ctx := context.Background()

	out, err := c.Call(ctx, "echo", map[string]any{"text": "hello"})
	require.NoError(t, err)
	require.Equal(t, "hello", out)

	out, err = c.Call(ctx, "sum", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"sum": float64(3)}, out)

	_, err = c.Call(ctx, "quota", map[string]any{})
	require.EqualError(t, err, "quota exceeded")
}

func TestMCPClient_ToolsReplacesKnownNames(t *testing.T) {
	c, server := newMCPClient(t)
	ctx := context.Background()

	_, err := c.Tools(ctx)
	require.NoError(t, err)
	require.True(t, c.Has("quota"))

	server.RemoveTools("quota")

	tools, err := c.Tools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	require.False(t, c.Has("quota"))
	require.True(t, c.Has("echo"))
}
