package rtsession

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/rtsession-go/content"
	"github.com/codewandler/rtsession-go/events"
	"github.com/codewandler/rtsession-go/tool"
)

func wireItem(t *testing.T, s string) events.Item {
	t.Helper()
	var w events.Item
	require.NoError(t, json.Unmarshal([]byte(s), &w))
	return w
}

func TestItemFromWire_Message(t *testing.T) {
	item := itemFromWire(wireItem(t, `{"id":"item_1","type":"message","role":"assistant","content":[
		{"type":"output_text","text":"Hello"},
		{"type":"output_audio","transcript":"Hello there"},
		{"type":"input_image","image_url":"data:..."}
	]}`))

	require.Equal(t, "item_1", item.ID)
	require.Equal(t, content.RoleAssistant, item.Role)
	require.Len(t, item.Parts, 3)
	require.Equal(t, content.Text{Text: "Hello"}, item.Parts[0])
	audio, ok := item.Parts[1].(content.Audio)
	require.True(t, ok)
	require.Empty(t, audio.Data)
	require.Equal(t, "Hello there", audio.Transcript)
	require.IsType(t, content.Raw{}, item.Parts[2])
	require.Equal(t, "Hello", item.Text())
}

func TestItemFromWire_FunctionCall(t *testing.T) {
	item := itemFromWire(wireItem(t, `{"id":"item_2","type":"function_call","call_id":"call_1","name":"get_weather","arguments":"{\"city\":\"Seattle\"}"}`))

	require.Equal(t, content.RoleAssistant, item.Role)
	require.Equal(t, []content.Part{content.FunctionCall{
		CallID:       "call_1",
		Name:         "get_weather",
		Arguments:    map[string]any{"city": "Seattle"},
		RawArguments: `{"city":"Seattle"}`,
	}}, item.Parts)

	item = itemFromWire(wireItem(t, `{"id":"item_2","type":"function_call","call_id":"call_1","name":"get_weather","arguments":"{\"city\":"}`))
	fc := item.Parts[0].(content.FunctionCall)
	require.Nil(t, fc.Arguments)
	require.Equal(t, `{"city":`, fc.RawArguments)
}

func TestItemFromWire_MCPCall(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		item := itemFromWire(wireItem(t, `{"id":"mcp_1","type":"mcp_call","server_label":"deepwiki","name":"ask_question","arguments":"{\"q\":\"go\"}","output":"Go is a language"}`))

		require.Equal(t, content.RoleAssistant, item.Role)
		require.Len(t, item.Parts, 2)
		require.Equal(t, content.MCPToolCall{
			CallID:     "mcp_1",
			ToolName:   "ask_question",
			ServerName: "deepwiki",
			Arguments:  map[string]any{"q": "go"},
		}, item.Parts[0])
		require.Equal(t, content.MCPToolResult{
			CallID: "mcp_1",
			Output: []content.Part{content.Text{Text: "Go is a language"}},
		}, item.Parts[1])
	})

	t.Run("failed with object error", func(t *testing.T) {
		item := itemFromWire(wireItem(t, `{"id":"mcp_2","type":"mcp_call","server_label":"deepwiki","name":"ask_question","arguments":"{}","error":{"type":"mcp_protocol_error","message":"server unreachable"}}`))

		require.Len(t, item.Parts, 2)
		require.IsType(t, content.MCPToolCall{}, item.Parts[0])
		require.Equal(t, content.MCPToolResult{
			CallID: "mcp_2",
			Output: []content.Part{content.Error{Message: "server unreachable"}},
		}, item.Parts[1])
	})

	t.Run("failed with string error", func(t *testing.T) {
		item := itemFromWire(wireItem(t, `{"id":"mcp_3","type":"mcp_call","name":"x","error":"boom"}`))
		require.Equal(t, content.Error{Message: "boom"}, item.Parts[1].(content.MCPToolResult).Output[0])
	})

	t.Run("in progress", func(t *testing.T) {
		item := itemFromWire(wireItem(t, `{"id":"mcp_4","type":"mcp_call","name":"x","arguments":"{\"partial"}`))
		require.Len(t, item.Parts, 1)
		require.Nil(t, item.Parts[0].(content.MCPToolCall).Arguments)
	})
}

func TestItemFromWire_MCPListTools(t *testing.T) {
	item := itemFromWire(wireItem(t, `{"id":"list_1","type":"mcp_list_tools","server_label":"deepwiki","tools":[
		{"name":"read_wiki_structure","input_schema":{"type":"object"}},
		{"name":"ask_question"}
	]}`))

	require.Equal(t, []content.Part{
		content.MCPToolCall{ToolName: "read_wiki_structure", ServerName: "deepwiki"},
		content.MCPToolCall{ToolName: "ask_question", ServerName: "deepwiki"},
	}, item.Parts)
}

func TestItemFromWire_Approvals(t *testing.T) {
	item := itemFromWire(wireItem(t, `{"id":"apr_1","type":"mcp_approval_request","server_label":"deepwiki","name":"ask_question","arguments":"{\"q\":\"go\"}"}`))
	require.Equal(t, []content.Part{content.MCPApprovalRequest{
		ID: "apr_1",
		ToolCall: content.MCPToolCall{
			CallID:     "apr_1",
			ToolName:   "ask_question",
			ServerName: "deepwiki",
			Arguments:  map[string]any{"q": "go"},
		},
	}}, item.Parts)

	item = itemFromWire(wireItem(t, `{"id":"item_9","type":"mcp_approval_response","approval_request_id":"apr_1","approve":true,"reason":"ok"}`))
	require.Equal(t, content.RoleUser, item.Role)
	require.Equal(t, []content.Part{content.MCPApprovalResponse{ID: "apr_1", Approved: true, Reason: "ok"}}, item.Parts)
}

func TestItemFromWire_UnknownType(t *testing.T) {
	item := itemFromWire(wireItem(t, `{"id":"x_1","type":"reasoning"}`))
	require.Len(t, item.Parts, 1)
	raw, ok := item.Parts[0].(content.Raw)
	require.True(t, ok)
	require.Contains(t, string(raw.Value), `"reasoning"`)
}

func TestFunctionResultRoundTrip(t *testing.T) {
	data, err := EncodeClientMessage(&ConversationItemCreate{
		EventID: "e",
		Item: content.Item{Parts: []content.Part{content.FunctionResult{
			CallID: "call_1",
			Result: map[string]any{"temperature": 21.5, "unit": "C"},
		}}},
	})
	require.NoError(t, err)

	var evt events.ConversationItemCreateEvent
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, "function_call_output", evt.Item.Type)
	require.Equal(t, "call_1", evt.Item.CallID)
	require.JSONEq(t, `{"temperature":21.5,"unit":"C"}`, evt.Item.Output)

	evt.Item.ID = "item_5"
	frame, err := json.Marshal(events.ItemEvent{
		BaseEvent: events.BaseEvent{Type: events.TypeConversationItemDone, EventID: "evt_1"},
		Item:      evt.Item,
	})
	require.NoError(t, err)

	im, ok := DecodeServerEvent(frame).(*ItemMessage)
	require.True(t, ok)
	require.Equal(t, content.RoleTool, im.Item.Role)
	require.Equal(t, []content.Part{content.FunctionResult{
		CallID: "call_1",
		Result: map[string]any{"temperature": 21.5, "unit": "C"},
	}}, im.Item.Parts)
}

func TestItemToWire(t *testing.T) {
	for name, tc := range map[string]struct {
		item content.Item
		want string
	}{
		"user text": {
			content.Item{Parts: []content.Part{content.Text{Text: "hi"}}},
			`{"type":"message","role":"user","content":[{"type":"input_text","text":"hi"}]}`,
		},
		"assistant text": {
			content.Item{Role: content.RoleAssistant, Parts: []content.Part{content.Text{Text: "hello"}}},
			`{"type":"message","role":"assistant","content":[{"type":"output_text","text":"hello"}]}`,
		},
		"user audio": {
			content.Item{Role: content.RoleUser, Parts: []content.Part{content.Audio{Data: []byte{1, 2, 3}}}},
			`{"type":"message","role":"user","content":[{"type":"input_audio","audio":"AQID"}]}`,
		},
		"string result": {
			content.Item{Parts: []content.Part{content.FunctionResult{CallID: "c", Result: "sunny"}}},
			`{"type":"function_call_output","call_id":"c","output":"sunny"}`,
		},
		"empty result": {
			content.Item{Parts: []content.Part{content.FunctionResult{CallID: "c"}}},
			`{"type":"function_call_output","call_id":"c","output":""}`,
		},
		"function call": {
			content.Item{Parts: []content.Part{content.FunctionCall{CallID: "c", Name: "f", Arguments: map[string]any{"a": 1}}}},
			`{"type":"function_call","call_id":"c","name":"f","arguments":"{\"a\":1}"}`,
		},
		"approval response": {
			content.Item{Parts: []content.Part{content.MCPApprovalResponse{ID: "apr_1", Approved: false, Reason: "no"}}},
			`{"type":"mcp_approval_response","approval_request_id":"apr_1","approve":false,"reason":"no"}`,
		},
	} {
		t.Run(name, func(t *testing.T) {
			w, err := itemToWire(tc.item)
			require.NoError(t, err)
			data, err := json.Marshal(w)
			require.NoError(t, err)
			require.JSONEq(t, tc.want, string(data))
		})
	}
}

func TestItemToWire_Invalid(t *testing.T) {
	for name, item := range map[string]content.Item{
		"empty":              {},
		"result with text":   {Parts: []content.Part{content.FunctionResult{CallID: "c"}, content.Text{Text: "x"}}},
		"text with call":     {Parts: []content.Part{content.Text{Text: "x"}, content.FunctionCall{CallID: "c"}}},
		"unsupported first":  {Parts: []content.Part{content.Usage{}}},
		"approval request":   {Parts: []content.Part{content.MCPApprovalRequest{ID: "a"}}},
		"call with response": {Parts: []content.Part{content.FunctionCall{CallID: "c"}, content.MCPApprovalResponse{}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := itemToWire(item)
			require.ErrorIs(t, err, ErrInvalidItem)
		})
	}
}

func TestToolsToWire(t *testing.T) {
	tools := []tool.Tool{
		tool.Function{
			Name:        "get_weather",
			Description: "Current weather",
			Parameters: tool.Object(tool.Properties{
				"city": {Type: "string"},
			}, "city"),
		},
		&tool.MCPServer{
			ServerLabel:  "deepwiki",
			Connection:   tool.ServerURL("https://mcp.deepwiki.com/mcp"),
			AllowedTools: []string{"ask_question"},
			Approval:     tool.NeverRequire{},
		},
		tool.MCPServer{
			ServerLabel:   "calendar",
			Connection:    tool.ConnectorID("connector_googlecalendar"),
			Authorization: "token",
			Approval:      tool.RequireSpecific{Always: []string{"create_event"}},
		},
		tool.MCPServer{
			ServerLabel: "docs",
			Connection:  tool.ServerURL("https://docs.example.com/mcp"),
			Approval:    tool.AlwaysRequire{},
		},
		tool.MCPServer{
			ServerLabel: "plain",
			Connection:  tool.ServerURL("https://plain.example.com/mcp"),
		},
	}

	data, err := json.Marshal(toolsToWire(tools))
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"type":"function","name":"get_weather","description":"Current weather",
		 "parameters":{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}},
		{"type":"mcp","server_label":"deepwiki","server_url":"https://mcp.deepwiki.com/mcp","allowed_tools":["ask_question"],"require_approval":"never"},
		{"type":"mcp","server_label":"calendar","connector_id":"connector_googlecalendar","authorization":"token","require_approval":{"always":{"tool_names":["create_event"]}}},
		{"type":"mcp","server_label":"docs","server_url":"https://docs.example.com/mcp","require_approval":"always"},
		{"type":"mcp","server_label":"plain","server_url":"https://plain.example.com/mcp"}
	]`, string(data))
}

func TestToolFromWire(t *testing.T) {
	var wire []events.Tool
	require.NoError(t, json.Unmarshal([]byte(`[
		{"type":"mcp","server_label":"deepwiki","server_url":"https://mcp.deepwiki.com/mcp","require_approval":"never"},
		{"type":"mcp","server_label":"calendar","connector_id":"connector_googlecalendar","require_approval":{"never":{"tool_names":["list_events"]}}},
		{"type":"mcp","server_label":"docs","server_url":"https://docs.example.com/mcp","require_approval":"always"}
	]`), &wire))

	require.Equal(t, tool.MCPServer{
		ServerLabel: "deepwiki",
		Connection:  tool.ServerURL("https://mcp.deepwiki.com/mcp"),
		Approval:    tool.NeverRequire{},
	}, toolFromWire(wire[0]))
	require.Equal(t, tool.MCPServer{
		ServerLabel: "calendar",
		Connection:  tool.ConnectorID("connector_googlecalendar"),
		Approval:    tool.RequireSpecific{Never: []string{"list_events"}},
	}, toolFromWire(wire[1]))
	require.Equal(t, tool.AlwaysRequire{}, toolFromWire(wire[2]).(tool.MCPServer).Approval)
}
