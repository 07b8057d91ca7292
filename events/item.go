package events

import (
	"encoding/json"
	"strings"
)

const (
	ItemTypeMessage             = "message"
	ItemTypeFunctionCall        = "function_call"
	ItemTypeFunctionCallOutput  = "function_call_output"
	ItemTypeMCPCall             = "mcp_call"
	ItemTypeMCPListTools        = "mcp_list_tools"
	ItemTypeMCPApprovalRequest  = "mcp_approval_request"
	ItemTypeMCPApprovalResponse = "mcp_approval_response"

	ContentTypeInputText   = "input_text"
	ContentTypeOutputText  = "output_text"
	ContentTypeText        = "text"
	ContentTypeInputAudio  = "input_audio"
	ContentTypeOutputAudio = "output_audio"
	ContentTypeAudio       = "audio"
)

// Item is the wire "item" object. Which fields are meaningful depends on Type.
type Item struct {
	ID     string `json:"id,omitempty"`
	Object string `json:"object,omitempty"`
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`

	// message
	Role    string        `json:"role,omitempty"`
	Content []ItemContent `json:"content,omitempty"`

	// function_call, function_call_output
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`

	// mcp_call, mcp_list_tools, mcp_approval_request
	ServerLabel string          `json:"server_label,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
	Tools       []MCPToolInfo   `json:"tools,omitempty"`

	// mcp_approval_response
	ApprovalRequestID string `json:"approval_request_id,omitempty"`
	Approve           *bool  `json:"approve,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

type ItemContent struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Audio      string `json:"audio,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

type MCPToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// MarshalJSON always emits "output" on function_call_output items, since the
// server rejects the item without it even when the result is empty.
func (i Item) MarshalJSON() ([]byte, error) {
	type alias Item
	if i.Type != ItemTypeFunctionCallOutput {
		return json.Marshal(alias(i))
	}
	return json.Marshal(struct {
		alias
		Output string `json:"output"`
	}{alias(i), i.Output})
}

// ErrorMessage extracts a human readable message from an mcp_call error, which the
// server sends either as a string or as an object with a "message" field.
func (i Item) ErrorMessage() string {
	if len(i.Error) == 0 || isNull(i.Error) {
		return ""
	}
	var s string
	if err := json.Unmarshal(i.Error, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	}
	if err := json.Unmarshal(i.Error, &obj); err == nil && obj.Message != "" {
		return obj.Message
	} else if err == nil && obj.Type != "" {
		return obj.Type
	}
	return strings.TrimSpace(string(i.Error))
}
