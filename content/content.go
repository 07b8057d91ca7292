// Package content holds the provider-neutral conversation model: role-tagged items
// made of typed parts.
package content

import "encoding/json"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Item is an ordered, role-tagged envelope of parts. ID stays empty until the
// remote side assigns one.
type Item struct {
	ID    string
	Role  Role
	Parts []Part
}

// Part is one of Text, Audio, FunctionCall, FunctionResult, MCPToolCall,
// MCPToolResult, MCPApprovalRequest, MCPApprovalResponse, Error, Usage or Raw.
type Part interface {
	isPart()
}

type Text struct {
	Text string
}

// Audio is a chunk of raw audio bytes, optionally with its transcript.
type Audio struct {
	Data       []byte
	Transcript string
}

// FunctionCall carries the call arguments once they are complete. While the
// arguments are still streaming Arguments is nil and RawArguments holds what has
// arrived so far.
type FunctionCall struct {
	CallID       string
	Name         string
	Arguments    map[string]any
	RawArguments string
}

// FunctionResult is the output of a function call. Result is either the decoded
// JSON value or the raw text when it is not JSON.
type FunctionResult struct {
	CallID string
	Result any
}

type MCPToolCall struct {
	CallID     string
	ToolName   string
	ServerName string
	Arguments  map[string]any
}

type MCPToolResult struct {
	CallID string
	Output []Part
}

type MCPApprovalRequest struct {
	ID       string
	ToolCall MCPToolCall
}

type MCPApprovalResponse struct {
	ID       string
	Approved bool
	Reason   string
}

type Error struct {
	Message string
	Code    string
	Details string
}

func (e Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

type Usage struct {
	InputTokens       int64
	OutputTokens      int64
	TotalTokens       int64
	CachedInputTokens int64
	InputAudioTokens  int64
	InputTextTokens   int64
	OutputAudioTokens int64
	OutputTextTokens  int64
	// Seconds is set instead of token counts for duration billed transcriptions.
	Seconds float64
}

// Raw is a part the mapper has no typed representation for.
type Raw struct {
	Value json.RawMessage
}

func (Text) isPart()                {}
func (Audio) isPart()               {}
func (FunctionCall) isPart()        {}
func (FunctionResult) isPart()      {}
func (MCPToolCall) isPart()         {}
func (MCPToolResult) isPart()       {}
func (MCPApprovalRequest) isPart()  {}
func (MCPApprovalResponse) isPart() {}
func (Error) isPart()               {}
func (Usage) isPart()               {}
func (Raw) isPart()                 {}

// Text concatenates all text parts of the item.
func (i Item) Text() string {
	var s string
	for _, p := range i.Parts {
		if t, ok := p.(Text); ok {
			s += t.Text
		}
	}
	return s
}

// ParseArguments decodes a complete JSON object of call arguments. An empty
// string yields an empty map.
func ParseArguments(s string) (map[string]any, error) {
	args := map[string]any{}
	if s == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// ParseResult decodes s as JSON when possible and falls back to the raw text.
func ParseResult(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
