package events

const (
	ToolTypeFunction = "function"
	ToolTypeMCP      = "mcp"

	ApprovalNever  = "never"
	ApprovalAlways = "always"
)

// Tool is the wire tool object for both function and mcp tools.
type Tool struct {
	Type string `json:"type"`

	// function
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`

	// mcp
	ServerLabel       string            `json:"server_label,omitempty"`
	ServerURL         string            `json:"server_url,omitempty"`
	ConnectorID       string            `json:"connector_id,omitempty"`
	ServerDescription string            `json:"server_description,omitempty"`
	AllowedTools      []string          `json:"allowed_tools,omitempty"`
	Headers           map[string]string `json:"headers,omitempty"`
	Authorization     string            `json:"authorization,omitempty"`
	// RequireApproval is either ApprovalNever, ApprovalAlways or an ApprovalFilter.
	RequireApproval any `json:"require_approval,omitempty"`
}

type ApprovalFilter struct {
	Always *ToolNameFilter `json:"always,omitempty"`
	Never  *ToolNameFilter `json:"never,omitempty"`
}

type ToolNameFilter struct {
	ToolNames []string `json:"tool_names"`
}
