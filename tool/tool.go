package tool

type Choice string

const (
	ChoiceAuto     Choice = "auto"
	ChoiceNone     Choice = "none"
	ChoiceRequired Choice = "required"
)

// Tool is a Function or an MCPServer.
type Tool interface {
	isTool()
}

// Function is a plain function the model may call. Parameters is a JSON schema,
// either a Parameters value or any JSON-marshalable schema.
type Function struct {
	Name        string
	Description string
	Parameters  any
}

// MCPServer is a tool server hosted by the remote service. Connection is either a
// ServerURL or a ConnectorID.
type MCPServer struct {
	ServerLabel       string
	ServerDescription string
	Connection        Connection
	Authorization     string
	Headers           map[string]string
	AllowedTools      []string
	Approval          ApprovalMode
}

func (Function) isTool()  {}
func (MCPServer) isTool() {}

// Connection identifies how the remote service reaches an MCP server.
type Connection interface {
	isConnection()
}

type ServerURL string

type ConnectorID string

func (ServerURL) isConnection()   {}
func (ConnectorID) isConnection() {}

// ApprovalMode is one of NeverRequire, AlwaysRequire or RequireSpecific.
type ApprovalMode interface {
	isApprovalMode()
}

type NeverRequire struct{}

type AlwaysRequire struct{}

// RequireSpecific lists tools by name. The two lists are expected to be disjoint.
type RequireSpecific struct {
	Always []string
	Never  []string
}

func (NeverRequire) isApprovalMode()    {}
func (AlwaysRequire) isApprovalMode()   {}
func (RequireSpecific) isApprovalMode() {}

type Parameters struct {
	Type       string     `json:"type"`
	Properties Properties `json:"properties"`
	Required   []string   `json:"required"`
}

type Properties map[string]Property

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Object is shorthand for an object schema.
func Object(props Properties, required ...string) Parameters {
	if props == nil {
		props = make(Properties)
	}
	if required == nil {
		required = []string{}
	}
	return Parameters{Type: "object", Properties: props, Required: required}
}
