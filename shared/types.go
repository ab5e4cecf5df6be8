package shared

// ParameterType is the declared type of a tool parameter.
type ParameterType string

const (
	ParamString  ParameterType = "string"
	ParamInteger ParameterType = "integer"
	ParamNumber  ParameterType = "number"
	ParamBoolean ParameterType = "boolean"
)

type ParameterSpec struct {
	Name        string
	Type        ParameterType
	Required    bool
	Description string
}

// ToolDescriptor describes a tool exposed by the platform or an MCP server.
type ToolDescriptor struct {
	Identifier  string
	Description string
	Parameters  []ParameterSpec
}

// ContentItem is one structured item of a tool reply.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolReply is what a tool source returns for one invocation. Raw holds the
// whole reply as received, Content the structured items it exposed (if any).
type ToolReply struct {
	Content []ContentItem
	Raw     any
	// Error is a remote-reported failure that did not abort the call.
	Error string
}
