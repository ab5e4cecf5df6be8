package llamastack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"laptop-refresh/shared"
)

type ToolParameter struct {
	Name          string `json:"name"`
	ParameterType string `json:"parameter_type"`
	Description   string `json:"description"`
	Required      *bool  `json:"required,omitempty"`
}

type Tool struct {
	Identifier  string          `json:"identifier"`
	Description string          `json:"description"`
	ToolGroupID string          `json:"toolgroup_id"`
	Parameters  []ToolParameter `json:"parameters"`
}

// Descriptor converts the platform's tool into a ToolDescriptor. Parameters
// without an explicit "required" flag are required, matching the platform's
// default.
func (t Tool) Descriptor() shared.ToolDescriptor {
	desc := shared.ToolDescriptor{
		Identifier:  t.Identifier,
		Description: t.Description,
	}
	for _, p := range t.Parameters {
		required := true
		if p.Required != nil {
			required = *p.Required
		}
		desc.Parameters = append(desc.Parameters, shared.ParameterSpec{
			Name:        p.Name,
			Type:        shared.ParameterType(p.ParameterType),
			Required:    required,
			Description: p.Description,
		})
	}
	return desc
}

// ListTools returns every tool the platform knows about, across tool groups.
func (c *Client) ListTools(ctx context.Context) ([]shared.ToolDescriptor, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tools", nil, &raw); err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	tools, err := listData[Tool](raw)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	descriptors := make([]shared.ToolDescriptor, 0, len(tools))
	for _, tool := range tools {
		descriptors = append(descriptors, tool.Descriptor())
	}
	return descriptors, nil
}

type toolInvocationResult struct {
	Content      Content `json:"content"`
	ErrorMessage string  `json:"error_message"`
	ErrorCode    *int    `json:"error_code"`
}

// InvokeTool runs a tool through the platform's tool runtime.
func (c *Client) InvokeTool(ctx context.Context, name string, kwargs map[string]any) (shared.ToolReply, error) {
	request := struct {
		ToolName string         `json:"tool_name"`
		Kwargs   map[string]any `json:"kwargs"`
	}{name, kwargs}
	if request.Kwargs == nil {
		request.Kwargs = map[string]any{}
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tool-runtime/invoke", request, &raw); err != nil {
		return shared.ToolReply{}, fmt.Errorf("invoke tool %s: %w", name, err)
	}
	var result toolInvocationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return shared.ToolReply{}, fmt.Errorf("invoke tool %s: %w: %v", name, ErrDecodeResponse, err)
	}
	var whole any
	_ = json.Unmarshal(raw, &whole)

	return shared.ToolReply{
		Content: result.Content,
		Raw:     whole,
		Error:   result.ErrorMessage,
	}, nil
}

// RegisterToolGroup registers an MCP server as a tool group.
func (c *Client) RegisterToolGroup(ctx context.Context, toolGroupID, providerID, endpointURI string) error {
	request := struct {
		ToolGroupID string `json:"toolgroup_id"`
		ProviderID  string `json:"provider_id"`
		MCPEndpoint struct {
			URI string `json:"uri"`
		} `json:"mcp_endpoint"`
	}{ToolGroupID: toolGroupID, ProviderID: providerID}
	request.MCPEndpoint.URI = endpointURI

	if err := c.doJSON(ctx, http.MethodPost, "/v1/toolgroups", request, nil); err != nil {
		return fmt.Errorf("register tool group %s: %w", toolGroupID, err)
	}
	return nil
}
