package shared

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

func ConvertToMcpTool(def openai.FunctionDefinition) (mcp.Tool, error) {
	data, err := json.Marshal(def.Parameters)
	if err != nil {
		return mcp.Tool{}, err
	}

	tool := mcp.NewToolWithRawSchema(def.Name, def.Description, data)
	return tool, nil
}

// ConvertToFunctionDefinition renders a descriptor as a function the model
// can call. The parameter list is repeated in the description because some
// served models ignore the schema.
func ConvertToFunctionDefinition(desc ToolDescriptor) openai.FunctionDefinition {
	description := desc.Description
	if description == "" {
		description = fmt.Sprintf("Tool %s", desc.Identifier)
	}

	params := jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: map[string]jsonschema.Definition{},
	}
	var lines []string
	for _, p := range desc.Parameters {
		params.Properties[p.Name] = jsonschema.Definition{
			Type:        jsonschema.DataType(p.Type),
			Description: p.Description,
		}
		if p.Required {
			params.Required = append(params.Required, p.Name)
		}

		line := fmt.Sprintf("%s (%s)", p.Name, p.Type)
		if p.Required {
			line += " [required]"
		}
		if p.Description != "" {
			line += ": " + p.Description
		}
		lines = append(lines, "- "+line)
	}
	if len(lines) != 0 {
		description += "\n\nParameters:\n" + strings.Join(lines, "\n")
	}

	return openai.FunctionDefinition{
		Name:        desc.Identifier,
		Description: description,
		Parameters:  params,
	}
}

type wireTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema struct {
		Properties map[string]struct {
			Type        any    `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	} `json:"inputSchema"`
}

// DescriptorFromMcpTool reads the descriptor back out of an MCP tool. The tool
// is round-tripped through its JSON form so raw and structured input schemas
// are handled the same way.
func DescriptorFromMcpTool(tool mcp.Tool) (ToolDescriptor, error) {
	data, err := json.Marshal(tool)
	if err != nil {
		return ToolDescriptor{}, fmt.Errorf("encode tool %s: %w", tool.Name, err)
	}
	var wire wireTool
	if err := json.Unmarshal(data, &wire); err != nil {
		return ToolDescriptor{}, fmt.Errorf("decode tool %s: %w", tool.Name, err)
	}

	required := map[string]bool{}
	for _, name := range wire.InputSchema.Required {
		required[name] = true
	}
	desc := ToolDescriptor{
		Identifier:  wire.Name,
		Description: wire.Description,
	}
	for name, prop := range wire.InputSchema.Properties {
		desc.Parameters = append(desc.Parameters, ParameterSpec{
			Name:        name,
			Type:        schemaType(prop.Type),
			Required:    required[name],
			Description: prop.Description,
		})
	}
	sort.Slice(desc.Parameters, func(i, j int) bool {
		return desc.Parameters[i].Name < desc.Parameters[j].Name
	})
	return desc, nil
}

// schemaType picks the first non-null entry when the schema declares a type
// union.
func schemaType(t any) ParameterType {
	switch v := t.(type) {
	case string:
		return ParameterType(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "null" {
				return ParameterType(s)
			}
		}
	}
	return ""
}
