package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/spf13/cast"
)

func (db *AssetDB) laptopInfoTool() (openai.FunctionDefinition, server.ToolHandlerFunc) {
	def := openai.FunctionDefinition{
		Name:        "get_laptop_info",
		Description: "Get laptop information for an employee including geo location and purchase date. Returns a JSON string containing laptop information including geo, purchase date and timestamp.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"employee_id": {
					Type:        jsonschema.String,
					Description: "The ID of the employee to look up laptop information for",
				},
			},
			Required: []string{"employee_id"},
		},
	}
	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		employeeID, err := requireString(request, "employee_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(db.LaptopInfo(employeeID))
	}
	return def, handler
}

func (s *ServiceNow) laptopRequestTool() (openai.FunctionDefinition, server.ToolHandlerFunc) {
	def := openai.FunctionDefinition{
		Name:        "submit_laptop_request",
		Description: "Submit a laptop request to ServiceNow and get a ticket number. Returns a JSON string containing ticket information including ticket number, status and timestamp.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"employee_id": {
					Type:        jsonschema.String,
					Description: "The ID of the employee requesting the laptop",
				},
				"laptop_model": {
					Type:        jsonschema.String,
					Description: "The laptop model being requested",
				},
			},
			Required: []string{"employee_id", "laptop_model"},
		},
	}
	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		employeeID, err := requireString(request, "employee_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		laptopModel, err := requireString(request, "laptop_model")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(s.SubmitLaptopRequest(employeeID, laptopModel))
	}
	return def, handler
}

// requireString accepts any scalar, so numeric employee ids sent by a model
// still resolve.
func requireString(request mcp.CallToolRequest, key string) (string, error) {
	value, ok := request.GetArguments()[key]
	if !ok || value == nil {
		return "", fmt.Errorf("required argument %q not found", key)
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return "", fmt.Errorf("argument %q is not a string: %w", key, err)
	}
	return s, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
