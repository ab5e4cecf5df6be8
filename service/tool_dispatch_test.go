package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laptop-refresh/service"
)

func echoEndpoint(name string) service.ToolEndPoint {
	return service.ToolEndPoint{
		Name: name,
		Def:  openai.FunctionDefinition{Name: name},
		Handler: func(ctx context.Context, args string) (string, error) {
			return name + ":" + args, nil
		},
	}
}

func TestToolDispatcher(t *testing.T) {
	td := service.NewToolDispatcher()
	require.NoError(t, td.RegisterToolEndpoint(echoEndpoint("b_tool"), echoEndpoint("a_tool")))
	require.NoError(t, td.RegisterToolEndpoint(service.ToolEndPoint{
		Name: "failing",
		Def:  openai.FunctionDefinition{Name: "failing"},
		Handler: func(ctx context.Context, args string) (string, error) {
			return "", errors.New("backend down")
		},
	}))

	t.Run("duplicate names are rejected", func(t *testing.T) {
		err := td.RegisterToolEndpoint(echoEndpoint("a_tool"))
		assert.ErrorContains(t, err, "a_tool already exist")
		assert.Equal(t, 3, td.Len())
	})

	t.Run("tools are listed by name", func(t *testing.T) {
		tools := td.GetTools()
		require.Len(t, tools, 3)
		assert.Equal(t, "a_tool", tools[0].Function.Name)
		assert.Equal(t, "b_tool", tools[1].Function.Name)
		assert.Equal(t, openai.ToolTypeFunction, tools[0].Type)
	})

	t.Run("runs calls and logs them", func(t *testing.T) {
		td.ResetLog()
		ctx := context.Background()

		msg, execLog := td.Run(ctx, openai.ToolCall{ID: "c1", Function: openai.FunctionCall{Name: "a_tool", Arguments: `{}`}})
		assert.Equal(t, openai.ChatMessageRoleTool, msg.Role)
		assert.Equal(t, "c1", msg.ToolCallID)
		assert.Equal(t, "a_tool:{}", msg.Content)
		assert.NoError(t, execLog.ToolCallErr)

		msg, execLog = td.Run(ctx, openai.ToolCall{ID: "c2", Function: openai.FunctionCall{Name: "failing"}})
		assert.Equal(t, "Execute tool call failed, error: backend down", msg.Content)
		assert.Error(t, execLog.ToolCallErr)

		msg, _ = td.Run(ctx, openai.ToolCall{ID: "c3", Function: openai.FunctionCall{Name: "missing"}})
		assert.Contains(t, msg.Content, "Can not find tool with name missing")

		logs := td.Logs()
		require.Len(t, logs, 3)
		assert.Equal(t, 2, logs[2].ID)
		assert.Equal(t, "c2", logs[1].ToolCallID)
	})
}
