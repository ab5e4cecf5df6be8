package llamastack_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laptop-refresh/llamastack"
	"laptop-refresh/llamastack/llamastacktest"
	"laptop-refresh/shared"
)

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := llamastack.New("", 0, nil)
	assert.Error(t, err)
	_, err = llamastack.New("localhost:8321", 0, nil)
	assert.Error(t, err)

	client, err := llamastack.New("http://localhost:8321/", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8321", client.BaseURL())
}

func TestToolGroupJSON(t *testing.T) {
	groups := []llamastack.ToolGroup{
		{Name: "builtin::rag/knowledge_search", Args: map[string]any{"vector_db_ids": []string{"laptop-refresh-knowledge-base"}}},
		{Name: "mcp::asset_database"},
	}
	data, err := json.Marshal(groups)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"name": "builtin::rag/knowledge_search", "args": {"vector_db_ids": ["laptop-refresh-knowledge-base"]}},
		"mcp::asset_database"
	]`, string(data))

	var decoded []llamastack.ToolGroup
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "builtin::rag/knowledge_search", decoded[0].Name)
	assert.Equal(t, "mcp::asset_database", decoded[1].Name)
	assert.Nil(t, decoded[1].Args)
}

func TestAgentSessionAndTurn(t *testing.T) {
	fake := llamastacktest.New(t)
	client := fake.Client(t)
	ctx := context.Background()

	agentID, err := client.CreateAgent(ctx, llamastack.AgentConfig{
		Model:         "llama-4-scout-17b-16e-w4a16",
		Instructions:  "route requests",
		ToolChoice:    "auto",
		MaxInferIters: 10,
	})
	require.NoError(t, err)
	cfg := fake.Agents[agentID]
	assert.Equal(t, "llama-4-scout-17b-16e-w4a16", cfg.Model)
	assert.NotNil(t, cfg.InputShields)
	assert.NotNil(t, cfg.OutputShields)

	sessionID, err := client.CreateSession(ctx, agentID, "agent1")
	require.NoError(t, err)

	fake.SetResponder(func(turn llamastacktest.TurnRequest) ([]shared.TurnEvent, error) {
		events := []shared.TurnEvent{
			{Type: shared.EventTurnStart},
			{
				Type:     shared.EventStepComplete,
				StepType: shared.StepToolExecution,
				ToolCalls: []shared.ToolCallRecord{
					{CallID: "c1", ToolName: "get_laptop_info", Arguments: `{"employee_id":"1234"}`},
				},
				ToolResponses: []shared.ToolResponse{
					{CallID: "c1", ToolName: "get_laptop_info", Content: []shared.ContentItem{{Type: "text", Text: `{"geo":"North America"}`}}},
				},
			},
		}
		return append(events, llamastacktest.Reply("REFRESH_AGENT")...), nil
	})

	stream, err := client.CreateTurn(ctx, agentID, sessionID, []llamastack.Message{{Role: "user", Content: "Laptop refresh"}})
	require.NoError(t, err)
	defer stream.Close()

	var events []shared.TurnEvent
	for {
		event, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		events = append(events, event)
	}
	require.Len(t, events, 7)
	assert.Equal(t, shared.EventStepComplete, events[1].Type)
	assert.Equal(t, shared.StepToolExecution, events[1].StepType)
	assert.Equal(t, `{"employee_id":"1234"}`, events[1].ToolCalls[0].Arguments)
	assert.Equal(t, `{"geo":"North America"}`, events[1].ToolResponses[0].Content[0].Text)
	assert.Equal(t, "REFRESH_AGENT", events[4].Delta)
	assert.Equal(t, shared.EventTurnComplete, events[6].Type)
	assert.Equal(t, "REFRESH_AGENT", events[6].Text)

	require.Len(t, fake.Turns, 1)
	assert.Equal(t, "Laptop refresh", fake.Turns[0].Messages[0].Content)
	assert.Equal(t, "user", fake.Turns[0].Messages[0].Role)

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCreateSessionUnknownAgent(t *testing.T) {
	fake := llamastacktest.New(t)
	_, err := fake.Client(t).CreateSession(context.Background(), "missing", "agent1")
	var requestErr *llamastack.RequestError
	require.ErrorAs(t, err, &requestErr)
	assert.Equal(t, http.StatusNotFound, requestErr.StatusCode)
	assert.Contains(t, requestErr.Message, "agent missing not found")
}

func TestTurnStreamDecoding(t *testing.T) {
	serve := func(t *testing.T, body string) *llamastack.TurnStream {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, body)
		}))
		t.Cleanup(server.Close)
		client, err := llamastack.New(server.URL, 0, server.Client())
		require.NoError(t, err)
		stream, err := client.CreateTurn(context.Background(), "a", "s", nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = stream.Close() })
		return stream
	}

	t.Run("comments and list content", func(t *testing.T) {
		stream := serve(t, ": keep-alive\n\n"+
			"event: message\n"+
			`data: {"event":{"payload":{"event_type":"turn_complete","turn":{"output_message":{"content":[{"type":"text","text":"I cannot "},{"type":"text","text":"help you with your request"}]}}}}}`+"\n\n")
		event, err := stream.Next()
		require.NoError(t, err)
		assert.Equal(t, "I cannot help you with your request", event.Text)
		_, err = stream.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("chunks without payload are skipped", func(t *testing.T) {
		stream := serve(t, "data: {}\n\n"+
			`data: {"event":{"payload":{"event_type":"turn_start"}}}`+"\n\n")
		event, err := stream.Next()
		require.NoError(t, err)
		assert.Equal(t, shared.EventTurnStart, event.Type)
	})

	t.Run("unknown event type", func(t *testing.T) {
		stream := serve(t, `data: {"event":{"payload":{"event_type":"mystery"}}}`+"\n\n")
		_, err := stream.Next()
		assert.ErrorIs(t, err, llamastack.ErrDecodeResponse)
	})

	t.Run("error chunk", func(t *testing.T) {
		stream := serve(t, `data: {"error":{"message":"model overloaded"}}`+"\n\n")
		_, err := stream.Next()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model overloaded")
	})

	t.Run("arguments as object", func(t *testing.T) {
		stream := serve(t, `data: {"event":{"payload":{"event_type":"step_complete","step_type":"tool_execution","step_details":{"tool_calls":[{"call_id":"1","tool_name":"knowledge_search","arguments":{"query":"refresh policy"}}],"tool_responses":[{"call_id":"1","tool_name":"knowledge_search","content":"plain"}]}}}}`+"\n\n")
		event, err := stream.Next()
		require.NoError(t, err)
		assert.JSONEq(t, `{"query":"refresh policy"}`, event.ToolCalls[0].Arguments)
		assert.Equal(t, []shared.ContentItem{{Type: "text", Text: "plain"}}, event.ToolResponses[0].Content)
	})
}

func TestListTools(t *testing.T) {
	fake := llamastacktest.New(t)
	optional := false
	fake.AddTool(llamastack.Tool{
		Identifier:  "submit_laptop_request",
		Description: "Submit a laptop request",
		Parameters: []llamastack.ToolParameter{
			{Name: "employee_id", ParameterType: "string"},
			{Name: "laptop_model", ParameterType: "string", Required: &optional},
		},
	}, nil)

	tools, err := fake.Client(t).ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "knowledge_search", tools[0].Identifier)
	assert.Equal(t, shared.ParamString, tools[0].Parameters[0].Type)

	submit := tools[1]
	assert.Equal(t, "submit_laptop_request", submit.Identifier)
	assert.True(t, submit.Parameters[0].Required)
	assert.False(t, submit.Parameters[1].Required)
}

func TestListToolsBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"identifier":"get_laptop_info","parameters":[{"name":"employee_id","parameter_type":"string","required":true}]}]`)
	}))
	defer server.Close()
	client, err := llamastack.New(server.URL, 0, server.Client())
	require.NoError(t, err)

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "get_laptop_info", tools[0].Identifier)
}

func TestInvokeTool(t *testing.T) {
	fake := llamastacktest.New(t)
	fake.AddTool(llamastack.Tool{Identifier: "get_laptop_info"}, func(kwargs map[string]any) (llamastack.Content, error) {
		return llamastack.Content{{Type: "text", Text: "employee " + kwargs["employee_id"].(string)}}, nil
	})
	fake.AddTool(llamastack.Tool{Identifier: "broken"}, func(map[string]any) (llamastack.Content, error) {
		return nil, errors.New("backend unavailable")
	})
	client := fake.Client(t)

	reply, err := client.InvokeTool(context.Background(), "get_laptop_info", map[string]any{"employee_id": "1234"})
	require.NoError(t, err)
	assert.Equal(t, []shared.ContentItem{{Type: "text", Text: "employee 1234"}}, reply.Content)
	assert.NotNil(t, reply.Raw)

	_, err = client.InvokeTool(context.Background(), "broken", nil)
	var requestErr *llamastack.RequestError
	require.ErrorAs(t, err, &requestErr)
	assert.Equal(t, "backend unavailable", requestErr.Message)
}

func TestInvokeToolErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"content":null,"error_message":"employee not found","error_code":1}`)
	}))
	defer server.Close()
	client, err := llamastack.New(server.URL, 0, server.Client())
	require.NoError(t, err)

	reply, err := client.InvokeTool(context.Background(), "get_laptop_info", nil)
	require.NoError(t, err)
	assert.Empty(t, reply.Content)
	assert.Equal(t, "employee not found", reply.Error)
	raw, ok := reply.Raw.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "employee not found", raw["error_message"])
}

func TestRegisterToolGroupAndVectorStore(t *testing.T) {
	fake := llamastacktest.New(t)
	client := fake.Client(t)
	ctx := context.Background()

	require.NoError(t, client.RegisterToolGroup(ctx, "mcp::servicenow", "model-context-protocol", "http://localhost:8003/sse"))
	require.Len(t, fake.ToolGroups, 1)
	assert.Equal(t, llamastacktest.ToolGroupRegistration{
		ToolGroupID: "mcp::servicenow",
		ProviderID:  "model-context-protocol",
		URI:         "http://localhost:8003/sse",
	}, fake.ToolGroups[0])

	providers, err := client.ListProviders(ctx)
	require.NoError(t, err)
	assert.Len(t, providers, 3)

	err = client.InsertDocuments(ctx, "kb", []llamastack.Document{{DocumentID: "doc-1", Content: "x"}}, 1000)
	assert.Error(t, err, "insert before registration")

	require.NoError(t, client.RegisterVectorDB(ctx, "kb", "faiss", "all-MiniLM-L6-v2"))
	require.NoError(t, client.InsertDocuments(ctx, "kb", []llamastack.Document{{DocumentID: "doc-1", Content: "x", MimeType: "text/plain"}}, 1000))
	assert.Equal(t, 1000, fake.ChunkSizes["kb"])
	assert.NotNil(t, fake.Documents["kb"][0].Metadata)
}

func TestContentText(t *testing.T) {
	var content llamastack.Content
	require.NoError(t, json.Unmarshal([]byte(`{"type":"text","text":"one"}`), &content))
	assert.Equal(t, "one", content.Text())
	require.NoError(t, json.Unmarshal([]byte(`null`), &content))
	assert.Empty(t, content)
	assert.Error(t, json.Unmarshal([]byte(`42`), &content))
	assert.True(t, strings.HasPrefix(llamastack.Content{{Text: "a"}, {Text: "b"}}.Text(), "ab"))
}
