package llamastack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ToolGroup references a registered tool group. Groups with args are sent as
// {"name": ..., "args": ...}, the others as a bare name.
type ToolGroup struct {
	Name string
	Args map[string]any
}

func (g ToolGroup) MarshalJSON() ([]byte, error) {
	if len(g.Args) == 0 {
		return json.Marshal(g.Name)
	}
	return json.Marshal(struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args"`
	}{g.Name, g.Args})
}

func (g *ToolGroup) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*g = ToolGroup{Name: name}
		return nil
	}
	var full struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args"`
	}
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}
	*g = ToolGroup{Name: full.Name, Args: full.Args}
	return nil
}

type AgentConfig struct {
	Model         string      `json:"model"`
	Instructions  string      `json:"instructions"`
	ToolGroups    []ToolGroup `json:"toolgroups,omitempty"`
	ToolChoice    string      `json:"tool_choice,omitempty"`
	InputShields  []string    `json:"input_shields"`
	OutputShields []string    `json:"output_shields"`
	MaxInferIters int         `json:"max_infer_iters,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) CreateAgent(ctx context.Context, cfg AgentConfig) (string, error) {
	if cfg.InputShields == nil {
		cfg.InputShields = []string{}
	}
	if cfg.OutputShields == nil {
		cfg.OutputShields = []string{}
	}
	request := struct {
		AgentConfig AgentConfig `json:"agent_config"`
	}{cfg}
	var response struct {
		AgentID string `json:"agent_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/agents", request, &response); err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}
	if response.AgentID == "" {
		return "", fmt.Errorf("create agent: %w: empty agent_id", ErrDecodeResponse)
	}
	return response.AgentID, nil
}

func (c *Client) CreateSession(ctx context.Context, agentID, name string) (string, error) {
	request := struct {
		SessionName string `json:"session_name"`
	}{name}
	var response struct {
		SessionID string `json:"session_id"`
	}
	path := "/v1/agents/" + url.PathEscape(agentID) + "/session"
	if err := c.doJSON(ctx, http.MethodPost, path, request, &response); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if response.SessionID == "" {
		return "", fmt.Errorf("create session: %w: empty session_id", ErrDecodeResponse)
	}
	return response.SessionID, nil
}

// CreateTurn submits messages to a session and returns the streamed turn.
// The caller must Close the stream.
func (c *Client) CreateTurn(ctx context.Context, agentID, sessionID string, messages []Message) (*TurnStream, error) {
	request := struct {
		Messages []Message `json:"messages"`
		Stream   bool      `json:"stream"`
	}{messages, true}
	path := "/v1/agents/" + url.PathEscape(agentID) + "/session/" + url.PathEscape(sessionID) + "/turn"
	response, err := c.send(ctx, http.MethodPost, path, request, "text/event-stream")
	if err != nil {
		return nil, fmt.Errorf("create turn: %w", err)
	}
	return newTurnStream(response.Body), nil
}
