package agent

import (
	"context"

	"github.com/rs/zerolog/log"

	"laptop-refresh/config"
	"laptop-refresh/llamastack"
)

// RemotePlatform runs turns on an agent hosted by the platform.
type RemotePlatform struct {
	client  *llamastack.Client
	agentID string
}

// NewRemotePlatform creates the agent once; all sessions belong to it.
func NewRemotePlatform(ctx context.Context, client *llamastack.Client, cfg llamastack.AgentConfig) (*RemotePlatform, error) {
	agentID, err := client.CreateAgent(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("agent_id", agentID).Str("model", cfg.Model).Int("toolgroups", len(cfg.ToolGroups)).Msg("created agent")
	return &RemotePlatform{client: client, agentID: agentID}, nil
}

func (p *RemotePlatform) AgentID() string {
	return p.agentID
}

func (p *RemotePlatform) NewSession(ctx context.Context, name string) (Session, error) {
	sessionID, err := p.client.CreateSession(ctx, p.agentID, name)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("agent_id", p.agentID).Str("session_id", sessionID).Msg("created session")
	return &remoteSession{platform: p, id: sessionID}, nil
}

type remoteSession struct {
	platform *RemotePlatform
	id       string
}

func (s *remoteSession) ID() string {
	return s.id
}

func (s *remoteSession) Turn(ctx context.Context, text string) (EventStream, error) {
	stream, err := s.platform.client.CreateTurn(ctx, s.platform.agentID, s.id, []llamastack.Message{
		{Role: "user", Content: text},
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// AgentConfig builds the agent configuration payload. withTools false gives
// the tool-less routing agent, which runs on agent.routing_model when set.
func AgentConfig(cfg *config.Config, instructions string, withTools bool) llamastack.AgentConfig {
	agentCfg := llamastack.AgentConfig{
		Model:         cfg.Agent.Model,
		Instructions:  instructions,
		ToolChoice:    cfg.Agent.ToolChoice,
		MaxInferIters: cfg.Agent.MaxInferIters,
	}
	if !withTools {
		if cfg.Agent.RoutingModel != "" {
			agentCfg.Model = cfg.Agent.RoutingModel
		}
		return agentCfg
	}
	if cfg.Agent.KnowledgeSearch {
		agentCfg.ToolGroups = append(agentCfg.ToolGroups, llamastack.ToolGroup{
			Name: config.DefaultKnowledgeSearch,
			Args: map[string]any{"vector_db_ids": []string{cfg.Knowledge.VectorDBID}},
		})
	}
	for _, name := range cfg.Agent.ToolGroups {
		agentCfg.ToolGroups = append(agentCfg.ToolGroups, llamastack.ToolGroup{Name: name})
	}
	return agentCfg
}
