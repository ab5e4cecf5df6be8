package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"laptop-refresh/config"
	"laptop-refresh/service"
)

var ErrNoTools = errors.New("no usable tools discovered")

// TargetTools are the tools the local agent is given when they are listed.
var TargetTools = []string{"get_laptop_info", "submit_laptop_request", "knowledge_search"}

// DiscoverTools lists the tools of source, keeps the targets and wraps each
// in a service.ToolAdapter. Finding none of them is an error.
func DiscoverTools(ctx context.Context, source service.ToolSource, vectorDBID string) (*service.ToolDispatcher, error) {
	descriptors, err := source.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tools: %w", err)
	}
	wanted := map[string]bool{}
	for _, name := range TargetTools {
		wanted[name] = true
	}

	dispatcher := service.NewToolDispatcher()
	for _, desc := range descriptors {
		if !wanted[desc.Identifier] {
			continue
		}
		endpoint := service.NewToolAdapter(desc, source, service.WithVectorDBID(vectorDBID)).EndPoint()
		if err := dispatcher.RegisterToolEndpoint(endpoint); err != nil {
			log.Warn().Err(err).Msg("skipping tool")
			continue
		}
		log.Debug().Str("tool", desc.Identifier).Msg("auto-wrapped tool")
	}
	if dispatcher.Len() == 0 {
		return nil, ErrNoTools
	}
	log.Info().Int("tools", dispatcher.Len()).Msg("discovered tools")
	dispatcher.DebugTools()
	return dispatcher, nil
}

// NewOpenAIClient points an OpenAI client at the platform's
// OpenAI-compatible endpoint.
func NewOpenAIClient(cfg *config.Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.Platform.APIKey)
	clientCfg.BaseURL = cfg.OpenAIBaseURL()
	return openai.NewClientWithConfig(clientCfg)
}

// NewLocalWorkflow builds the local ReAct platform: it discovers the tools of
// source and binds them to an agent that talks to model.
func NewLocalWorkflow(ctx context.Context, cfg *config.Config, instructions string, model ChatModel, source service.ToolSource) (*LocalPlatform, error) {
	tools, err := DiscoverTools(ctx, source, cfg.Knowledge.VectorDBID)
	if err != nil {
		return nil, err
	}
	agent := NewBaseAgent(model, cfg.Agent.Model, instructions, tools, cfg.Agent.MaxInferIters)
	agent.SetTemperature(cfg.Agent.Temperature)
	log.Info().Str("model", cfg.Agent.Model).Str("base_url", cfg.OpenAIBaseURL()).Msg("local agent ready")
	return NewLocalPlatform(agent), nil
}
