package agent

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"laptop-refresh/shared"
)

// LocalPlatform runs the ReAct agent in process. The platform keeps no
// conversation state for it, so each session threads its own history.
type LocalPlatform struct {
	agent   *BaseAgent
	agentID string
}

func NewLocalPlatform(agent *BaseAgent) *LocalPlatform {
	return &LocalPlatform{agent: agent, agentID: uuid.NewString()}
}

func (p *LocalPlatform) AgentID() string {
	return p.agentID
}

func (p *LocalPlatform) NewSession(ctx context.Context, name string) (Session, error) {
	s := &localSession{agent: p.agent, id: uuid.NewString(), name: name}
	log.Debug().Str("agent_id", p.agentID).Str("session_id", s.id).Msg("created local session")
	return s, nil
}

type localSession struct {
	agent   *BaseAgent
	id      string
	name    string
	history []openai.ChatCompletionMessage
}

func (s *localSession) ID() string {
	return s.id
}

// Turn runs the agent to completion. Only the user message and the final
// answer are kept in the history, not the intermediate tool traffic.
func (s *localSession) Turn(ctx context.Context, text string) (EventStream, error) {
	stream := &sliceStream{}
	emit := func(event shared.TurnEvent) {
		stream.events = append(stream.events, event)
	}
	response, err := s.agent.Run(ctx, s.history, text, emit)
	if err != nil {
		stream.err = err
		return stream, nil
	}
	s.history = append(s.history,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: response},
	)
	log.Debug().Str("session_id", s.id).Int("history", len(s.history)).Msg("conversation history updated")
	return stream, nil
}
