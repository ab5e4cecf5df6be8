// Package agent provides the conversational agents the harness drives: agents
// hosted on the orchestration platform and a local ReAct agent that calls the
// platform's tools itself.
package agent

import (
	"context"
	"io"

	"laptop-refresh/shared"
)

// EventStream yields the events of one turn. Next returns io.EOF once the
// turn is over.
type EventStream interface {
	Next() (shared.TurnEvent, error)
	Close() error
}

// Session is a conversation whose turns share memory.
type Session interface {
	ID() string
	Turn(ctx context.Context, text string) (EventStream, error)
}

// Platform creates sessions of one configured agent.
type Platform interface {
	AgentID() string
	NewSession(ctx context.Context, name string) (Session, error)
}

// sliceStream replays events recorded while a turn ran, then reports err (or
// io.EOF).
type sliceStream struct {
	events []shared.TurnEvent
	err    error
}

func (s *sliceStream) Next() (shared.TurnEvent, error) {
	if len(s.events) == 0 {
		if s.err != nil {
			err := s.err
			s.err = nil
			return shared.TurnEvent{}, err
		}
		return shared.TurnEvent{}, io.EOF
	}
	event := s.events[0]
	s.events = s.events[1:]
	return event, nil
}

func (s *sliceStream) Close() error {
	s.events = nil
	return nil
}
