package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"laptop-refresh/shared"
)

// ToolSources merges several sources. A tool listed by more than one source
// is served by the first.
type ToolSources struct {
	sources []ToolSource

	mu    sync.Mutex
	owner map[string]ToolSource
}

func NewToolSources(sources ...ToolSource) *ToolSources {
	return &ToolSources{sources: sources, owner: map[string]ToolSource{}}
}

func (s *ToolSources) ListTools(ctx context.Context) ([]shared.ToolDescriptor, error) {
	var descriptors []shared.ToolDescriptor
	owner := map[string]ToolSource{}
	for _, source := range s.sources {
		tools, err := source.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		for _, desc := range tools {
			if _, dup := owner[desc.Identifier]; dup {
				log.Debug().Str("tool", desc.Identifier).Msg("tool already served by an earlier source")
				continue
			}
			owner[desc.Identifier] = source
			descriptors = append(descriptors, desc)
		}
	}

	s.mu.Lock()
	s.owner = owner
	s.mu.Unlock()
	return descriptors, nil
}

func (s *ToolSources) InvokeTool(ctx context.Context, name string, kwargs map[string]any) (shared.ToolReply, error) {
	s.mu.Lock()
	source, ok := s.owner[name]
	s.mu.Unlock()
	if !ok {
		return shared.ToolReply{}, fmt.Errorf("no source serves tool %s", name)
	}
	return source.InvokeTool(ctx, name, kwargs)
}
