package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"laptop-refresh/shared"
)

const KnowledgeSearchTool = "knowledge_search"

// ToolInvoker executes a tool on whatever runtime hosts it: the platform's
// tool runtime or an MCP server.
type ToolInvoker interface {
	InvokeTool(ctx context.Context, name string, kwargs map[string]any) (shared.ToolReply, error)
}

// ToolSource is a ToolInvoker that can also list the tools it serves.
type ToolSource interface {
	ToolInvoker
	ListTools(ctx context.Context) ([]shared.ToolDescriptor, error)
}

type ToolInvocationResult struct {
	Raw            any
	NormalizedText string
}

type AdapterOption func(*ToolAdapter)

// WithVectorDBID pins knowledge_search calls to one corpus.
func WithVectorDBID(id string) AdapterOption {
	return func(a *ToolAdapter) {
		a.vectorDBID = id
	}
}

// ToolAdapter exposes one described tool to the local agent. The descriptor
// drives argument coercion; calls go through the invoker.
type ToolAdapter struct {
	desc       shared.ToolDescriptor
	invoker    ToolInvoker
	vectorDBID string
}

func NewToolAdapter(desc shared.ToolDescriptor, invoker ToolInvoker, opts ...AdapterOption) *ToolAdapter {
	a := &ToolAdapter{
		desc:       desc,
		invoker:    invoker,
		vectorDBID: "laptop-refresh-knowledge-base",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ToolAdapter) Name() string {
	return a.desc.Identifier
}

func (a *ToolAdapter) EndPoint() ToolEndPoint {
	return ToolEndPoint{
		Name: a.desc.Identifier,
		Def:  shared.ConvertToFunctionDefinition(a.desc),
		Handler: func(ctx context.Context, args string) (string, error) {
			kwargs, err := DecodeArguments(args)
			if err != nil {
				return "", fmt.Errorf("tool %s: %w", a.desc.Identifier, err)
			}
			res, err := a.Invoke(ctx, kwargs)
			if err != nil {
				return "", err
			}
			return res.NormalizedText, nil
		},
	}
}

// Invoke coerces the arguments, calls the tool and normalizes its reply.
func (a *ToolAdapter) Invoke(ctx context.Context, kwargs map[string]any) (ToolInvocationResult, error) {
	name := a.desc.Identifier
	log.Debug().Str("tool", name).Any("args", kwargs).Msg("calling tool")

	processed := CoerceArguments(a.desc, unwrapKwargs(kwargs))
	if name == KnowledgeSearchTool {
		processed["vector_db_ids"] = []string{a.vectorDBID}
	}

	reply, err := a.invoker.InvokeTool(ctx, name, processed)
	if err != nil {
		log.Error().Err(err).Str("tool", name).Msg("tool invocation failed")
		return ToolInvocationResult{}, fmt.Errorf("call tool %s: %w", name, err)
	}
	if reply.Error != "" {
		log.Warn().Str("tool", name).Str("error", reply.Error).Msg("tool reported an error")
	}

	text := NormalizeReply(reply)
	log.Debug().Str("tool", name).Str("result", text).Msg("tool returned")
	return ToolInvocationResult{Raw: reply.Raw, NormalizedText: text}, nil
}

// DecodeArguments parses the model's argument string. An empty string is an
// empty argument set.
func DecodeArguments(args string) (map[string]any, error) {
	kwargs := map[string]any{}
	if strings.TrimSpace(args) == "" {
		return kwargs, nil
	}
	if err := json.Unmarshal([]byte(args), &kwargs); err != nil {
		return nil, fmt.Errorf("decode arguments %q: %w", args, err)
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return kwargs, nil
}

// unwrapKwargs strips the {"kwargs": {...}} wrapper some agent frameworks put
// around the real arguments.
func unwrapKwargs(kwargs map[string]any) map[string]any {
	if len(kwargs) != 1 {
		return kwargs
	}
	if inner, ok := kwargs["kwargs"].(map[string]any); ok {
		return inner
	}
	return kwargs
}

// CoerceArguments casts every declared parameter present in kwargs to its
// declared type. Values that cannot be cast, undeclared arguments and
// parameters of unknown type pass through unchanged.
func CoerceArguments(desc shared.ToolDescriptor, kwargs map[string]any) map[string]any {
	processed := make(map[string]any, len(kwargs)+1)
	declared := make(map[string]bool, len(desc.Parameters))

	for _, param := range desc.Parameters {
		declared[param.Name] = true
		value, present := kwargs[param.Name]
		if !present {
			if param.Required {
				log.Warn().Str("tool", desc.Identifier).Str("param", param.Name).Msg("required parameter missing")
			}
			continue
		}
		coerced, err := coerce(param.Type, value)
		if err != nil {
			log.Warn().Err(err).Str("tool", desc.Identifier).Str("param", param.Name).
				Str("type", string(param.Type)).Msg("cannot cast argument, passing it through")
			coerced = value
		}
		processed[param.Name] = coerced
	}

	for key, value := range kwargs {
		if !declared[key] {
			processed[key] = value
		}
	}
	return processed
}

func coerce(t shared.ParameterType, value any) (any, error) {
	switch t {
	case shared.ParamString:
		if s, ok := value.(string); ok {
			return s, nil
		}
		if s, err := cast.ToStringE(value); err == nil {
			return s, nil
		}
		if data, err := json.Marshal(value); err == nil {
			return string(data), nil
		}
		return fmt.Sprint(value), nil
	case shared.ParamInteger:
		if isInteger(value) {
			return value, nil
		}
		if s, ok := value.(string); ok {
			// decimal only: cast reads "010" as octal and "0x1F" as hex
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 0)
			if err != nil {
				return nil, err
			}
			return int(n), nil
		}
		return cast.ToIntE(value)
	case shared.ParamNumber:
		if isInteger(value) || isFloat(value) {
			return value, nil
		}
		return cast.ToFloat64E(value)
	case shared.ParamBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return cast.ToBoolE(value)
	default:
		return value, nil
	}
}

func isInteger(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func isFloat(value any) bool {
	switch value.(type) {
	case float32, float64:
		return true
	}
	return false
}

// NormalizeReply renders a tool reply as the single string the model sees.
// Several content items are joined by newlines, one item is returned as is,
// and a reply without items falls back to its JSON form.
func NormalizeReply(reply shared.ToolReply) string {
	switch len(reply.Content) {
	case 0:
	case 1:
		return reply.Content[0].Text
	default:
		texts := make([]string, 0, len(reply.Content))
		for _, item := range reply.Content {
			if item.Text != "" {
				texts = append(texts, item.Text)
			}
		}
		return strings.Join(texts, "\n")
	}

	if reply.Raw == nil {
		if reply.Error != "" {
			return reply.Error
		}
		return ""
	}
	if s, ok := reply.Raw.(string); ok {
		return s
	}
	data, err := json.Marshal(reply.Raw)
	if err != nil {
		return fmt.Sprint(reply.Raw)
	}
	return string(data)
}
