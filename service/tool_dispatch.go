package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

type ToolEndPoint struct {
	Name    string
	Def     openai.FunctionDefinition
	Handler func(ctx context.Context, args string) (string, error)
}

type ToolExecLog struct {
	ID           int
	ToolCallID   string
	ToolCallName string
	ToolCallArgs string
	ToolCallRes  string
	ToolCallErr  error
}

// Content is what the model sees for this call.
func (toolLog *ToolExecLog) Content() string {
	if toolLog.ToolCallErr != nil {
		return fmt.Sprintf("Execute tool call failed, error: %s", toolLog.ToolCallErr)
	}
	return toolLog.ToolCallRes
}

type ToolDispatcher struct {
	toolMap map[string]ToolEndPoint
	toolLog []*ToolExecLog
}

func NewToolDispatcher() *ToolDispatcher {
	return &ToolDispatcher{
		toolMap: map[string]ToolEndPoint{},
	}
}

func (td *ToolDispatcher) ResetLog() {
	td.toolLog = nil
}

func (td *ToolDispatcher) Logs() []*ToolExecLog {
	return td.toolLog
}

func (td *ToolDispatcher) Len() int {
	return len(td.toolMap)
}

func (td *ToolDispatcher) RegisterToolEndpoint(endpoints ...ToolEndPoint) error {
	err := []error{}
	for _, endpoint := range endpoints {
		_, exist := td.toolMap[endpoint.Name]
		if exist {
			err = append(err, fmt.Errorf("tool with name %s already exist", endpoint.Name))
		} else {
			td.toolMap[endpoint.Name] = endpoint
		}
	}
	return errors.Join(err...)
}

// Run executes one tool call. Failures do not abort the reasoning loop: they
// become the content of the tool message and are kept in the log.
func (td *ToolDispatcher) Run(ctx context.Context, toolCall openai.ToolCall) (openai.ChatCompletionMessage, *ToolExecLog) {
	endpoint, exist := td.toolMap[toolCall.Function.Name]
	content := ""
	var err error
	if exist {
		content, err = endpoint.Handler(ctx, toolCall.Function.Arguments)
	} else {
		err = fmt.Errorf("Run tool call failed, Can not find tool with name %s", toolCall.Function.Name)
	}
	if err != nil {
		log.Error().Err(err).Str("tool", toolCall.Function.Name).Msg("tool call failed")
	}
	execLog := &ToolExecLog{
		ID:           len(td.toolLog),
		ToolCallID:   toolCall.ID,
		ToolCallName: toolCall.Function.Name,
		ToolCallArgs: toolCall.Function.Arguments,
		ToolCallRes:  content,
		ToolCallErr:  err,
	}
	td.toolLog = append(td.toolLog, execLog)
	return openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		ToolCallID: toolCall.ID,
		Content:    execLog.Content(),
	}, execLog
}

// GetTools lists the registered tools ordered by name.
func (td *ToolDispatcher) GetTools() []openai.Tool {
	names := make([]string, 0, len(td.toolMap))
	for name := range td.toolMap {
		names = append(names, name)
	}
	sort.Strings(names)

	res := make([]openai.Tool, 0, len(td.toolMap))
	for _, name := range names {
		def := td.toolMap[name].Def
		res = append(res, openai.Tool{
			Type:     openai.ToolTypeFunction,
			Function: &def,
		})
	}
	return res
}

func (td *ToolDispatcher) DebugTools() {
	for _, tool := range td.GetTools() {
		log.Debug().Str("tool", tool.Function.Name).Any("def", tool.Function).Msg("registered tool")
	}
}
