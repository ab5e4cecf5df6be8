package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"laptop-refresh/service"
	"laptop-refresh/shared"
)

var ErrMaxIterations = errors.New("agent reached the maximum number of model calls")

// ChatModel is the part of the OpenAI client the agent needs.
type ChatModel interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// EmitFunc receives the events of a running turn.
type EmitFunc func(event shared.TurnEvent)

// BaseAgent is a ReAct loop: call the model, run the tools it asks for, feed
// the results back, until it answers without tool calls.
type BaseAgent struct {
	model        ChatModel
	modelName    string
	instruct     string
	temperature  float32
	maxIters     int
	toolDispatch *service.ToolDispatcher
}

func NewBaseAgent(model ChatModel, modelName, instruct string, tools *service.ToolDispatcher, maxIters int) *BaseAgent {
	if tools == nil {
		tools = service.NewToolDispatcher()
	}
	if maxIters <= 0 {
		maxIters = 10
	}
	return &BaseAgent{
		model:        model,
		modelName:    modelName,
		instruct:     instruct,
		maxIters:     maxIters,
		toolDispatch: tools,
	}
}

func (a *BaseAgent) SetTemperature(t float32) {
	a.temperature = t
}

func (a *BaseAgent) chat(ctx context.Context, msgs []openai.ChatCompletionMessage) (*openai.ChatCompletionChoice, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.modelName,
		Messages:    msgs,
		Temperature: a.temperature,
	}
	if tools := a.toolDispatch.GetTools(); len(tools) != 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
	}
	response, err := a.model.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	return &response.Choices[0], nil
}

func (a *BaseAgent) handleToolCall(ctx context.Context, toolCalls []openai.ToolCall) ([]openai.ChatCompletionMessage, shared.TurnEvent) {
	event := shared.TurnEvent{
		Type:     shared.EventStepComplete,
		StepType: shared.StepToolExecution,
		StepID:   uuid.NewString(),
	}
	msgs := make([]openai.ChatCompletionMessage, 0, len(toolCalls))
	for _, call := range toolCalls {
		res, execLog := a.toolDispatch.Run(ctx, call)
		msgs = append(msgs, res)
		log.Debug().Str("tool", call.Function.Name).Str("args", call.Function.Arguments).
			Err(execLog.ToolCallErr).Msg("tool call")

		event.ToolCalls = append(event.ToolCalls, shared.ToolCallRecord{
			CallID:    call.ID,
			ToolName:  call.Function.Name,
			Arguments: call.Function.Arguments,
		})
		event.ToolResponses = append(event.ToolResponses, shared.ToolResponse{
			CallID:   call.ID,
			ToolName: call.Function.Name,
			Content:  []shared.ContentItem{{Type: "text", Text: res.Content}},
		})
	}
	return msgs, event
}

// Run answers userInput given the earlier messages of the conversation and
// returns the final assistant text. Events are reported through emit as the
// turn progresses.
func (a *BaseAgent) Run(ctx context.Context, history []openai.ChatCompletionMessage, userInput string, emit EmitFunc) (string, error) {
	if emit == nil {
		emit = func(shared.TurnEvent) {}
	}
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: a.instruct})
	msgs = append(msgs, history...)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userInput})

	// the execution log covers the current turn only
	a.toolDispatch.ResetLog()
	emit(shared.TurnEvent{Type: shared.EventTurnStart})
	for i := 0; i < a.maxIters; i++ {
		stepID := uuid.NewString()
		emit(shared.TurnEvent{Type: shared.EventStepStart, StepType: shared.StepInference, StepID: stepID})
		resp, err := a.chat(ctx, msgs)
		if err != nil {
			log.Error().Err(err).Msg("chat failed")
			return "", err
		}
		msgs = append(msgs, resp.Message)
		emit(shared.TurnEvent{Type: shared.EventStepComplete, StepType: shared.StepInference, StepID: stepID})

		if len(resp.Message.ToolCalls) == 0 {
			a.logToolCalls()
			emit(shared.TurnEvent{Type: shared.EventTurnComplete, Text: resp.Message.Content})
			return resp.Message.Content, nil
		}
		toolMsgs, event := a.handleToolCall(ctx, resp.Message.ToolCalls)
		msgs = append(msgs, toolMsgs...)
		emit(event)
	}
	a.logToolCalls()
	return "", fmt.Errorf("%w (%d)", ErrMaxIterations, a.maxIters)
}

func (a *BaseAgent) logToolCalls() {
	logs := a.toolDispatch.Logs()
	if len(logs) == 0 {
		return
	}
	failed := 0
	for _, l := range logs {
		if l.ToolCallErr != nil {
			failed++
		}
	}
	log.Info().Int("tool_calls", len(logs)).Int("failed", failed).Msg("turn tool calls")
}
