package shared

import "fmt"

// EventType enumerates the events of a streamed agent turn.
type EventType string

const (
	EventTurnStart         EventType = "turn_start"
	EventStepStart         EventType = "step_start"
	EventStepProgress      EventType = "step_progress"
	EventStepComplete      EventType = "step_complete"
	EventTurnAwaitingInput EventType = "turn_awaiting_input"
	EventTurnComplete      EventType = "turn_complete"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTurnStart, EventStepStart, EventStepProgress, EventStepComplete,
		EventTurnAwaitingInput, EventTurnComplete:
		return true
	}
	return false
}

// StepType enumerates the kinds of steps inside a turn.
type StepType string

const (
	StepInference       StepType = "inference"
	StepToolExecution   StepType = "tool_execution"
	StepShieldCall      StepType = "shield_call"
	StepMemoryRetrieval StepType = "memory_retrieval"
)

func (t StepType) Valid() bool {
	switch t {
	case StepInference, StepToolExecution, StepShieldCall, StepMemoryRetrieval:
		return true
	}
	return false
}

type ToolCallRecord struct {
	CallID    string `json:"call_id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments"`
}

type ToolResponse struct {
	CallID   string        `json:"call_id"`
	ToolName string        `json:"tool_name"`
	Content  []ContentItem `json:"content"`
}

// TurnEvent is one event of a turn. Which fields are set depends on Type:
// Delta for step_progress, Text for turn_complete, ToolCalls and
// ToolResponses for step_complete of a tool_execution step.
type TurnEvent struct {
	Type          EventType
	StepType      StepType
	StepID        string
	Delta         string
	Text          string
	ToolCalls     []ToolCallRecord
	ToolResponses []ToolResponse
}

func (e TurnEvent) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.StepType != "" && !e.StepType.Valid() {
		return fmt.Errorf("unknown step type %q", e.StepType)
	}
	return nil
}
