package llamastack

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"laptop-refresh/shared"
)

const maxFrameBytes = 8 * 1024 * 1024

// TurnStream reads the server-sent events of one agent turn.
type TurnStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newTurnStream(body io.ReadCloser) *TurnStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	return &TurnStream{body: body, scanner: scanner}
}

// Next returns the next event, or io.EOF once the stream is exhausted.
func (s *TurnStream) Next() (shared.TurnEvent, error) {
	if s == nil || s.done {
		return shared.TurnEvent{}, io.EOF
	}
	for {
		payload, err := s.nextFrame()
		if err != nil {
			if err == io.EOF {
				s.done = true
			}
			return shared.TurnEvent{}, err
		}
		if payload == "[DONE]" {
			s.done = true
			return shared.TurnEvent{}, io.EOF
		}
		event, ok, err := decodeChunk([]byte(payload))
		if err != nil {
			return shared.TurnEvent{}, err
		}
		if ok {
			return event, nil
		}
	}
}

func (s *TurnStream) Close() error {
	if s == nil || s.body == nil {
		return nil
	}
	s.done = true
	return s.body.Close()
}

// nextFrame collects the data lines of the next event frame.
func (s *TurnStream) nextFrame() (string, error) {
	var data []string
	for s.scanner.Scan() {
		line := strings.TrimRight(s.scanner.Text(), "\r")
		if line == "" {
			if len(data) != 0 {
				return strings.Join(data, "\n"), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// event:, id: and retry: fields carry nothing the harness uses.
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("read turn stream: %w", err)
	}
	if len(data) != 0 {
		return strings.Join(data, "\n"), nil
	}
	return "", io.EOF
}

type wireToolCall struct {
	CallID        string          `json:"call_id"`
	ToolName      string          `json:"tool_name"`
	Arguments     json.RawMessage `json:"arguments"`
	ArgumentsJSON string          `json:"arguments_json"`
}

func (c wireToolCall) record() shared.ToolCallRecord {
	args := c.ArgumentsJSON
	if args == "" {
		raw := bytes.TrimSpace(c.Arguments)
		var text string
		if len(raw) != 0 && raw[0] == '"' && json.Unmarshal(raw, &text) == nil {
			args = text
		} else {
			args = string(raw)
		}
	}
	return shared.ToolCallRecord{CallID: c.CallID, ToolName: c.ToolName, Arguments: args}
}

type wireToolResponse struct {
	CallID   string  `json:"call_id"`
	ToolName string  `json:"tool_name"`
	Content  Content `json:"content"`
}

type wirePayload struct {
	EventType shared.EventType `json:"event_type"`
	StepType  shared.StepType  `json:"step_type"`
	StepID    string           `json:"step_id"`
	Delta     *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	StepDetails *struct {
		ToolCalls     []wireToolCall     `json:"tool_calls"`
		ToolResponses []wireToolResponse `json:"tool_responses"`
	} `json:"step_details"`
	Turn *struct {
		OutputMessage struct {
			Content Content `json:"content"`
		} `json:"output_message"`
	} `json:"turn"`
}

type wireChunk struct {
	Event *struct {
		Payload *wirePayload `json:"payload"`
	} `json:"event"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// decodeChunk maps one stream chunk onto a TurnEvent. ok is false for chunks
// that carry no event payload.
func decodeChunk(data []byte) (shared.TurnEvent, bool, error) {
	var chunk wireChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return shared.TurnEvent{}, false, fmt.Errorf("%w: turn chunk: %v", ErrDecodeResponse, err)
	}
	if chunk.Error != nil {
		return shared.TurnEvent{}, false, fmt.Errorf("turn failed: %s", chunk.Error.Message)
	}
	if chunk.Event == nil || chunk.Event.Payload == nil {
		return shared.TurnEvent{}, false, nil
	}

	p := chunk.Event.Payload
	event := shared.TurnEvent{
		Type:     p.EventType,
		StepType: p.StepType,
		StepID:   p.StepID,
	}
	if err := event.Validate(); err != nil {
		return shared.TurnEvent{}, false, fmt.Errorf("%w: %v", ErrDecodeResponse, err)
	}
	if p.Delta != nil && p.Delta.Type == "text" {
		event.Delta = p.Delta.Text
	}
	if p.StepDetails != nil {
		for _, call := range p.StepDetails.ToolCalls {
			event.ToolCalls = append(event.ToolCalls, call.record())
		}
		for _, response := range p.StepDetails.ToolResponses {
			event.ToolResponses = append(event.ToolResponses, shared.ToolResponse{
				CallID:   response.CallID,
				ToolName: response.ToolName,
				Content:  response.Content,
			})
		}
	}
	if p.Turn != nil {
		event.Text = p.Turn.OutputMessage.Content.Text()
	}
	return event, true, nil
}
