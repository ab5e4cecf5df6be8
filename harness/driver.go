// Package harness drives an agent through scripted conversations and grades
// its replies.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"laptop-refresh/agent"
	"laptop-refresh/shared"
)

type Options struct {
	ShowRAGDocuments bool
	QuestionPause    time.Duration
	IterationPause   time.Duration
	SessionName      string
	// Rand picks script variables; nil seeds one from the clock.
	Rand *rand.Rand
}

// Driver runs scripts against one agent, sequentially: a question is fully
// answered before the next one is sent.
type Driver struct {
	platform agent.Platform
	out      io.Writer
	opts     Options
}

func NewDriver(platform agent.Platform, out io.Writer, opts Options) *Driver {
	if opts.SessionName == "" {
		opts.SessionName = "agent1"
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Driver{platform: platform, out: out, opts: opts}
}

// Run replays script. Failures inside an iteration are reported in the
// iteration's result and the run moves on; only an invalid script or a
// cancelled ctx stop it early.
func (d *Driver) Run(ctx context.Context, script *Script) (*Report, error) {
	if err := script.Validate(); err != nil {
		return nil, err
	}
	report := &Report{Script: script.Name}
	var reused agent.Session
	for j := 0; j < script.Iterations; j++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		fmt.Fprintf(d.out, "\nIteration %d %s\n", j, strings.Repeat("-", 60))

		result := IterationResult{Index: j, Vars: d.pickVars(script)}
		session := reused
		if session == nil {
			var err error
			session, err = d.platform.NewSession(ctx, d.opts.SessionName)
			if err != nil {
				d.fail(&result, fmt.Errorf("create session: %w", err))
				report.Iterations = append(report.Iterations, result)
				continue
			}
			if script.ReuseSession {
				reused = session
			}
		}
		result.State = SessionState{SessionID: session.ID(), AgentID: d.platform.AgentID()}

		for i, q := range script.Questions {
			if err := d.askQuestion(ctx, session, q, result.Vars, &result.State); err != nil {
				d.fail(&result, err)
				break
			}
			if i < len(script.Questions)-1 {
				d.pause(ctx, d.opts.QuestionPause)
			}
		}
		report.Iterations = append(report.Iterations, result)
		if j < script.Iterations-1 {
			d.pause(ctx, d.opts.IterationPause)
		}
	}

	summary := report.Summary()
	fmt.Fprintf(d.out, "\nSummary: %s\n", summary)
	log.Info().Str("script", script.Name).Str("summary", summary.String()).Msg("run finished")
	return report, nil
}

func (d *Driver) fail(result *IterationResult, err error) {
	result.Err = err
	fmt.Fprintf(d.out, "Error in iteration %d: %v\n", result.Index, err)
	log.Error().Err(err).Int("iteration", result.Index).Msg("iteration failed")
}

func (d *Driver) askQuestion(ctx context.Context, session agent.Session, q Question, vars map[string]string, state *SessionState) error {
	text, err := ExpandQuestion(q.Text, vars)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "QUESTION: %s\n", text)

	response, err := d.ask(ctx, session, text)
	if err != nil {
		return err
	}
	record := TurnRecord{Question: text, Expected: q.Expected, Response: response}
	if q.Expected != "" {
		record.Graded = true
		record.Status = Grade(q.Expected, response)
		fmt.Fprintf(d.out, "  STATUS: %s - EXPECTED: %s - RESPONSE:%s\n", record.Status, q.Expected, response)
	} else {
		fmt.Fprintf(d.out, "  RESPONSE:%s\n", response)
	}
	state.Turns = append(state.Turns, record)
	return nil
}

// ask submits one question and assembles the final text of the turn.
func (d *Driver) ask(ctx context.Context, session agent.Session, text string) (string, error) {
	stream, err := session.Turn(ctx, text)
	if err != nil {
		return "", fmt.Errorf("submit turn: %w", err)
	}
	defer stream.Close()

	var response strings.Builder
	for {
		event, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return response.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("read turn: %w", err)
		}
		switch event.Type {
		case shared.EventTurnComplete:
			response.WriteString(event.Text)
		case shared.EventStepComplete:
			if event.StepType == shared.StepToolExecution && d.opts.ShowRAGDocuments {
				printEvidence(d.out, event.ToolResponses)
			}
		case shared.EventTurnStart, shared.EventStepStart, shared.EventStepProgress, shared.EventTurnAwaitingInput:
			// ignored
		default:
			return "", fmt.Errorf("unexpected event type %q", event.Type)
		}
	}
}

// pickVars draws one value per script variable.
func (d *Driver) pickVars(script *Script) map[string]string {
	names := make([]string, 0, len(script.Vars))
	for name := range script.Vars {
		names = append(names, name)
	}
	sort.Strings(names)

	vars := make(map[string]string, len(names))
	for _, name := range names {
		values := script.Vars[name]
		vars[name] = values[d.opts.Rand.Intn(len(values))]
	}
	return vars
}

func (d *Driver) pause(ctx context.Context, wait time.Duration) {
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
