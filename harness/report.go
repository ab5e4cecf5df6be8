package harness

import "fmt"

type TurnRecord struct {
	Question string
	Expected string
	Response string
	Status   Status
	Graded   bool
}

// SessionState is what one iteration saw of its session.
type SessionState struct {
	SessionID string
	AgentID   string
	Turns     []TurnRecord
}

type IterationResult struct {
	Index int
	Vars  map[string]string
	State SessionState
	// Err abandoned the rest of the iteration.
	Err error
}

type Report struct {
	Script     string
	Iterations []IterationResult
}

type Summary struct {
	Match      int
	Partial    int
	NoMatch    int
	Ungraded   int
	Turns      int
	Iterations int
	Failed     int
}

func (r *Report) Summary() Summary {
	var s Summary
	for _, it := range r.Iterations {
		s.Iterations++
		if it.Err != nil {
			s.Failed++
		}
		for _, turn := range it.State.Turns {
			s.Turns++
			if !turn.Graded {
				s.Ungraded++
				continue
			}
			switch turn.Status {
			case StatusMatch:
				s.Match++
			case StatusPartialMatch:
				s.Partial++
			case StatusNoMatch:
				s.NoMatch++
			}
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d iterations (%d failed), %d turns: %d match, %d partial match, %d no match, %d ungraded",
		s.Iterations, s.Failed, s.Turns, s.Match, s.Partial, s.NoMatch, s.Ungraded)
}
