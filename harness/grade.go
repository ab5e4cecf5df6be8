package harness

import "strings"

type Status string

const (
	StatusMatch        Status = "✓ MATCH"
	StatusPartialMatch Status = "~ PARTIAL MATCH"
	StatusNoMatch      Status = "✗ NO MATCH"
)

// Grade compares a response with the expected text after trimming both:
// equal is a match, containing the expected text is a partial match,
// anything else (including an empty response) is no match. It is an
// eyeballing aid, not an acceptance test.
func Grade(expected, response string) Status {
	expected = strings.TrimSpace(expected)
	response = strings.TrimSpace(response)
	switch {
	case response == expected:
		return StatusMatch
	case strings.Contains(response, expected):
		return StatusPartialMatch
	default:
		return StatusNoMatch
	}
}
