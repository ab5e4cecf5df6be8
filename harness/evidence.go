package harness

import (
	"fmt"
	"io"
	"strings"

	"laptop-refresh/shared"
)

// Evidence is one retrieved document chunk shown for a tool execution step.
type Evidence struct {
	Header  string
	Content string
}

// ExtractEvidence pulls the retrieved chunks out of knowledge search results:
// items that mention "Result" and carry a "Content:" section, cut at the
// following "\nMetadata:" line.
func ExtractEvidence(responses []shared.ToolResponse) []Evidence {
	var evidence []Evidence
	for _, response := range responses {
		for _, item := range response.Content {
			text := item.Text
			if !strings.Contains(text, "Result") {
				continue
			}
			start := strings.Index(text, "Content:")
			if start < 0 {
				continue
			}
			start += len("Content:")
			end := strings.Index(text, "\nMetadata:")
			if end < start {
				end = len(text)
			}
			header := "Result"
			if i := strings.IndexByte(text, '\n'); i >= 0 {
				header = text[:i]
			}
			evidence = append(evidence, Evidence{
				Header:  header,
				Content: strings.TrimSpace(text[start:end]),
			})
		}
	}
	return evidence
}

func printEvidence(w io.Writer, responses []shared.ToolResponse) {
	if len(responses) == 0 {
		return
	}
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\nRAG DOCUMENTS RETRIEVED\n%s\n", rule, rule)
	for _, e := range ExtractEvidence(responses) {
		fmt.Fprintf(w, "\n--- %s ---\n%s\n%s\n", e.Header, e.Content, strings.Repeat("-", 40))
	}
	fmt.Fprintln(w, rule)
}
