package harness

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/shell"
)

const (
	RefreshAgent     = "REFRESH_AGENT"
	EmailChangeAgent = "EMAIL_CHANGE_AGENT"
	FallbackResponse = "I cannot help you with your request"
)

// Question is one scripted user turn. An empty Expected leaves the turn
// ungraded.
type Question struct {
	Text     string `yaml:"question"`
	Expected string `yaml:"expected_response"`
}

// Script is a conversation replayed for a number of iterations.
type Script struct {
	Name       string `yaml:"name"`
	Iterations int    `yaml:"iterations"`
	// ReuseSession keeps one session for every iteration of the run.
	ReuseSession bool `yaml:"reuse_session"`
	// Vars are drawn per iteration and expanded into question texts.
	Vars      map[string][]string `yaml:"vars"`
	Questions []Question          `yaml:"questions"`
}

func (s *Script) Validate() error {
	if len(s.Questions) == 0 {
		return fmt.Errorf("script %q has no questions", s.Name)
	}
	if s.Iterations <= 0 {
		return fmt.Errorf("script %q: iterations must be > 0", s.Name)
	}
	for name, values := range s.Vars {
		if len(values) == 0 {
			return fmt.Errorf("script %q: variable %s has no values", s.Name, name)
		}
	}
	return nil
}

// LoadScript reads a YAML script file. A missing iteration count means one.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	if script.Iterations == 0 {
		script.Iterations = 1
	}
	if script.Name == "" {
		script.Name = path
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	return &script, nil
}

// ExpandQuestion substitutes ${NAME} references with vars. Texts without a
// '$' are returned verbatim.
func ExpandQuestion(text string, vars map[string]string) (string, error) {
	if !strings.Contains(text, "$") {
		return text, nil
	}
	expanded, err := shell.Expand(text, func(name string) string {
		return vars[name]
	})
	if err != nil {
		return "", fmt.Errorf("expand question %q: %w", text, err)
	}
	return expanded, nil
}

var refreshQuestions = []Question{
	{Text: "Can I replace my laptop, my employee id is 1234"},
	{Text: "Yes"},
	{Text: "${LAPTOP_CHOICE}"},
	{Text: "proceed"},
}

var laptopChoices = []string{"1", "2", "3", "4", "5"}

// RefreshScript walks one laptop refresh conversation on a single session.
func RefreshScript() *Script {
	return &Script{
		Name:         "refresh",
		Iterations:   1,
		ReuseSession: true,
		Vars:         map[string][]string{"LAPTOP_CHOICE": {"3"}},
		Questions:    append([]Question(nil), refreshQuestions...),
	}
}

// LocalScript is the refresh conversation with a random laptop choice, three
// times over, each on a fresh conversation.
func LocalScript() *Script {
	return &Script{
		Name:       "local",
		Iterations: 3,
		Vars:       map[string][]string{"LAPTOP_CHOICE": append([]string(nil), laptopChoices...)},
		Questions:  append([]Question(nil), refreshQuestions...),
	}
}

// RoutingScript checks that the routing agent answers with the right label.
func RoutingScript() *Script {
	questions := []Question{}
	add := func(expected string, texts ...string) {
		for _, text := range texts {
			questions = append(questions, Question{Text: text, Expected: expected})
		}
	}
	add(RefreshAgent,
		"Can I replace my laptop, my employee id is 1234",
		"What is the laptop refresh processs?",
		"How do I get a new laptop?",
		"Laptop refresh",
		"My laptop is broken and I need a replacement",
		"I need to upgrade my work laptop",
		"How can I refresh my company laptop?",
		"I want a new laptop for work",
		"My laptop needs to be replaced due to hardware issues",
		"Can I get a laptop upgrade?",
		"Laptop replacement request",
	)
	add(EmailChangeAgent,
		"Can I change my email address",
		"I would like to update my email address",
		"How do I modify my email in the system?",
		"I need to change my work email",
		"Can you help me update my email address?",
		"Email change request",
		"I want to submit an email change",
		"My email address needs to be updated",
		"How can I change my contact email?",
		"I need to modify my email address in my profile",
	)
	add(FallbackResponse,
		"Can you help me update ticket 12312",
		"I need help with password reset",
		"How do I submit a vacation request?",
		"Can I get access to the shared drive?",
		"I need help with my phone setup",
	)
	return &Script{
		Name:       "routing",
		Iterations: 10,
		Questions:  questions,
	}
}

// BuiltinScript returns the named built-in script.
func BuiltinScript(name string) (*Script, error) {
	switch name {
	case "refresh":
		return RefreshScript(), nil
	case "local":
		return LocalScript(), nil
	case "routing":
		return RoutingScript(), nil
	}
	return nil, fmt.Errorf("unknown script %q", name)
}
