// Package prompts holds the chat prompt templates used by the
// orchestrator. Built-in defaults can be overridden per-template with a
// templates.json file.
package prompts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Template is one named prompt: a system role plus an instruction body
// with {{NAME}} placeholders.
type Template struct {
	Role   string `json:"role"`
	Prompt string `json:"prompt"`
}

// Render substitutes vars into the prompt body. Unknown placeholders are
// left in place so a missing variable is visible in the output.
func (t Template) Render(vars map[string]string) string {
	out := t.Prompt
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}

var defaults = map[string]Template{
	"extract_toulmin": {
		Role: "You are an expert in argumentation theory and the Toulmin model.",
		Prompt: `Analyze the following argument and decompose it into Toulmin model elements.

Argument: {{ARGUMENT}}

Known fallacies detected in this argument: {{FALLACIES}}

Return a JSON object with exactly these fields:
{
  "claim": {"text": "...", "strength": 0-10},
  "data": {"text": "...", "strength": 0-10},
  "warrant": {"text": "...", "strength": 0-10},
  "backing": {"text": "...", "strength": 0-10},
  "qualifier": {"text": "...", "strength": 0-10},
  "rebuttal": {"text": "...", "strength": 0-10},
  "fallacy_resistance_score": 0-100,
  "logical_consistency_score": 0-100,
  "clarity_score": 0-100,
  "improved_statement": "...",
  "feedback": "..."
}

Use an empty text and strength 0 for elements the argument does not contain.`,
	},
	"support_mode": {
		Role: "You are a reasoning coach who strengthens arguments.",
		Prompt: `Improve the following argument so it no longer commits the {{FALLACY_TYPE}} fallacy
while preserving the author's position.

Argument: {{ARGUMENT}}

Return a JSON object with exactly these fields:
{
  "improved_argument": "...",
  "explanation": "..."
}`,
	},
	"oppose_mode": {
		Role: "You are a skilled debater arguing the opposing side.",
		Prompt: `Produce a concise, well-reasoned counter-argument to the following statement.
Attack the reasoning, not the person. Avoid committing logical fallacies yourself.

Statement: {{ARGUMENT}}

Additional context: {{CONTEXT}}`,
	},
	"evaluate_user_response": {
		Role: "You are an impartial judge of argumentation quality.",
		Prompt: `An opponent made this argument: {{OPPONENT_ARGUMENT}}

The user responded with: {{USER_RESPONSE}}

When naming a fallacy, use only these categories:
{{VALID_FALLACIES}}

Evaluate the user's response. Return a JSON object with exactly these fields:
{
  "detected_fallacy": "...",
  "user_countered_correctly": true,
  "toulmin_scores": {"claim": 0-10, "data": 0-10, "warrant": 0-10},
  "overall_reasoning_score": 0-100,
  "analysis_notes": "..."
}

Use an empty detected_fallacy when the opponent's argument is sound.`,
	},
	"generate_title": {
		Role:   "You summarize debates.",
		Prompt: `Generate a short title, at most six words, for a debate about: {{ARGUMENT}}`,
	},
}

// Store resolves template names to templates.
type Store struct {
	templates map[string]Template
}

// NewStore returns a store holding the built-in templates.
func NewStore() *Store {
	s := &Store{templates: make(map[string]Template, len(defaults))}
	for name, t := range defaults {
		s.templates[name] = t
	}
	return s
}

// Load returns a store with the built-in templates, overridden by any
// present in the JSON file at path. Empty path means defaults only.
func Load(path string) (*Store, error) {
	s := NewStore()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	var overrides map[string]Template
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for name, t := range overrides {
		if t.Prompt == "" {
			continue
		}
		if t.Role == "" {
			t.Role = s.templates[name].Role
		}
		s.templates[name] = t
	}
	return s, nil
}

// Get returns the named template.
func (s *Store) Get(name string) (Template, error) {
	t, ok := s.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown prompt template: %s", name)
	}
	return t, nil
}
