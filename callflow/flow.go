package callflow

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Step is one state of a flow. Steps without Validate advance on any input.
type Step struct {
	State State
	// Prompt is spoken while the call sits in this state.
	Prompt string
	// Reprompt is spoken when an answer fails Validate.
	Reprompt string
	Field    Field
	// RawField, when set, also stores the caller's own wording.
	RawField  Field
	Validate  Validator
	Normalize Normalizer
}

// Flow is an ordered pipeline of required-field collection steps for one
// business vertical, ending in END_CALL. Validate must succeed before Advance is used.
type Flow struct {
	Name     string
	Business string
	Steps    []Step
	// Ended is returned for any input once the call reached END_CALL.
	Ended string
	// Handoff is spoken when a caller exhausts MaxAttempts on one step.
	Handoff string
	// HandoffHold answers any input after escalation.
	HandoffHold string
	// MaxAttempts bounds consecutive invalid answers per step; 0 disables escalation.
	MaxAttempts int

	index     map[State]int
	templates map[string]*template.Template
}

// DefaultMaxAttempts is the escalation threshold used by the built-in flows.
const DefaultMaxAttempts = 3

// Validate checks the flow definition and compiles its prompt templates.
func (f *Flow) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("flow name is required")
	}
	if len(f.Steps) < 2 {
		return fmt.Errorf("flow %q: at least a greeting and END_CALL are required", f.Name)
	}
	if f.Steps[0].State != StateGreeting {
		return fmt.Errorf("flow %q: first step must be %s", f.Name, StateGreeting)
	}
	if last := f.Steps[len(f.Steps)-1].State; last != StateEndCall {
		return fmt.Errorf("flow %q: last step must be %s, got %s", f.Name, StateEndCall, last)
	}
	if f.MaxAttempts < 0 {
		return fmt.Errorf("flow %q: max attempts must not be negative", f.Name)
	}

	f.index = make(map[State]int, len(f.Steps))
	f.templates = make(map[string]*template.Template)
	for i, step := range f.Steps {
		if _, dup := f.index[step.State]; dup {
			return fmt.Errorf("flow %q: state %s appears twice", f.Name, step.State)
		}
		if step.State == StateHumanHandoff {
			return fmt.Errorf("flow %q: %s is reserved for escalation", f.Name, step.State)
		}
		if step.State.Terminal() && i != len(f.Steps)-1 {
			return fmt.Errorf("flow %q: terminal state %s must be last", f.Name, step.State)
		}
		f.index[step.State] = i

		if step.Validate != nil {
			if step.Field == "" || step.Normalize == nil {
				return fmt.Errorf("flow %q state %s: validated steps need a field and normalizer", f.Name, step.State)
			}
			if step.Reprompt == "" {
				return fmt.Errorf("flow %q state %s: reprompt is required", f.Name, step.State)
			}
		}
		if i > 0 && step.Prompt == "" {
			return fmt.Errorf("flow %q state %s: prompt is required", f.Name, step.State)
		}
		for _, text := range []string{step.Prompt, step.Reprompt} {
			if err := f.compile(text); err != nil {
				return fmt.Errorf("flow %q state %s: %w", f.Name, step.State, err)
			}
		}
	}
	for _, text := range []string{f.Ended, f.Handoff, f.HandoffHold} {
		if text == "" {
			return fmt.Errorf("flow %q: terminal messages are required", f.Name)
		}
		if err := f.compile(text); err != nil {
			return fmt.Errorf("flow %q: %w", f.Name, err)
		}
	}
	return nil
}

func (f *Flow) compile(text string) error {
	if text == "" || f.templates[text] != nil {
		return nil
	}
	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(text)
	if err != nil {
		return fmt.Errorf("parse prompt %q: %w", text, err)
	}
	f.templates[text] = tmpl
	return nil
}

// render interpolates collected values and the business name into text.
// Rendering falls back to the raw text so a prompt is always available.
func (f *Flow) render(text string, data Data) string {
	tmpl := f.templates[text]
	if tmpl == nil {
		return text
	}
	vars := make(map[string]string, len(data)+1)
	for k, v := range data {
		vars[string(k)] = v
	}
	vars["business"] = f.Business

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return text
	}
	return strings.TrimSpace(buf.String())
}

// Step returns the step definition for state.
func (f *Flow) Step(state State) (Step, bool) {
	i, ok := f.index[state]
	if !ok {
		return Step{}, false
	}
	return f.Steps[i], true
}

// next returns the step following state in the pipeline.
func (f *Flow) next(state State) (Step, bool) {
	i, ok := f.index[state]
	if !ok || i+1 >= len(f.Steps) {
		return Step{}, false
	}
	return f.Steps[i+1], true
}

// RequiredFields lists the fields collected by this flow, in order.
func (f *Flow) RequiredFields() []Field {
	var fields []Field
	for _, step := range f.Steps {
		if step.Field != "" {
			fields = append(fields, step.Field)
		}
	}
	return fields
}

// Prompt renders the prompt for the session's current state.
func (f *Flow) Prompt(s CallSession) string {
	switch s.State {
	case StateEndCall:
		return f.render(f.Ended, s.Data)
	case StateHumanHandoff:
		return f.render(f.HandoffHold, s.Data)
	}
	step, ok := f.Step(s.State)
	if !ok {
		return ""
	}
	return f.render(step.Prompt, s.Data)
}
