package callflow

import "strings"

// Result is the outcome of a single transition.
type Result struct {
	Prompt    string
	Session   CallSession
	Valid     bool
	NextState State
}

// Escalated reports whether the transition handed the call to a human.
func (r Result) Escalated() bool {
	return r.NextState == StateHumanHandoff
}

// Advance applies one caller utterance to s and returns the updated copy.
// It never fails: invalid answers keep the state and produce a reprompt.
// The session passed in is not modified.
func (f *Flow) Advance(s CallSession, raw string) Result {
	s = s.Clone()
	trimmed := strings.TrimSpace(raw)
	input := strings.ToLower(trimmed)

	res := f.advance(&s, trimmed, input)
	s.record(Turn{State: res.from, Utterance: trimmed, Prompt: res.prompt, Valid: res.valid})

	return Result{
		Prompt:    res.prompt,
		Session:   s,
		Valid:     res.valid,
		NextState: s.State,
	}
}

type transition struct {
	from   State
	prompt string
	valid  bool
}

func (f *Flow) advance(s *CallSession, trimmed, input string) transition {
	from := s.State

	switch from {
	case StateEndCall:
		return transition{from: from, prompt: f.render(f.Ended, s.Data), valid: true}
	case StateHumanHandoff:
		return transition{from: from, prompt: f.render(f.HandoffHold, s.Data), valid: true}
	}

	step, ok := f.Step(from)
	if !ok {
		// A session from another flow version; restart collection rather than stall.
		s.State = StateGreeting
		return f.enter(s, from)
	}

	if step.Validate == nil {
		return f.enter(s, from)
	}

	if !step.Validate(input) {
		if s.Attempts == nil {
			s.Attempts = make(map[State]int)
		}
		s.Attempts[from]++
		if f.MaxAttempts > 0 && s.Attempts[from] >= f.MaxAttempts {
			s.State = StateHumanHandoff
			return transition{from: from, prompt: f.render(f.Handoff, s.Data)}
		}
		return transition{from: from, prompt: f.render(step.Reprompt, s.Data)}
	}

	if !s.Data.Has(step.Field) {
		s.Data[step.Field] = step.Normalize(trimmed)
		if step.RawField != "" {
			s.Data[step.RawField] = trimmed
		}
	}
	delete(s.Attempts, from)
	return f.enter(s, from)
}

// enter moves s to the step after its current state and renders that step's prompt.
func (f *Flow) enter(s *CallSession, from State) transition {
	next, ok := f.next(s.State)
	if !ok {
		s.State = StateEndCall
		return transition{from: from, prompt: f.render(f.Ended, s.Data), valid: true}
	}
	s.State = next.State
	return transition{from: from, prompt: f.render(next.Prompt, s.Data), valid: true}
}
