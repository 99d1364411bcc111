package callflow

import (
	"fmt"
	"sort"
)

const (
	FlowRoofing         = "roofing"
	FlowRoofingDetailed = "roofing-detailed"
	FlowPlumbing        = "plumbing"
)

var roofingServices = ServiceClassifier{Products: []string{"roof", "roofing", "gutter", "gutters", "skylight"}}

var plumbingServices = ServiceClassifier{Products: []string{
	"water heater", "toilet", "faucet", "sink", "shower", "pipe", "pipes", "sump pump", "garbage disposal", "bathroom",
}}

func serviceStep(prompt, reprompt string, c ServiceClassifier) Step {
	return Step{
		State:     StateServiceType,
		Prompt:    prompt,
		Reprompt:  reprompt,
		Field:     FieldServiceType,
		Validate:  c.Valid,
		Normalize: c.Classify,
	}
}

func locationStep(prompt string) Step {
	return Step{
		State:     StateLocation,
		Prompt:    prompt,
		Reprompt:  "I need a valid five digit ZIP code. Can you say it again?",
		Field:     FieldLocation,
		Validate:  ValidZIP,
		Normalize: NormalizeZIP,
	}
}

func phoneStep(prompt string) Step {
	return Step{
		State:     StateContactPhone,
		Prompt:    prompt,
		Reprompt:  "I need a valid ten digit phone number. Can you repeat it for me?",
		Field:     FieldPhone,
		Validate:  ValidPhone,
		Normalize: NormalizePhone,
	}
}

func timelineStep(prompt string) Step {
	return Step{
		State:     StateTimeline,
		Prompt:    prompt,
		Reprompt:  "When are you looking to move forward: as soon as possible, next month, or later?",
		Field:     FieldTimeline,
		RawField:  FieldRawTimeline,
		Validate:  MatchTimeline,
		Normalize: NormalizeTimeline,
	}
}

func newFlow(name, business string, steps ...Step) *Flow {
	return &Flow{
		Name:        name,
		Business:    business,
		Steps:       steps,
		Ended:       "This call has ended. Thank you for calling {{.business}}.",
		Handoff:     "I'm having trouble getting that. Let me connect you with a member of our team.",
		HandoffHold: "Please hold while we connect you with a member of our team.",
		MaxAttempts: DefaultMaxAttempts,
	}
}

// RoofingFlow collects service type, ZIP, phone and timeline for a roofing company.
func RoofingFlow(business string) *Flow {
	return newFlow(FlowRoofing, business,
		Step{State: StateGreeting},
		serviceStep(
			"Thanks for calling {{.business}}! Are you looking for a roof installation or a repair?",
			"Sorry, I didn't catch that. Are you looking for a new roof installation or a repair?",
			roofingServices,
		),
		locationStep("Got it, {{.serviceType}}. What's the ZIP code for the property?"),
		phoneStep("Thanks. What's the best phone number to reach you?"),
		timelineStep("When are you looking to get this done: this week, next month, or later?"),
		Step{
			State:  StateConfirmation,
			Prompt: "Perfect! I have a roof {{.serviceType}} in ZIP code {{.location}}, timeline {{.timeline}}, and we'll reach you at {{.phone}}. Does that sound right?",
		},
		Step{
			State:  StateEndCall,
			Prompt: "Thank you for your time! Our team will be in touch shortly to schedule your consultation. Have a great day!",
		},
	)
}

// DetailedRoofingFlow also asks which roof material the property has.
func DetailedRoofingFlow(business string) *Flow {
	f := RoofingFlow(business)
	f.Name = FlowRoofingDetailed
	steps := make([]Step, 0, len(f.Steps)+1)
	for _, step := range f.Steps {
		if step.State == StateContactPhone {
			steps = append(steps, Step{
				State:     StateRoofType,
				Prompt:    "Perfect. What type of roof do you have: shingle, metal, or tile?",
				Reprompt:  "Is the roof shingle, metal, tile, flat, or slate?",
				Field:     FieldRoofType,
				Validate:  ValidRoofType,
				Normalize: NormalizeRoofType,
			})
		}
		if step.State == StateConfirmation {
			step.Prompt = "Perfect! I have a {{.roofType}} roof {{.serviceType}} in ZIP code {{.location}}, timeline {{.timeline}}, and we'll reach you at {{.phone}}. Does that sound right?"
		}
		steps = append(steps, step)
	}
	f.Steps = steps
	return f
}

// PlumbingFlow collects the same fields with plumbing vocabulary.
func PlumbingFlow(business string) *Flow {
	return newFlow(FlowPlumbing, business,
		Step{State: StateGreeting},
		serviceStep(
			"Thanks for calling {{.business}}! Do you need a new fixture installed, or something repaired?",
			"Sorry, I didn't catch that. Is this a new installation, like a water heater or toilet, or a repair?",
			plumbingServices,
		),
		locationStep("Got it, a plumbing {{.serviceType}}. What's your ZIP code so I can check service in your area?"),
		phoneStep("Thanks. What's the best phone number for our technician to call?"),
		timelineStep("How soon do you need us: today, this week, or later?"),
		Step{
			State:  StateConfirmation,
			Prompt: "Great. I have a plumbing {{.serviceType}} in ZIP code {{.location}}, timeline {{.timeline}}, and we'll call you at {{.phone}}. Is that correct?",
		},
		Step{
			State:  StateEndCall,
			Prompt: "Thank you! You'll get a confirmation text shortly. Have a great day!",
		},
	)
}

var builders = map[string]func(string) *Flow{
	FlowRoofing:         RoofingFlow,
	FlowRoofingDetailed: DetailedRoofingFlow,
	FlowPlumbing:        PlumbingFlow,
}

// Names lists the built-in flows.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup builds and validates a named flow.
func Lookup(name, business string, maxAttempts int) (*Flow, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown flow %q (known: %v)", name, Names())
	}
	f := build(business)
	f.MaxAttempts = maxAttempts
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
