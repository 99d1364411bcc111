package engine

import (
	"context"

	"github.com/room4-2/callintake/callflow"
)

// Enhancer rewrites a prompt into more natural speech. Implementations may
// fail or time out; the engine then uses the base prompt.
type Enhancer interface {
	Rephrase(ctx context.Context, state callflow.State, prompt string) (string, error)
}

// NoopEnhancer returns prompts unchanged.
type NoopEnhancer struct{}

func (NoopEnhancer) Rephrase(_ context.Context, _ callflow.State, prompt string) (string, error) {
	return prompt, nil
}

// EnhancerFunc adapts a function to Enhancer.
type EnhancerFunc func(ctx context.Context, state callflow.State, prompt string) (string, error)

func (f EnhancerFunc) Rephrase(ctx context.Context, state callflow.State, prompt string) (string, error) {
	return f(ctx, state, prompt)
}
