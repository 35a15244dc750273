package domain

import "context"

// Completion is the generator's top candidate.
type Completion struct {
	Text  string
	Model string
}

// Generator turns a prompt into free text.
// Capacity failures are reported as ErrRateLimited, everything else as ErrGenerationFailed.
type Generator interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
	Model() string
}
