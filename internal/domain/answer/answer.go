package answer

import (
	"errors"
	"fmt"
	"time"
)

// Producer identifies who authored an answer.
type Producer string

const (
	// Curated answers are human-verified gold data.
	Curated Producer = "curated"
	// Generated answers come from the answer generator.
	Generated Producer = "generated"
)

// ParseProducer validates a stored producer value.
func ParseProducer(s string) (Producer, error) {
	switch Producer(s) {
	case Curated, Generated:
		return Producer(s), nil
	default:
		return "", fmt.Errorf("unknown answer producer %q", s)
	}
}

// Answer is the stored answer for exactly one question.
type Answer struct {
	id         int64
	questionID int64
	text       string
	producedBy Producer
	modelID    string
	createdAt  time.Time
}

// NewGenerated creates an unsaved generated answer for the given question.
func NewGenerated(questionID int64, text, modelID string) (Answer, error) {
	if questionID <= 0 {
		return Answer{}, errors.New("question reference is required")
	}
	if text == "" {
		return Answer{}, errors.New("answer text is required")
	}
	return Answer{
		questionID: questionID,
		text:       text,
		producedBy: Generated,
		modelID:    modelID,
		createdAt:  time.Now().UTC(),
	}, nil
}

// Reconstruct creates an Answer without validation (storage hydration).
func Reconstruct(
	id, questionID int64, text string, producedBy Producer, modelID string, createdAt time.Time,
) Answer {
	return Answer{
		id: id, questionID: questionID, text: text,
		producedBy: producedBy, modelID: modelID, createdAt: createdAt,
	}
}

// ID returns the storage identifier.
func (a *Answer) ID() int64 { return a.id }

// QuestionID returns the owning question id.
func (a *Answer) QuestionID() int64 { return a.questionID }

// Text returns the answer text.
func (a *Answer) Text() string { return a.text }

// ProducedBy returns the answer author.
func (a *Answer) ProducedBy() Producer { return a.producedBy }

// ModelID returns the generator model, empty for curated answers.
func (a *Answer) ModelID() string { return a.modelID }

// CreatedAt returns the creation time.
func (a *Answer) CreatedAt() time.Time { return a.createdAt }
