// Package gold defines curated question/answer pairs.
package gold

import (
	"errors"
	"strings"
)

// Entry is one curated pair. The pipeline only reads entries; seeding writes them.
type Entry struct {
	id        string
	question  string
	answer    string
	embedding []float32
}

// New trims and validates a curated pair. The id doubles as a storage key suffix.
func New(id, question, answer string) (Entry, error) {
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if !validID(id) {
		return Entry{}, errors.New("gold id must match [a-zA-Z0-9_:-]+")
	}
	if question == "" {
		return Entry{}, errors.New("gold question is required")
	}
	if answer == "" {
		return Entry{}, errors.New("gold answer is required")
	}
	return Entry{id: id, question: question, answer: answer}, nil
}

// Reconstruct creates an Entry without validation (storage hydration).
func Reconstruct(id, question, answer string, embedding []float32) Entry {
	return Entry{id: id, question: question, answer: answer, embedding: embedding}
}

// WithEmbedding returns a copy carrying vec.
func (e Entry) WithEmbedding(vec []float32) Entry {
	e.embedding = vec
	return e
}

func (e Entry) ID() string           { return e.id }
func (e Entry) Question() string     { return e.question }
func (e Entry) Answer() string       { return e.answer }
func (e Entry) Embedding() []float32 { return e.embedding }

func validID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == ':' || r == '-':
		default:
			return false
		}
	}
	return true
}
