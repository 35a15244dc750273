package candidate

import (
	"fmt"
	"slices"
)

// Candidate is a single similarity hit. Transient, never persisted.
type Candidate struct {
	score     float64
	answer    string
	sourceRef string
}

// New creates a candidate. Score is clamped to [0,1].
func New(score float64, answer, sourceRef string) Candidate {
	return Candidate{score: min(1, max(0, score)), answer: answer, sourceRef: sourceRef}
}

// Score returns the similarity in [0,1].
func (c Candidate) Score() float64 { return c.score }

// Answer returns the candidate answer text.
func (c Candidate) Answer() string { return c.answer }

// SourceRef identifies the corpus entry (gold id or question reference).
func (c Candidate) SourceRef() string { return c.sourceRef }

// QuestionRef formats the source reference for a stored question.
func QuestionRef(id int64) string { return fmt.Sprintf("question:%d", id) }

// Ranked returns candidates ordered by descending score.
// Equal scores keep the order the index returned them in.
func Ranked(cs []Candidate) []Candidate {
	out := slices.Clone(cs)
	slices.SortStableFunc(out, func(a, b Candidate) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})
	return out
}

// AtLeast keeps candidates whose score is >= threshold, preserving order.
func AtLeast(cs []Candidate, threshold float64) []Candidate {
	out := make([]Candidate, 0, len(cs))
	for _, c := range cs {
		if c.score >= threshold {
			out = append(out, c)
		}
	}
	return out
}
