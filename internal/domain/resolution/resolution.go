package resolution

import "fmt"

// Source names the tier that produced an answer.
type Source string

const (
	// FastCache is an exact fingerprint hit in the key-value cache.
	FastCache Source = "fast-cache"
	// DurableCache is an exact fingerprint hit in the durable store.
	DurableCache Source = "durable-cache"
	// CuratedMatch is a gold answer above the gold threshold.
	CuratedMatch Source = "curated-match"
	// PriorMatch is a previously generated answer above the prior-match threshold.
	PriorMatch Source = "prior-match"
	// RAG is a generated answer grounded in retrieved reference documents.
	RAG Source = "rag"
	// AI is a generated answer without retrieval context.
	AI Source = "ai"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case FastCache, DurableCache, CuratedMatch, PriorMatch, RAG, AI:
		return true
	}
	return false
}

// Generated reports whether the answer came from the generator on this request.
func (s Source) Generated() bool { return s == RAG || s == AI }

// Resolution is the pipeline output.
type Resolution struct {
	answer     string
	source     Source
	similarity *float64
}

// New creates a Resolution without a similarity score.
func New(answer string, source Source) Resolution {
	return Resolution{answer: answer, source: source}
}

// NewWithSimilarity creates a Resolution carrying the matched candidate's score.
func NewWithSimilarity(answer string, source Source, similarity float64) Resolution {
	return Resolution{answer: answer, source: source, similarity: &similarity}
}

// Answer returns the answer text.
func (r Resolution) Answer() string { return r.answer }

// Source returns the tier that answered.
func (r Resolution) Source() Source { return r.source }

// Similarity returns the match score, nil when the tier has none.
func (r Resolution) Similarity() *float64 { return r.similarity }

func (r Resolution) String() string {
	if r.similarity != nil {
		return fmt.Sprintf("%s (%.3f)", r.source, *r.similarity)
	}
	return string(r.source)
}
