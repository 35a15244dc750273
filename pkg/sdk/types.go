package qacache

import "github.com/kailas-cloud/qacache/internal/domain"

// Source names the tier that produced an answer.
type Source string

// Source constants.
const (
	SourceFastCache    Source = "fast-cache"
	SourceDurableCache Source = "durable-cache"
	SourceCuratedMatch Source = "curated-match"
	SourcePriorMatch   Source = "prior-match"
	SourceRAG          Source = "rag"
	SourceAI           Source = "ai"
)

// Answer is the result of Ask.
type Answer struct {
	Text   string
	Source Source
	// Similarity is set for curated and prior matches.
	Similarity *float64
}

// BatchAnswer is the outcome of one question of AskBatch, in input order.
type BatchAnswer struct {
	Question string
	Answer   Answer
	Err      error
}

// GoldItem is one curated question/answer pair.
type GoldItem struct {
	ID       string `yaml:"id" json:"id"`
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// SeedResult is the outcome of one GoldItem.
type SeedResult struct {
	ID  string
	Err error
}

// SeedReport summarizes a SeedGold run.
type SeedReport struct {
	Results []SeedResult
	Seeded  int
	Failed  int
}

// Policy holds the tier thresholds and per-dependency timeouts.
type Policy = domain.Policy

// DefaultPolicy returns thresholds gold 0.85, prior-match 0.80, context 0.70.
func DefaultPolicy() Policy { return domain.DefaultPolicy() }
