package question

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
)

// FingerprintLen is the length of a hex-encoded SHA-256 fingerprint.
const FingerprintLen = sha256.Size * 2

// Normalize trims, case-folds and collapses whitespace runs into a single space.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	space := false
	for _, r := range cases.Fold().String(raw) {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Fingerprint returns the hex SHA-256 digest of normalized text.
func Fingerprint(normalized string) string {
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

// Question is a resolved question (immutable value object).
type Question struct {
	id          int64
	text        string
	fingerprint string
	embedding   []float32
	createdAt   time.Time
}

// New normalizes raw text and creates an unsaved Question.
func New(raw string, embedding []float32) (Question, error) {
	text := Normalize(raw)
	if text == "" {
		return Question{}, errors.New("question text is required")
	}
	return Question{
		text:        text,
		fingerprint: Fingerprint(text),
		embedding:   embedding,
		createdAt:   time.Now().UTC(),
	}, nil
}

// Reconstruct creates a Question without validation (storage hydration).
func Reconstruct(id int64, text, fingerprint string, embedding []float32, createdAt time.Time) Question {
	return Question{id: id, text: text, fingerprint: fingerprint, embedding: embedding, createdAt: createdAt}
}

// ID returns the storage identifier, zero until persisted.
func (q *Question) ID() int64 { return q.id }

// Text returns the normalized question text.
func (q *Question) Text() string { return q.text }

// Fingerprint returns the SHA-256 fingerprint of Text.
func (q *Question) Fingerprint() string { return q.fingerprint }

// Embedding returns the question vector, nil when embedding was unavailable.
func (q *Question) Embedding() []float32 { return q.embedding }

// HasEmbedding reports whether the question carries a vector.
func (q *Question) HasEmbedding() bool { return len(q.embedding) > 0 }

// CreatedAt returns the creation time.
func (q *Question) CreatedAt() time.Time { return q.createdAt }
