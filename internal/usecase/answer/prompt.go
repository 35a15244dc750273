package answer

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/qacache/internal/domain/candidate"
)

// FallbackAnswer is returned when the generator produces no text.
const FallbackAnswer = "Sorry, an answer could not be generated."

const ragTemplate = `You are an AI assistant for the company's internal knowledge base.

Below are reference documents related to the question:

%s

Answer the question based on the reference documents above.
Do not speculate about anything the reference documents do not cover.

Question:
%s
`

// contextBlocks renders candidates as numbered reference documents.
func contextBlocks(cs []candidate.Candidate) string {
	blocks := make([]string, len(cs))
	for i, c := range cs {
		blocks[i] = fmt.Sprintf("Reference document %d:\n%s\n(similarity: %.3f)", i+1, c.Answer(), c.Score())
	}
	return strings.Join(blocks, "\n\n")
}

// buildPrompt returns the bare question when there is no context.
func buildPrompt(question string, refs []candidate.Candidate) string {
	if len(refs) == 0 {
		return question
	}
	return fmt.Sprintf(ragTemplate, contextBlocks(refs), question)
}
