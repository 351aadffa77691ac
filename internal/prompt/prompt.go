// Package prompt builds the system instruction and user message sent to the
// LLM provider. The templates are literal prompt text; model behavior is
// sensitive to the exact wording, so they are not generated or localized.
package prompt

import (
	"strings"

	"doc-quotes/internal/corpus"
)

// DefaultDocCharLimit caps how many characters of each document are included
// in the prompt context. Override via Builder.DocCharLimit (DOC_CHAR_LIMIT).
const DefaultDocCharLimit = 15000

const strictSystem = `You are a precise research assistant. Answer the question using ONLY exact quotes from the provided documents.

Rules:
- Give up to three exact quotes, numbered [1], [2], [3].
- After each quote add its source in parentheses: (document name, p. X).
- Copy every quote verbatim, character for character. Preserve Hebrew and any other right-to-left text exactly as it appears in the document.
- If the documents contain no relevant evidence, reply exactly: Insufficient evidence.

After your answer, append one final line of this exact form:
QUOTES_JSON:{"quotes":[{"id":"q1","quote":"...","source":"...","page":1,"score":0.95}]}
Include up to three quote objects. "score" is your confidence in the quote, between 0 and 1.`

const relaxedSystem = `You are a helpful research assistant. Answer the question based on the provided documents, citing them in whatever style fits the answer.

After your answer, append one final line of this exact form:
QUOTES_JSON:{"quotes":[{"id":"q1","quote":"...","source":"...","page":1,"score":0.95}]}
Include up to three quote objects with the most relevant supporting excerpts. "score" is your confidence in the quote, between 0 and 1.`

// Builder assembles prompts from the document corpus.
type Builder struct {
	// DocCharLimit is the per-document character cap; <=0 means DefaultDocCharLimit.
	DocCharLimit int
}

// Build returns the system instruction and user message for a query.
func (b Builder) Build(docs []corpus.Document, question string, strictQuotesOnly bool) (system, user string) {
	system = relaxedSystem
	if strictQuotesOnly {
		system = strictSystem
	}
	user = "Documents:\n\n" + b.Context(docs) + "\n\nQuestion: " + question
	return system, user
}

// Context concatenates the documents as labeled blocks, in insertion order,
// each truncated to the per-document cap.
func (b Builder) Context(docs []corpus.Document) string {
	limit := b.DocCharLimit
	if limit <= 0 {
		limit = DefaultDocCharLimit
	}
	blocks := make([]string, 0, len(docs))
	for _, doc := range docs {
		blocks = append(blocks, "--- "+doc.Name+" ---\n"+truncate(doc.Text, limit))
	}
	return strings.Join(blocks, "\n\n")
}

// truncate cuts text to at most limit characters (runes, so multi-byte
// scripts are never split mid-character).
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
