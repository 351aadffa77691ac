package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"doc-quotes/internal/corpus"
	"doc-quotes/internal/quotes"
)

// Cache provides query result caching
type Cache interface {
	// GetQueryResult retrieves a cached query result by key.
	// Returns nil if not found.
	GetQueryResult(ctx context.Context, key string) (*QueryResult, error)

	// SetQueryResult stores a query result with TTL.
	SetQueryResult(ctx context.Context, key string, result *QueryResult, ttl time.Duration) error

	// Invalidate drops all cached query results. Called on any corpus
	// mutation so stale entries never outlive the documents they answered.
	Invalidate(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// QueryResult is a cached parsed reply.
type QueryResult struct {
	Answer string         `json:"answer"`
	Quotes []quotes.Quote `json:"quotes"`
}

// Key derives a cache key from everything that determines a reply: the
// provider, the prompt mode, the question, and the corpus fingerprint
// (document ids and sizes in insertion order).
func Key(provider string, strict bool, question string, docs []corpus.Document) string {
	var b strings.Builder
	b.WriteString(provider)
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(strict))
	b.WriteByte('|')
	b.WriteString(question)
	for _, doc := range docs {
		fmt.Fprintf(&b, "|%s:%d", doc.ID, doc.Size)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
