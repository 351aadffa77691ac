// Package session orchestrates one user session: a document corpus, query
// execution against the configured LLM provider, and the UI-facing result
// state. States move idle → loading → idle; at most one query is in flight.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"doc-quotes/internal/cache"
	"doc-quotes/internal/corpus"
	"doc-quotes/internal/llm"
	"doc-quotes/internal/prompt"
	"doc-quotes/internal/quotes"
)

// State is the controller's lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
)

// Validation errors are rejected before any network call.
var (
	ErrEmptyQuestion = errors.New("question must not be empty")
	ErrEmptyDocument = errors.New("document text must not be empty")
	ErrNoDocuments   = errors.New("no documents loaded")
	ErrQueryInFlight = errors.New("a query is already in flight")
	ErrUnknownQuote  = errors.New("no such quote in the current result")
)

// Controller holds session state and runs queries.
type Controller struct {
	log      *slog.Logger
	docs     *corpus.Store
	builder  prompt.Builder
	client   llm.Client
	provider string
	cache    cache.Cache
	cacheTTL time.Duration

	mu        sync.Mutex
	state     State
	result    quotes.Result
	lastError string
	preferred string
}

// Snapshot is a point-in-time copy of the UI-facing state.
type Snapshot struct {
	State          State
	Answer         string
	Quotes         []quotes.Quote
	Error          string
	PreferredQuote string
}

// New builds a controller. provider names the active adapter and only feeds
// the cache key, so results from different providers never collide.
func New(log *slog.Logger, docs *corpus.Store, builder prompt.Builder, client llm.Client, provider string, c cache.Cache, cacheTTL time.Duration) *Controller {
	return &Controller{
		log:      log,
		docs:     docs,
		builder:  builder,
		client:   client,
		provider: provider,
		cache:    c,
		cacheTTL: cacheTTL,
		state:    StateIdle,
	}
}

// AddDocument validates and stores a document. Allowed while a query is in
// flight; the in-flight query keeps the corpus snapshot it started with.
func (c *Controller) AddDocument(ctx context.Context, name, text string) (corpus.Document, error) {
	if strings.TrimSpace(text) == "" {
		return corpus.Document{}, ErrEmptyDocument
	}
	doc := c.docs.Add(name, text)
	c.invalidateCache(ctx)
	return doc, nil
}

// RemoveDocument deletes one document, reporting whether it existed.
func (c *Controller) RemoveDocument(ctx context.Context, id string) bool {
	removed := c.docs.Remove(id)
	if removed {
		c.invalidateCache(ctx)
	}
	return removed
}

// ClearDocuments empties the corpus.
func (c *Controller) ClearDocuments(ctx context.Context) {
	c.docs.Clear()
	c.invalidateCache(ctx)
}

// Documents lists the corpus in insertion order.
func (c *Controller) Documents() []corpus.Document {
	return c.docs.List()
}

// Ask runs one query. Validation failures (empty question, empty corpus)
// return before any network call. A second Ask while one is in flight fails
// with ErrQueryInFlight. On success the answer and quotes are replaced
// atomically; on provider failure they are cleared and the error recorded.
func (c *Controller) Ask(ctx context.Context, question string, strictQuotesOnly bool) (quotes.Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return quotes.Result{}, ErrEmptyQuestion
	}
	docs := c.docs.List()
	if len(docs) == 0 {
		return quotes.Result{}, ErrNoDocuments
	}

	c.mu.Lock()
	if c.state == StateLoading {
		c.mu.Unlock()
		return quotes.Result{}, ErrQueryInFlight
	}
	c.state = StateLoading
	c.mu.Unlock()

	key := cache.Key(c.provider, strictQuotesOnly, question, docs)
	if cached, err := c.cache.GetQueryResult(ctx, key); err == nil && cached != nil {
		c.log.Info("cache hit", "question", question)
		res := quotes.Result{Answer: cached.Answer, Quotes: cached.Quotes}
		c.apply(res)
		return res, nil
	}

	system, user := c.builder.Build(docs, question, strictQuotesOnly)
	raw, err := c.client.Complete(ctx, system, user)
	if err != nil {
		c.fail(err)
		return quotes.Result{}, err
	}

	res := quotes.Parse(raw)
	if len(res.Quotes) == 0 && strings.Contains(raw, quotes.Marker) {
		// Trailer present but unusable; the answer still stands.
		c.log.Debug("quote trailer did not parse", "question", question)
	}
	c.apply(res)

	if err := c.cache.SetQueryResult(ctx, key, &cache.QueryResult{Answer: res.Answer, Quotes: res.Quotes}, c.cacheTTL); err != nil {
		c.log.Warn("failed to cache result", "err", err)
	}
	return res, nil
}

// SelectQuote marks a quote from the current result set as preferred.
func (c *Controller) SelectQuote(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.result.Quotes {
		if q.ID == id {
			c.preferred = id
			return nil
		}
	}
	return ErrUnknownQuote
}

// Snapshot returns a copy of the current UI-facing state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	qs := make([]quotes.Quote, len(c.result.Quotes))
	copy(qs, c.result.Quotes)
	return Snapshot{
		State:          c.state,
		Answer:         c.result.Answer,
		Quotes:         qs,
		Error:          c.lastError,
		PreferredQuote: c.preferred,
	}
}

func (c *Controller) apply(res quotes.Result) {
	c.mu.Lock()
	c.state = StateIdle
	c.result = res
	c.lastError = ""
	c.preferred = ""
	c.mu.Unlock()
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.state = StateIdle
	c.result = quotes.Result{}
	c.lastError = err.Error()
	c.preferred = ""
	c.mu.Unlock()
}

func (c *Controller) invalidateCache(ctx context.Context) {
	if err := c.cache.Invalidate(ctx); err != nil {
		c.log.Warn("cache invalidation failed", "err", err)
	}
}
