package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Client is the single capability every provider adapter implements: send a
// system instruction plus user message, get the model's free-text reply.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// defaultClientTimeout bounds a single provider call. Without it a hung
// upstream would pin the session in loading forever.
const defaultClientTimeout = 60 * time.Second

// ProviderError reports a failed provider call. Message carries the
// provider's own error text when the response body had one.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// upstreamMessage pulls the provider's own error message out of an error
// response body. Anthropic and Gemini both nest it under "error.message";
// some compatible servers put it at the top level. Falls back to the given
// generic text when the body has neither.
func upstreamMessage(body []byte, fallback string) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) <= 512 {
		return s
	}
	return fallback
}
