package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// anthropicVersion is the required API version header value.
const anthropicVersion = "2023-06-01"

// AnthropicClient calls an Anthropic-compatible messages API
// (POST {base}/v1/messages with x-api-key auth).
type AnthropicClient struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	hc        *http.Client
}

// NewAnthropicClient builds a client against the given base URL.
func NewAnthropicClient(apiKey, baseURL, model string, maxTokens int) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		return nil, fmt.Errorf("model required")
	}
	return &AnthropicClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		hc:        &http.Client{Timeout: defaultClientTimeout},
	}, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicReq struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResp struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *AnthropicClient) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(anthropicReq{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anthropic: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{
			Provider: "anthropic",
			Status:   resp.StatusCode,
			Message:  upstreamMessage(respBody, http.StatusText(resp.StatusCode)),
		}
	}

	var out anthropicResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", &ProviderError{Provider: "anthropic", Message: "malformed response envelope"}
	}
	if len(out.Content) == 0 || out.Content[0].Text == "" {
		return "", &ProviderError{Provider: "anthropic", Message: "no content returned"}
	}
	return out.Content[0].Text, nil
}
