package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// GeminiClient calls a Google-compatible generateContent API. The credential
// travels in the query string, not a header, per the v1beta REST contract.
type GeminiClient struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	hc        *http.Client
}

// NewGeminiClient builds a client against the given base URL.
func NewGeminiClient(apiKey, baseURL, model string, maxTokens int) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		return nil, fmt.Errorf("model required")
	}
	return &GeminiClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		hc:        &http.Client{Timeout: defaultClientTimeout},
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type geminiReq struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResp struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	// Gemini has no dedicated system slot in this shape; the instruction is
	// prepended to the user text.
	body, err := json.Marshal(geminiReq{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: system + "\n\n" + user}}}},
		GenerationConfig: geminiGenerationConfig{MaxOutputTokens: c.maxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("gemini: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{
			Provider: "gemini",
			Status:   resp.StatusCode,
			Message:  upstreamMessage(respBody, http.StatusText(resp.StatusCode)),
		}
	}

	var out geminiResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", &ProviderError{Provider: "gemini", Message: "malformed response envelope"}
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 || out.Candidates[0].Content.Parts[0].Text == "" {
		return "", &ProviderError{Provider: "gemini", Message: "no candidates returned"}
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
