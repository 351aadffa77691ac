package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"doc-quotes/internal/app"
	"doc-quotes/internal/cache"
	"doc-quotes/internal/config"
	"doc-quotes/internal/corpus"
	"doc-quotes/internal/llm"
	"doc-quotes/internal/prompt"
	"doc-quotes/internal/session"
)

func newTestDeps(client llm.Client) app.Deps {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	docs := corpus.NewStore()
	c := cache.NewNoOpCache()
	ctrl := session.New(log, docs, prompt.Builder{}, client, "openai", c, time.Minute)
	return app.Deps{
		Config: config.Config{
			MaxUploadSize: 1 << 20,
			LLMProvider:   "openai",
		},
		Log:     log,
		Docs:    docs,
		LLM:     client,
		Cache:   c,
		Session: ctrl,
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w.Result()
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	healthHandler()(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"ok": true}, decodeBody(t, resp))
}

func TestAddTextHandler(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    string
		wantStatusCode int
		checkResponse  func(*testing.T, map[string]any)
	}{
		{
			name:           "valid document with name",
			requestBody:    `{"name":"Report","text":"Hello world"}`,
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, result map[string]any) {
				assert.Equal(t, true, result["success"])
				doc := result["document"].(map[string]any)
				assert.Equal(t, "Report", doc["name"])
				assert.Equal(t, float64(11), doc["size"])
				assert.NotEmpty(t, doc["id"])
				assert.NotEmpty(t, doc["uploadedAt"])
			},
		},
		{
			name:           "missing name falls back to default",
			requestBody:    `{"text":"some text"}`,
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, result map[string]any) {
				doc := result["document"].(map[string]any)
				assert.Equal(t, corpus.DefaultName, doc["name"])
			},
		},
		{
			name:           "empty text returns 400",
			requestBody:    `{"name":"A","text":""}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "whitespace-only text returns 400",
			requestBody:    `{"name":"A","text":"   \n "}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON returns 400",
			requestBody:    `{invalid json}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps(new(llm.MockClient))
			resp := postJSON(t, addTextHandler(deps), "/api/text", tt.requestBody)

			assert.Equal(t, tt.wantStatusCode, resp.StatusCode)
			if tt.checkResponse != nil {
				tt.checkResponse(t, decodeBody(t, resp))
			}
		})
	}
}

func TestQueryHandler(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    string
		seedDocuments  bool
		setup          func(*llm.MockClient)
		wantStatusCode int
		checkResponse  func(*testing.T, map[string]any)
	}{
		{
			name:          "successful query returns answer and quotes",
			requestBody:   `{"prompt":"What is this?","strictQuotesOnly":true}`,
			seedDocuments: true,
			setup: func(m *llm.MockClient) {
				m.On("Complete", mock.Anything, mock.Anything, mock.Anything).
					Return(`[1] "Hello world" (A, p. 1)
QUOTES_JSON:{"quotes":[{"id":"q1","quote":"Hello world","source":"A","page":1,"score":0.9}]}`, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, result map[string]any) {
				assert.Equal(t, true, result["success"])
				assert.Equal(t, `[1] "Hello world" (A, p. 1)`, result["answer"])
				qs := result["quotes"].([]any)
				require.Len(t, qs, 1)
				q := qs[0].(map[string]any)
				assert.Equal(t, "q1", q["id"])
				assert.Equal(t, "Hello world", q["quote"])
				assert.Equal(t, "A", q["source"])
				assert.Equal(t, float64(1), q["page"])
				assert.Equal(t, 0.9, q["score"])
			},
		},
		{
			name:           "empty prompt returns 400",
			requestBody:    `{"prompt":""}`,
			seedDocuments:  true,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON returns 400",
			requestBody:    `{not json`,
			seedDocuments:  true,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "no documents returns fixed answer without provider call",
			requestBody:    `{"prompt":"Anything?"}`,
			seedDocuments:  false,
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, result map[string]any) {
				assert.Equal(t, true, result["success"])
				assert.Equal(t, noDocumentsAnswer, result["answer"])
				assert.Empty(t, result["quotes"])
			},
		},
		{
			name:          "provider failure returns 500 with upstream message",
			requestBody:   `{"prompt":"What?"}`,
			seedDocuments: true,
			setup: func(m *llm.MockClient) {
				m.On("Complete", mock.Anything, mock.Anything, mock.Anything).
					Return("", &llm.ProviderError{Provider: "openai", Status: 429, Message: "Rate limit reached for gpt-4o-mini"}).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			checkResponse: func(t *testing.T, result map[string]any) {
				assert.Equal(t, false, result["success"])
				assert.Equal(t, "Rate limit reached for gpt-4o-mini", result["error"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockLLM := new(llm.MockClient)
			if tt.setup != nil {
				tt.setup(mockLLM)
			}
			deps := newTestDeps(mockLLM)
			if tt.seedDocuments {
				_, err := deps.Session.AddDocument(context.Background(), "A", "Hello world")
				require.NoError(t, err)
			}

			resp := postJSON(t, queryHandler(deps), "/api/query", tt.requestBody)

			assert.Equal(t, tt.wantStatusCode, resp.StatusCode)
			if tt.checkResponse != nil {
				tt.checkResponse(t, decodeBody(t, resp))
			}
			mockLLM.AssertExpectations(t)
		})
	}
}

func TestClearThenQueryIssuesNoProviderCall(t *testing.T) {
	mockLLM := new(llm.MockClient)
	deps := newTestDeps(mockLLM)
	_, err := deps.Session.AddDocument(context.Background(), "A", "text")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/documents", nil)
	w := httptest.NewRecorder()
	clearDocumentsHandler(deps)(w, req)
	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["success"])

	resp = postJSON(t, queryHandler(deps), "/api/query", `{"prompt":"Still there?"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, noDocumentsAnswer, decodeBody(t, resp)["answer"])

	mockLLM.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveDocumentHandler(t *testing.T) {
	deps := newTestDeps(new(llm.MockClient))
	doc, err := deps.Session.AddDocument(context.Background(), "A", "text")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Delete("/api/documents/{id}", removeDocumentHandler(deps))

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Equal(t, 0, deps.Docs.Len())

	// Deleting again is a 404.
	req = httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestListDocumentsHandler(t *testing.T) {
	deps := newTestDeps(new(llm.MockClient))
	_, err := deps.Session.AddDocument(context.Background(), "first", "a")
	require.NoError(t, err)
	_, err = deps.Session.AddDocument(context.Background(), "second", "b")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	w := httptest.NewRecorder()
	listDocumentsHandler(deps)(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	docs := decodeBody(t, resp)["documents"].([]any)
	require.Len(t, docs, 2)
	assert.Equal(t, "first", docs[0].(map[string]any)["name"])
	assert.Equal(t, "second", docs[1].(map[string]any)["name"])
}

func TestUploadHandlerTxt(t *testing.T) {
	deps := newTestDeps(new(llm.MockClient))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("plain text body"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	uploadHandler(deps)(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeBody(t, resp)["document"].(map[string]any)
	assert.Equal(t, "notes.txt", doc["name"])
	assert.Equal(t, float64(len("plain text body")), doc["size"])
}

func TestUploadHandlerRejectsUnsupportedType(t *testing.T) {
	deps := newTestDeps(new(llm.MockClient))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "image.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	uploadHandler(deps)(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}
