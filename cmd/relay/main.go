// Command relay is the server-side credential holder: it keeps the document
// corpus in memory and forwards queries to the configured LLM provider, so
// browser clients never see an API key.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ledongthuc/pdf"

	"doc-quotes/internal/app"
	"doc-quotes/internal/corpus"
	"doc-quotes/internal/httputil"
	"doc-quotes/internal/llm"
	"doc-quotes/internal/quotes"
	"doc-quotes/internal/session"
)

// noDocumentsAnswer is returned, without any provider call, when a query
// arrives against an empty corpus.
const noDocumentsAnswer = "No documents have been added yet. Add a document before asking a question."

type textRequest struct {
	Name string `json:"name" validate:"omitempty,max=200"`
	Text string `json:"text" validate:"required"`
}

type queryRequest struct {
	Prompt           string `json:"prompt" validate:"required"`
	StrictQuotesOnly bool   `json:"strictQuotesOnly"`
}

// documentSummary is the wire shape for a stored document; the body text is
// deliberately not echoed back.
type documentSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int       `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func summarize(doc corpus.Document) documentSummary {
	return documentSummary{ID: doc.ID, Name: doc.Name, Size: doc.Size, UploadedAt: doc.UploadedAt}
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Cache.Close()

	r := httputil.NewRouter(deps.Log)

	r.Get("/api/health", healthHandler())
	r.Post("/api/text", addTextHandler(deps))
	r.Post("/api/upload", uploadHandler(deps))
	r.Get("/api/documents", listDocumentsHandler(deps))
	r.Delete("/api/documents", clearDocumentsHandler(deps))
	r.Delete("/api/documents/{id}", removeDocumentHandler(deps))
	r.Post("/api/query", queryHandler(deps))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("relay listening", "addr", addr, "provider", deps.Config.LLMProvider)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func addTextHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		doc, err := deps.Session.AddDocument(r.Context(), req.Name, req.Text)
		if err != nil {
			httputil.Fail(deps.Log, w, "text must not be empty", err, http.StatusBadRequest)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"document": summarize(doc),
		})
	}
}

func uploadHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".txt" && ext != ".pdf" {
			httputil.Fail(deps.Log, w, "unsupported file type (only PDF and TXT allowed)", nil, http.StatusBadRequest)
			return
		}

		content, err := io.ReadAll(file)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}

		doc, err := deps.Session.AddDocument(r.Context(), header.Filename, extractText(header.Filename, content, deps))
		if err != nil {
			httputil.Fail(deps.Log, w, "file contains no text", err, http.StatusBadRequest)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"document": summarize(doc),
		})
	}
}

func listDocumentsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs := deps.Session.Documents()
		summaries := make([]documentSummary, len(docs))
		for i, doc := range docs {
			summaries[i] = summarize(doc)
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": summaries})
	}
}

func clearDocumentsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Session.ClearDocuments(r.Context())
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func removeDocumentHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !deps.Session.RemoveDocument(r.Context(), id) {
			httputil.Fail(deps.Log, w, "document not found", nil, http.StatusNotFound)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func queryHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		res, err := deps.Session.Ask(r.Context(), req.Prompt, req.StrictQuotesOnly)
		switch {
		case err == nil:
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"answer":  res.Answer,
				"quotes":  res.Quotes,
			})
		case errors.Is(err, session.ErrNoDocuments):
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"answer":  noDocumentsAnswer,
				"quotes":  []quotes.Quote{},
			})
		case errors.Is(err, session.ErrEmptyQuestion):
			httputil.Fail(deps.Log, w, "prompt must not be empty", err, http.StatusBadRequest)
		case errors.Is(err, session.ErrQueryInFlight):
			httputil.Fail(deps.Log, w, "a query is already in flight", err, http.StatusConflict)
		default:
			// Surface the provider's own message when it gave one.
			message := "query failed"
			var perr *llm.ProviderError
			if errors.As(err, &perr) {
				message = perr.Message
			}
			httputil.Fail(deps.Log, w, message, err, http.StatusInternalServerError)
		}
	}
}

// extractText extracts text from uploaded files, with PDF support.
func extractText(filename string, content []byte, deps app.Deps) string {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		text, err := extractPDF(content)
		if err != nil {
			deps.Log.Warn("pdf extraction failed, using raw bytes", "err", err, "filename", filename)
			return string(content)
		}
		return text
	}
	return string(content)
}

func extractPDF(content []byte) (string, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}
