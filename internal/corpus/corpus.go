// Package corpus holds the session-scoped document set. Documents live in
// process memory only and are lost on restart.
package corpus

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultName is used when a document is added without a name.
const DefaultName = "Document"

// Document is an immutable user-supplied text document.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Text       string    `json:"text"`
	Size       int       `json:"size"` // character (rune) count of Text
	UploadedAt time.Time `json:"uploadedAt"`
}

// Store is an ordered in-memory document collection. Insertion order is
// preserved; there is no dedup or ranking.
type Store struct {
	mu   sync.RWMutex
	docs []Document
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Add appends a document and returns it. An empty name falls back to DefaultName.
func (s *Store) Add(name, text string) Document {
	if name == "" {
		name = DefaultName
	}
	doc := Document{
		ID:         uuid.NewString(),
		Name:       name,
		Text:       text,
		Size:       utf8.RuneCountInString(text),
		UploadedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.docs = append(s.docs, doc)
	s.mu.Unlock()
	return doc
}

// Remove deletes the document with the given id, reporting whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range s.docs {
		if doc.ID == id {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all documents.
func (s *Store) Clear() {
	s.mu.Lock()
	s.docs = nil
	s.mu.Unlock()
}

// List returns a copy of the documents in insertion order.
func (s *Store) List() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Len returns the number of documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
