// Package documents records rendered documents stored by the HTTP front.
package documents

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/xid"
)

// ErrNotFound is returned when no record matches an ID.
var ErrNotFound = errors.New("document not found")

// Document describes one stored render.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Location   string    `json:"location"`
	ConvertTo  string    `json:"convert_to"`
	ClientName string    `json:"client_name,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository persists document records.
type Repository interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
}

// prepare fills the generated fields of doc.
func prepare(doc *Document) {
	if doc.ID == "" {
		doc.ID = xid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
}

// MemoryRepository keeps records in process. It backs the HTTP front when no
// database is configured.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]Document)}
}

func (r *MemoryRepository) Create(ctx context.Context, doc *Document) error {
	prepare(doc)
	r.mu.Lock()
	r.docs[doc.ID] = *doc
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}
