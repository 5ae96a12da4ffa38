package docstore

import (
	"context"
	"errors"
	"time"
)

// Document is a schemaless record as stored in a collection.
type Document = map[string]any

var ErrNotFound = errors.New("document not found")

// Query selects a collection subset by top-level field equality.
type Query struct {
	Collection string
	Filters    map[string]string
}

// Doc is one result-set entry together with its server-side metadata.
type Doc struct {
	ID        string
	Data      Document
	UpdatedAt time.Time
}

// Snapshot is a full result set for a live query, never a diff. A failed
// subscription delivers a final snapshot with Err set.
type Snapshot struct {
	Docs []Doc
	Err  error
}

// CancelFunc tears down a live subscription. Safe to call more than once.
type CancelFunc func()

// Store is the document-store surface the rest of the system depends on.
type Store interface {
	Add(ctx context.Context, collection string, doc Document) (string, error)
	Update(ctx context.Context, collection, id string, patch Document) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (Doc, error)

	// Find runs q once and returns the current result set.
	Find(ctx context.Context, q Query) ([]Doc, error)

	// Subscribe opens a live query. The returned channel receives the
	// current result set immediately and again after every change to the
	// collection. The channel is closed after cancel.
	Subscribe(ctx context.Context, q Query) (<-chan Snapshot, CancelFunc, error)
}
