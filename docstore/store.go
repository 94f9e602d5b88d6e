// Package docstore is the remote document store the storefront talks to:
// named collections of schemaless JSON documents addressed by id.
package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Document 代表集合中的一筆文件，Data 不含 id
type Document struct {
	ID        string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows a List call. The zero value lists the whole collection
// oldest first.
type Filter struct {
	Field       string
	Equals      string
	NewestFirst bool
}

type Store interface {
	List(ctx context.Context, collection string, filter Filter) ([]*Document, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Create stores data under a new generated id.
	Create(ctx context.Context, collection string, data map[string]any) (*Document, error)
	// Set writes the document at id, replacing it unless merge is true.
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	// Patch merges top-level fields into an existing document.
	Patch(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
}

// Timestamps merges the store-maintained timestamps into a copy of the
// document data, formatted the same way models encode them.
func (d *Document) Timestamps() map[string]any {
	out := make(map[string]any, len(d.Data)+2)
	for k, v := range d.Data {
		out[k] = v
	}
	if !d.CreatedAt.IsZero() {
		out["createdAt"] = d.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !d.UpdatedAt.IsZero() {
		out["updatedAt"] = d.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}
