// Package store defines the document store contract the blog is synchronized
// through, plus the SQLite, S3 and in-memory backends that implement it.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var storeLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	storeLogger = l
}

// Document is one entry of a collection as the store knows it. Fields is the
// raw field set; the store does not interpret or validate it.
type Document struct {
	ID     string
	Fields map[string]any
}

// Event is one emission of a live subscription. Either Docs carries the
// complete, authoritative document set of the collection (in the store's
// arrival order), or Err carries a terminal subscription error. After an
// error event the subscription channel is closed.
type Event struct {
	Docs []Document
	Err  error
}

// Store is the CRUD + subscription contract over namespaced collections.
//
// Subscribe opens a live feed on a collection. The first event is the current
// document set (possibly empty); every later event is again the full set.
// The channel closes when ctx is cancelled or after an error event.
//
// Update overwrites only the fields present in the given map; other fields
// of the document are untouched.
type Store interface {
	Subscribe(ctx context.Context, collection string) (<-chan Event, error)
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	Update(ctx context.Context, doc string, fields map[string]any) error
	Delete(ctx context.Context, doc string) error
	Close() error
}

// SplitDoc splits a document path into its collection and document id.
func SplitDoc(doc string) (collection, id string, err error) {
	i := strings.LastIndex(doc, "/")
	if i <= 0 || i == len(doc)-1 {
		return "", "", fmt.Errorf("malformed document path: %q", doc)
	}
	return doc[:i], doc[i+1:], nil
}
