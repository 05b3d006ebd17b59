// Package docstore defines the remote document store the progress engine syncs
// against: point reads with live snapshots, collection snapshots, partial
// updates and merge-upserts over hierarchical slash-separated paths.
package docstore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNotFound is returned by UpdateFields/Update when the document is absent.
var ErrNotFound = errors.New("document not found")

// Fields is the untyped content of a document.
type Fields map[string]any

// Snapshot is the state of a single document at a point in time.
type Snapshot struct {
	Path   string
	Exists bool
	Fields Fields
}

// Document is one member of a collection snapshot.
type Document struct {
	ID     string
	Fields Fields
}

// CollectionSnapshot lists the direct children of a collection path.
type CollectionSnapshot struct {
	Path string
	Docs []Document
}

// Event carries either a snapshot or a subscription failure.
type Event[T any] struct {
	Value T
	Err   error
}

// UpdateFunc receives the current document and returns the partial fields to
// write, or nil to skip the write. It may be invoked more than once when the
// store retries on a conflicting concurrent write.
type UpdateFunc func(current Snapshot) (Fields, error)

// Store is the remote document store.
type Store interface {
	Watch(ctx context.Context, path string) (*Subscription[Snapshot], error)
	WatchCollection(ctx context.Context, path string, limit int) (*Subscription[CollectionSnapshot], error)
	UpsertMerge(ctx context.Context, path string, fields Fields) error
	// Create writes fields only when no document exists at path and reports
	// whether it did. An existing document is left untouched.
	Create(ctx context.Context, path string, fields Fields) (bool, error)
	UpdateFields(ctx context.Context, path string, fields Fields) error
	Update(ctx context.Context, path string, fn UpdateFunc) error
}

// Subscription is a live stream of snapshots. C is closed after Close.
type Subscription[T any] struct {
	C    <-chan Event[T]
	stop func()
	once sync.Once
}

func NewSubscription[T any](c <-chan Event[T], stop func()) *Subscription[T] {
	return &Subscription[T]{C: c, stop: stop}
}

// Close releases the listener. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split returns the parent collection path and the document ID of path.
func Split(path string) (parent, id string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// Merge returns dst with the top-level keys of src applied over it.
func Merge(dst, src Fields) Fields {
	out := make(Fields, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}
