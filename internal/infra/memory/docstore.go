package memory

import (
	"context"
	"sort"
	"sync"

	"doubledutch-sync/internal/docstore"
)

// DocStore is an in-process implementation of docstore.Store. Watchers get the
// latest snapshot only; intermediate snapshots are dropped for slow readers.
type DocStore struct {
	mu          sync.Mutex
	docs        map[string]docstore.Fields
	watchers    map[string]map[chan docstore.Event[docstore.Snapshot]]struct{}
	colWatchers map[string]map[*collectionWatcher]struct{}
}

type collectionWatcher struct {
	ch    chan docstore.Event[docstore.CollectionSnapshot]
	limit int
}

func NewDocStore() *DocStore {
	return &DocStore{
		docs:        make(map[string]docstore.Fields),
		watchers:    make(map[string]map[chan docstore.Event[docstore.Snapshot]]struct{}),
		colWatchers: make(map[string]map[*collectionWatcher]struct{}),
	}
}

func (s *DocStore) Watch(ctx context.Context, path string) (*docstore.Subscription[docstore.Snapshot], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan docstore.Event[docstore.Snapshot], 1)

	s.mu.Lock()
	if s.watchers[path] == nil {
		s.watchers[path] = make(map[chan docstore.Event[docstore.Snapshot]]struct{})
	}
	s.watchers[path][ch] = struct{}{}
	ch <- docstore.Event[docstore.Snapshot]{Value: s.snapshotLocked(path)}
	s.mu.Unlock()

	sub := docstore.NewSubscription[docstore.Snapshot](ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[path][ch]; ok {
			delete(s.watchers[path], ch)
			close(ch)
		}
	})
	context.AfterFunc(ctx, sub.Close)
	return sub, nil
}

func (s *DocStore) WatchCollection(ctx context.Context, path string, limit int) (*docstore.Subscription[docstore.CollectionSnapshot], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &collectionWatcher{
		ch:    make(chan docstore.Event[docstore.CollectionSnapshot], 1),
		limit: limit,
	}

	s.mu.Lock()
	if s.colWatchers[path] == nil {
		s.colWatchers[path] = make(map[*collectionWatcher]struct{})
	}
	s.colWatchers[path][w] = struct{}{}
	w.ch <- docstore.Event[docstore.CollectionSnapshot]{Value: s.collectionLocked(path, limit)}
	s.mu.Unlock()

	sub := docstore.NewSubscription[docstore.CollectionSnapshot](w.ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.colWatchers[path][w]; ok {
			delete(s.colWatchers[path], w)
			close(w.ch)
		}
	})
	context.AfterFunc(ctx, sub.Close)
	return sub, nil
}

func (s *DocStore) UpsertMerge(ctx context.Context, path string, fields docstore.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLocked(path, docstore.Merge(s.docs[path], cloneFields(fields)))
	return nil
}

func (s *DocStore) Create(ctx context.Context, path string, fields docstore.Fields) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[path]; ok {
		return false, nil
	}
	s.writeLocked(path, cloneFields(fields))
	return true, nil
}

func (s *DocStore) UpdateFields(ctx context.Context, path string, fields docstore.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.docs[path]
	if !ok {
		return docstore.ErrNotFound
	}
	s.writeLocked(path, docstore.Merge(current, cloneFields(fields)))
	return nil
}

// Update runs fn under the store lock, so it must not call back into the store.
func (s *DocStore) Update(ctx context.Context, path string, fn docstore.UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.docs[path]
	if !ok {
		return docstore.ErrNotFound
	}
	fields, err := fn(s.snapshotLocked(path))
	if err != nil {
		return err
	}
	if fields == nil {
		return nil
	}
	s.writeLocked(path, docstore.Merge(current, cloneFields(fields)))
	return nil
}

// Get returns a copy of the document at path (useful for tests/tooling).
func (s *DocStore) Get(path string) (docstore.Fields, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.docs[path]
	if !ok {
		return nil, false
	}
	return cloneFields(fields), true
}

func (s *DocStore) writeLocked(path string, fields docstore.Fields) {
	s.docs[path] = fields

	snap := s.snapshotLocked(path)
	for ch := range s.watchers[path] {
		pushLatest(ch, docstore.Event[docstore.Snapshot]{Value: snap})
	}

	parent, _ := docstore.Split(path)
	for w := range s.colWatchers[parent] {
		pushLatest(w.ch, docstore.Event[docstore.CollectionSnapshot]{Value: s.collectionLocked(parent, w.limit)})
	}
}

func (s *DocStore) snapshotLocked(path string) docstore.Snapshot {
	fields, ok := s.docs[path]
	if !ok {
		return docstore.Snapshot{Path: path}
	}
	return docstore.Snapshot{Path: path, Exists: true, Fields: cloneFields(fields)}
}

// collectionLocked returns direct children of path ordered by document ID.
func (s *DocStore) collectionLocked(path string, limit int) docstore.CollectionSnapshot {
	ids := make([]string, 0)
	for docPath := range s.docs {
		if parent, id := docstore.Split(docPath); parent == path {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	docs := make([]docstore.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, docstore.Document{ID: id, Fields: cloneFields(s.docs[docstore.Join(path, id)])})
	}
	return docstore.CollectionSnapshot{Path: path, Docs: docs}
}

// pushLatest replaces a pending snapshot instead of blocking the writer.
// Callers hold the store lock, so they are the only producer.
func pushLatest[T any](ch chan docstore.Event[T], ev docstore.Event[T]) {
	select {
	case ch <- ev:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- ev
	}
}

func cloneFields(src docstore.Fields) docstore.Fields {
	if src == nil {
		return nil
	}
	out := make(docstore.Fields, len(src))
	for k, v := range src {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case docstore.Fields:
		return cloneFields(val)
	case map[string]any:
		return map[string]any(cloneFields(val))
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	default:
		return v
	}
}
