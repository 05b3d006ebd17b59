package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"doubledutch-sync/internal/docstore"
	"github.com/redis/go-redis/v9"
)

// maxTxAttempts bounds optimistic-lock retries when a watched key changes mid-transaction.
const maxTxAttempts = 8

// ErrTxConflict is returned when a transactional write keeps losing the race.
var ErrTxConflict = errors.New("document changed concurrently, giving up")

// DocStore implements docstore.Store on Redis.
// Layout:
//
//	SET  doc:{path}            JSON object of the document fields
//	ZADD col:{parent} 0 {id}   collection index, lexicographic by document ID
//	PUBLISH docstore:doc:{path} / docstore:col:{parent} after every write
//
// Watchers subscribe to the change channel and re-read on every notification.
type DocStore struct {
	client *redis.Client
}

func NewDocStore(client *redis.Client) *DocStore {
	return &DocStore{client: client}
}

func (s *DocStore) Watch(ctx context.Context, path string) (*docstore.Subscription[docstore.Snapshot], error) {
	ps := s.client.Subscribe(ctx, docChannel(path))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}
	return stream(ctx, ps, func(ctx context.Context) (docstore.Snapshot, error) {
		return s.get(ctx, path)
	}), nil
}

func (s *DocStore) WatchCollection(ctx context.Context, path string, limit int) (*docstore.Subscription[docstore.CollectionSnapshot], error) {
	ps := s.client.Subscribe(ctx, colChannel(path))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}
	return stream(ctx, ps, func(ctx context.Context) (docstore.CollectionSnapshot, error) {
		return s.collection(ctx, path, limit)
	}), nil
}

func (s *DocStore) UpsertMerge(ctx context.Context, path string, fields docstore.Fields) error {
	return s.write(ctx, path, func(current docstore.Snapshot) (docstore.Fields, error) {
		return fields, nil
	})
}

func (s *DocStore) Create(ctx context.Context, path string, fields docstore.Fields) (bool, error) {
	var created bool
	err := s.write(ctx, path, func(current docstore.Snapshot) (docstore.Fields, error) {
		created = !current.Exists
		if current.Exists {
			return nil, nil
		}
		return fields, nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *DocStore) UpdateFields(ctx context.Context, path string, fields docstore.Fields) error {
	return s.write(ctx, path, func(current docstore.Snapshot) (docstore.Fields, error) {
		if !current.Exists {
			return nil, docstore.ErrNotFound
		}
		return fields, nil
	})
}

func (s *DocStore) Update(ctx context.Context, path string, fn docstore.UpdateFunc) error {
	return s.write(ctx, path, func(current docstore.Snapshot) (docstore.Fields, error) {
		if !current.Exists {
			return nil, docstore.ErrNotFound
		}
		return fn(current)
	})
}

// write merges the fields produced by mutate into the document inside a
// WATCH/MULTI transaction and notifies watchers once the write is committed.
func (s *DocStore) write(ctx context.Context, path string, mutate docstore.UpdateFunc) error {
	key := docKey(path)
	parent, id := docstore.Split(path)

	var wrote bool
	txf := func(tx *redis.Tx) error {
		wrote = false
		current, err := readDoc(ctx, tx, path)
		if err != nil {
			return err
		}
		fields, err := mutate(current)
		if err != nil || fields == nil {
			return err
		}
		data, err := json.Marshal(docstore.Merge(current.Fields, fields))
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, colKey(parent), redis.Z{Score: 0, Member: id})
			return nil
		})
		if err == nil {
			wrote = true
		}
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		if wrote {
			// best-effort: watchers re-read on their next notification anyway
			_ = s.client.Publish(ctx, docChannel(path), id).Err()
			_ = s.client.Publish(ctx, colChannel(parent), id).Err()
		}
		return nil
	}
	return ErrTxConflict
}

func (s *DocStore) get(ctx context.Context, path string) (docstore.Snapshot, error) {
	return readDoc(ctx, s.client, path)
}

func (s *DocStore) collection(ctx context.Context, path string, limit int) (docstore.CollectionSnapshot, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRange(ctx, colKey(path), 0, stop).Result()
	if err != nil {
		return docstore.CollectionSnapshot{}, fmt.Errorf("list %s: %w", path, err)
	}
	snap := docstore.CollectionSnapshot{Path: path, Docs: make([]docstore.Document, 0, len(ids))}
	if len(ids) == 0 {
		return snap, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(docstore.Join(path, id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return docstore.CollectionSnapshot{}, fmt.Errorf("load %s: %w", path, err)
	}
	for i, raw := range values {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		fields, err := decodeFields(str)
		if err != nil {
			return docstore.CollectionSnapshot{}, fmt.Errorf("decode %s/%s: %w", path, ids[i], err)
		}
		snap.Docs = append(snap.Docs, docstore.Document{ID: ids[i], Fields: fields})
	}
	return snap, nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readDoc(ctx context.Context, c getter, path string) (docstore.Snapshot, error) {
	raw, err := c.Get(ctx, docKey(path)).Result()
	if errors.Is(err, redis.Nil) {
		return docstore.Snapshot{Path: path}, nil
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get %s: %w", path, err)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return docstore.Snapshot{Path: path, Exists: true, Fields: fields}, nil
}

// decodeFields keeps numbers as json.Number so integers above 2^53 survive.
func decodeFields(raw string) (docstore.Fields, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	fields := docstore.Fields{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// stream reads once up front and again after every pub/sub notification.
// Closing the subscription cancels the reader and waits for it to exit.
func stream[T any](parent context.Context, ps *redis.PubSub, read func(context.Context) (T, error)) *docstore.Subscription[T] {
	ctx, cancel := context.WithCancel(parent)
	out := make(chan docstore.Event[T], 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			value, err := read(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- docstore.Event[T]{Value: value, Err: err}:
			case <-ctx.Done():
				return
			}

			select {
			case _, ok := <-msgs:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return docstore.NewSubscription[T](out, func() {
		cancel()
		<-done
	})
}

func docKey(path string) string {
	return "doc:" + path
}

func colKey(path string) string {
	return "col:" + path
}

func docChannel(path string) string {
	return "docstore:doc:" + path
}

func colChannel(path string) string {
	return "docstore:col:" + path
}
