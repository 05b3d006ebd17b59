package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"doubledutch-sync/internal/course"
	"doubledutch-sync/internal/docstore"
	"doubledutch-sync/internal/domain"
	"doubledutch-sync/internal/infra/memory"
)

const testAppID = "test-app"

var fixedNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, docs docstore.Store) *Service {
	t.Helper()
	return NewService(docs, sampleCourse(), Options{
		AppID:  testAppID,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  func() time.Time { return fixedNow },
	})
}

// startSession runs the session for identity and waits for the profile to load.
func startSession(t *testing.T, s *Session, identity string) chan<- string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	identities := make(chan string, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx, identities)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	identities <- identity
	waitFor(t, "profile loaded", func() bool {
		st := s.State().Snapshot()
		return st.Identity == identity && st.ProfileLoaded
	})
	return identities
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// faultyStore wraps a store and injects failures per operation.
type faultyStore struct {
	docstore.Store

	mu              sync.Mutex
	updateErr       error
	updateFieldsErr error
	upsertErr       func(path string) error
	createErr       error
	profileEvents   chan docstore.Event[docstore.Snapshot]
}

func (f *faultyStore) Watch(ctx context.Context, path string) (*docstore.Subscription[docstore.Snapshot], error) {
	if f.profileEvents != nil {
		return docstore.NewSubscription[docstore.Snapshot](f.profileEvents, nil), nil
	}
	return f.Store.Watch(ctx, path)
}

func (f *faultyStore) Update(ctx context.Context, path string, fn docstore.UpdateFunc) error {
	f.mu.Lock()
	err := f.updateErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.Update(ctx, path, fn)
}

func (f *faultyStore) UpdateFields(ctx context.Context, path string, fields docstore.Fields) error {
	f.mu.Lock()
	err := f.updateFieldsErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.UpdateFields(ctx, path, fields)
}

func (f *faultyStore) UpsertMerge(ctx context.Context, path string, fields docstore.Fields) error {
	f.mu.Lock()
	fail := f.upsertErr
	f.mu.Unlock()
	if fail != nil {
		if err := fail(path); err != nil {
			return err
		}
	}
	return f.Store.UpsertMerge(ctx, path, fields)
}

func (f *faultyStore) Create(ctx context.Context, path string, fields docstore.Fields) (bool, error) {
	f.mu.Lock()
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.Store.Create(ctx, path, fields)
}

func (f *faultyStore) set(fn func(f *faultyStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func sampleCourse() course.Course {
	return course.Course{
		Levels: []domain.CourseLevel{
			{
				ID:       "level-1",
				Title:    "Greetings",
				XPReward: 50,
				Quiz: []domain.Question{
					{Question: "Hello?", Options: []string{"hallo", "dag"}, Answer: "hallo"},
					{Question: "Thanks?", Options: []string{"dank je", "alsjeblieft"}, Answer: "dank je"},
				},
			},
			{ID: "level-2", Title: "Food", XPReward: 75},
		},
		Avatars: map[string]string{"bear": "B", "fox": "F"},
	}
}

func newMemoryStore() *memory.DocStore {
	return memory.NewDocStore()
}
