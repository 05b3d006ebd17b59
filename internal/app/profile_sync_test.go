package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"doubledutch-sync/internal/docstore"
	"doubledutch-sync/internal/domain"
)

func TestProfileInitializedWhenAbsent(t *testing.T) {
	docs := newMemoryStore()
	session := newTestService(t, docs).NewSession()
	startSession(t, session, "u1")

	st := session.State().Snapshot()
	want := domain.DefaultProfile()
	if st.Loading || st.Profile.XP != want.XP || st.Profile.Avatar != "bear" ||
		len(st.Profile.LevelProgress) != 0 || st.Profile.LastReminderDate != "" {
		t.Fatalf("expected default profile, got %+v", st)
	}

	stored, ok := docs.Get(ProfilePath(testAppID, "u1"))
	if !ok {
		t.Fatalf("expected profile document to be created")
	}
	if stored["avatar"] != "bear" || stored["xp"] != 0 || stored["lastReminderDate"] != nil {
		t.Fatalf("unexpected stored profile: %+v", stored)
	}
}

func TestProfileNormalizesExistingDocument(t *testing.T) {
	docs := newMemoryStore()
	err := docs.UpsertMerge(context.Background(), ProfilePath(testAppID, "u1"), docstore.Fields{
		"xp": float64(120),
		"levelProgress": map[string]any{
			"level-1": map[string]any{"completed": true, "timestamp": float64(1700000000000)},
			"broken":  "nope",
		},
		"lastReminderDate": "2026-10-15",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	session := newTestService(t, docs).NewSession()
	startSession(t, session, "u1")

	p := session.State().Snapshot().Profile
	if p.XP != 120 || p.Avatar != "bear" || p.LastReminderDate != "2026-10-15" {
		t.Fatalf("unexpected normalized profile: %+v", p)
	}
	if !p.Completed("level-1") || p.LevelProgress["level-1"].Timestamp != 1700000000000 {
		t.Fatalf("expected level-1 completed, got %+v", p.LevelProgress)
	}
	if _, ok := p.LevelProgress["broken"]; ok {
		t.Fatalf("malformed progress entry must be dropped")
	}
}

func TestProfileFollowsRemoteChanges(t *testing.T) {
	docs := newMemoryStore()
	session := newTestService(t, docs).NewSession()
	startSession(t, session, "u1")

	_ = docs.UpdateFields(context.Background(), ProfilePath(testAppID, "u1"), docstore.Fields{"xp": 70, "avatar": "fox"})
	waitFor(t, "remote change", func() bool {
		p := session.State().Snapshot().Profile
		return p.XP == 70 && p.Avatar == "fox"
	})
}

func TestProfileSubscriptionErrorClearsLoading(t *testing.T) {
	events := make(chan docstore.Event[docstore.Snapshot], 1)
	docs := &faultyStore{Store: newMemoryStore(), profileEvents: events}
	session := newTestService(t, docs).NewSession()

	identities := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = session.Run(ctx, identities) }()
	identities <- "u1"

	waitFor(t, "identity", func() bool { return session.State().Snapshot().Identity == "u1" })
	events <- docstore.Event[docstore.Snapshot]{Err: errors.New("permission denied")}

	waitFor(t, "loading cleared", func() bool { return !session.State().Snapshot().Loading })
	st := session.State().Snapshot()
	if st.ProfileLoaded {
		t.Fatalf("profile must stay unloaded after subscription error")
	}
	if err := session.Commit(context.Background(), "level-1", 50); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("commit without profile must fail, got %v", err)
	}
}

func TestProfileInitFailureClearsLoading(t *testing.T) {
	docs := &faultyStore{Store: newMemoryStore(), createErr: errors.New("unavailable")}
	session := newTestService(t, docs).NewSession()

	identities := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = session.Run(ctx, identities) }()
	identities <- "u1"

	waitFor(t, "loading cleared", func() bool {
		st := session.State().Snapshot()
		return st.Identity == "u1" && !st.Loading
	})
	if session.State().Snapshot().ProfileLoaded {
		t.Fatalf("profile must not be published when init fails")
	}
}

func TestProfileInitDoesNotOverwriteConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryStore()
	events := make(chan docstore.Event[docstore.Snapshot], 1)
	docs := &faultyStore{Store: mem, profileEvents: events}
	session := newTestService(t, docs).NewSession()

	identities := make(chan string, 1)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = session.Run(runCtx, identities) }()
	identities <- "u1"
	waitFor(t, "identity", func() bool { return session.State().Snapshot().Identity == "u1" })

	path := ProfilePath(testAppID, "u1")
	remote := docstore.Fields{
		"xp":            50,
		"levelProgress": map[string]any{"level-1": map[string]any{"completed": true, "timestamp": int64(1)}},
		"avatar":        "fox",
	}
	if err := mem.UpsertMerge(ctx, path, remote); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// the watch reported no document, but another device wrote before the default write
	events <- docstore.Event[docstore.Snapshot]{Value: docstore.Snapshot{Path: path}}
	events <- docstore.Event[docstore.Snapshot]{Value: docstore.Snapshot{Path: path, Exists: true, Fields: remote}}

	waitFor(t, "remote profile", func() bool {
		st := session.State().Snapshot()
		return st.ProfileLoaded && st.Profile.XP == 50
	})
	stored, _ := mem.Get(path)
	if p := NormalizeProfile(stored); p.XP != 50 || !p.Completed("level-1") || p.Avatar != "fox" {
		t.Fatalf("default initialization overwrote the remote profile: %+v", p)
	}
}

func TestNormalizeProfileClampsNegativeXP(t *testing.T) {
	p := NormalizeProfile(docstore.Fields{"xp": -5, "avatar": 3})
	if p.XP != 0 || p.Avatar != "bear" || p.LevelProgress == nil {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestNormalizeProfileKeepsLargeJSONNumbers(t *testing.T) {
	p := NormalizeProfile(docstore.Fields{"xp": json.Number("9007199254740993")})
	if p.XP != 9007199254740993 {
		t.Fatalf("expected exact xp, got %d", p.XP)
	}
}
