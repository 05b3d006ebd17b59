package app

import (
	"errors"
	"testing"

	"doubledutch-sync/internal/domain"
)

func TestTransitionsRequireIdentity(t *testing.T) {
	store := NewStateStore()
	if !store.Snapshot().Loading {
		t.Fatalf("expected initial loading state")
	}

	if err := store.Dispatch(SetProfile(domain.DefaultProfile())); !errors.Is(err, domain.ErrIdentityMissing) {
		t.Fatalf("expected ErrIdentityMissing, got %v", err)
	}
	if err := store.Dispatch(SetLeaderboard(nil)); !errors.Is(err, domain.ErrIdentityMissing) {
		t.Fatalf("expected ErrIdentityMissing, got %v", err)
	}
	if err := store.Dispatch(SetLoading(false)); err != nil {
		t.Fatalf("set-loading must be allowed before identity: %v", err)
	}
	if store.Snapshot().Loading {
		t.Fatalf("expected loading cleared")
	}
}

func TestSetProfileClearsLoading(t *testing.T) {
	store := NewStateStore()
	_ = store.Dispatch(SetIdentity("u1"))
	profile := domain.DefaultProfile()
	profile.XP = 30
	if err := store.Dispatch(SetProfile(profile)); err != nil {
		t.Fatalf("set profile: %v", err)
	}
	profile.LevelProgress["leak"] = domain.LevelProgress{Completed: true}

	st := store.Snapshot()
	if st.Loading || !st.ProfileLoaded || st.Profile.XP != 30 {
		t.Fatalf("unexpected state: %+v", st)
	}
	if _, leaked := st.Profile.LevelProgress["leak"]; leaked {
		t.Fatalf("caller mutation leaked into state")
	}
}

func TestIdentityChangeResetsState(t *testing.T) {
	store := NewStateStore()
	_ = store.Dispatch(SetIdentity("u1"))
	_ = store.Dispatch(SetProfile(domain.UserProfile{XP: 10, Avatar: "fox"}))
	_ = store.Dispatch(SetLeaderboard([]domain.LeaderboardEntry{{ID: "u1", XP: 10}}))

	_ = store.Dispatch(SetIdentity("u1"))
	if st := store.Snapshot(); st.Profile.XP != 10 {
		t.Fatalf("same identity must keep state, got %+v", st)
	}

	_ = store.Dispatch(SetIdentity("u2"))
	st := store.Snapshot()
	if st.Identity != "u2" || st.ProfileLoaded || st.Profile.XP != 0 || len(st.Leaderboard) != 0 || !st.Loading {
		t.Fatalf("expected reset state for new identity, got %+v", st)
	}
}

func TestLeaderboardCurrentUserFollowsLiveIdentity(t *testing.T) {
	store := NewStateStore()
	_ = store.Dispatch(SetIdentity("u2"))
	_ = store.Dispatch(SetLeaderboard([]domain.LeaderboardEntry{
		{ID: "u1", XP: 20, IsCurrentUser: true},
		{ID: "u2", XP: 10},
	}))

	current := 0
	for _, entry := range store.Snapshot().Leaderboard {
		if entry.IsCurrentUser {
			current++
			if entry.ID != "u2" {
				t.Fatalf("wrong current user entry: %+v", entry)
			}
		}
	}
	if current != 1 {
		t.Fatalf("expected exactly one current user entry, got %d", current)
	}
}

func TestDispatchForRejectsStaleIdentity(t *testing.T) {
	store := NewStateStore()
	_ = store.Dispatch(SetIdentity("u1"))
	_ = store.Dispatch(SetIdentity("u2"))

	err := store.DispatchFor("u1", SetProfile(domain.UserProfile{XP: 99}))
	if !errors.Is(err, ErrStaleListener) {
		t.Fatalf("expected ErrStaleListener, got %v", err)
	}
	if store.Snapshot().ProfileLoaded {
		t.Fatalf("stale profile must not be applied")
	}
}

func TestSubscribeSeesLatestState(t *testing.T) {
	store := NewStateStore()
	updates, cancel := store.Subscribe()
	defer cancel()

	if initial := <-updates; !initial.Loading {
		t.Fatalf("expected initial loading state")
	}

	_ = store.Dispatch(SetIdentity("u1"))
	_ = store.Dispatch(SetProfile(domain.UserProfile{XP: 5}))

	latest := <-updates
	if latest.Profile.XP != 5 {
		t.Fatalf("expected only the latest state to be pending, got %+v", latest)
	}

	cancel()
	cancel()
	if _, ok := <-updates; ok {
		t.Fatalf("expected closed channel after cancel")
	}
}

func TestUnknownActionRejected(t *testing.T) {
	store := NewStateStore()
	_ = store.Dispatch(SetIdentity("u1"))
	if err := store.Dispatch(Action{Type: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}
