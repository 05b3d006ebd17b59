package app

import (
	"errors"
	"fmt"
	"sync"

	"doubledutch-sync/internal/domain"
)

// ErrStaleListener is returned by DispatchFor once the identity has changed.
var ErrStaleListener = errors.New("listener belongs to a previous identity")

// ActionType names a State Store transition.
type ActionType string

const (
	ActionSetIdentity    ActionType = "set-identity"
	ActionSetProfile     ActionType = "set-profile"
	ActionSetLeaderboard ActionType = "set-leaderboard"
	ActionSetLoading     ActionType = "set-loading"
)

// Action is a transition request. Only the field matching Type is read.
type Action struct {
	Type        ActionType
	Identity    string
	Profile     domain.UserProfile
	Leaderboard []domain.LeaderboardEntry
	Loading     bool
}

func SetIdentity(id string) Action { return Action{Type: ActionSetIdentity, Identity: id} }

func SetProfile(p domain.UserProfile) Action { return Action{Type: ActionSetProfile, Profile: p} }

func SetLeaderboard(entries []domain.LeaderboardEntry) Action {
	return Action{Type: ActionSetLeaderboard, Leaderboard: entries}
}

func SetLoading(loading bool) Action { return Action{Type: ActionSetLoading, Loading: loading} }

// State is the render-ready application state.
type State struct {
	Identity      string
	Profile       domain.UserProfile
	ProfileLoaded bool
	Leaderboard   []domain.LeaderboardEntry
	Loading       bool
}

func initialState() State {
	return State{Profile: domain.DefaultProfile(), Loading: true}
}

func (s State) clone() State {
	s.Profile = s.Profile.Clone()
	s.Leaderboard = append([]domain.LeaderboardEntry(nil), s.Leaderboard...)
	return s
}

// StateStore is the single authoritative state container. Transitions are
// serialized and every applied transition is published to subscribers.
type StateStore struct {
	mu          sync.RWMutex
	state       State
	subscribers map[chan State]struct{}
}

func NewStateStore() *StateStore {
	return &StateStore{
		state:       initialState(),
		subscribers: make(map[chan State]struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (s *StateStore) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Dispatch applies a transition.
func (s *StateStore) Dispatch(a Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(a)
}

// DispatchFor applies a transition only while identity is still the live
// identity, so listeners that outlive a sign-out cannot publish stale data.
func (s *StateStore) DispatchFor(identity string, a Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Identity != identity {
		return fmt.Errorf("%s for %q: %w", a.Type, identity, ErrStaleListener)
	}
	return s.applyLocked(a)
}

func (s *StateStore) applyLocked(a Action) error {
	next, err := reduce(s.state, a)
	if err != nil {
		return err
	}
	s.state = next
	s.broadcastLocked()
	return nil
}

// Subscribe returns a channel that always holds the most recent state.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *StateStore) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.state.clone()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *StateStore) broadcastLocked() {
	for ch := range s.subscribers {
		snapshot := s.state.clone()
		select {
		case ch <- snapshot:
		default:
			// drop the stale pending state so slow readers only see the latest
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func reduce(state State, a Action) (State, error) {
	switch a.Type {
	case ActionSetLoading:
		state.Loading = a.Loading
		return state, nil
	case ActionSetIdentity:
		if a.Identity != state.Identity {
			state = initialState()
			state.Identity = a.Identity
			state.Loading = a.Identity != ""
		}
		return state, nil
	}

	if state.Identity == "" {
		return state, fmt.Errorf("%s: %w", a.Type, domain.ErrIdentityMissing)
	}

	switch a.Type {
	case ActionSetProfile:
		state.Profile = a.Profile.Clone()
		state.ProfileLoaded = true
		state.Loading = false
	case ActionSetLeaderboard:
		entries := make([]domain.LeaderboardEntry, len(a.Leaderboard))
		for i, entry := range a.Leaderboard {
			entry.IsCurrentUser = entry.ID == state.Identity
			entries[i] = entry
		}
		state.Leaderboard = entries
	default:
		return state, fmt.Errorf("unknown action %q", a.Type)
	}
	return state, nil
}
