package app

import (
	"context"
	"log/slog"
	"sync"

	"doubledutch-sync/internal/domain"
	"doubledutch-sync/internal/quiz"
	"golang.org/x/sync/errgroup"
)

// Session is one learner's view of the engine: it owns the State Store and
// runs Profile Sync and Leaderboard Sync for the current identity.
type Session struct {
	svc    *Service
	state  *StateStore
	logger *slog.Logger

	mu          sync.Mutex
	dismissedOn string
}

// State exposes the State Store to the presentation layer.
func (s *Session) State() *StateStore {
	return s.state
}

// Run follows the identity stream. Each identity gets fresh subscriptions;
// the previous ones are torn down before the new identity is published, and
// an empty identity (sign-out) only tears down. Run returns when ctx is done
// or identities is closed, leaving no listener behind.
func (s *Session) Run(ctx context.Context, identities <-chan string) error {
	if s.svc.docs == nil {
		s.logger.Error("document store not configured, progress sync disabled")
		_ = s.state.Dispatch(SetLoading(false))
		return domain.ErrStoreUnavailable
	}

	var stop func()
	defer func() {
		if stop != nil {
			stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-identities:
			if !ok {
				return nil
			}
			if stop != nil {
				stop()
				stop = nil
			}
			_ = s.state.Dispatch(SetIdentity(id))
			if id == "" {
				s.logger.Info("identity cleared")
				continue
			}
			s.logger.Info("identity established", "identity", id)
			stop = s.startSync(ctx, id)
		}
	}
}

func (s *Session) startSync(parent context.Context, identity string) func() {
	ctx, cancel := context.WithCancel(parent)
	profile := NewProfileSync(s.svc.docs, s.state, s.svc.appID, identity, s.logger)
	leaderboard := NewLeaderboardSync(s.svc.docs, s.state, s.svc.appID, identity, s.svc.leaderboardLimit, s.logger)

	// independent read paths: one failing must not cancel the other
	var g errgroup.Group
	g.Go(func() error { return profile.Run(ctx) })
	g.Go(func() error { return leaderboard.Run(ctx) })

	return func() {
		cancel()
		if err := g.Wait(); err != nil {
			s.logger.Warn("sync ended with error", "identity", identity, "error", err)
		}
	}
}

// StartQuiz begins a quiz for an unlocked level.
func (s *Session) StartQuiz(levelID string) (*quiz.Machine, error) {
	level, err := s.svc.course.Level(levelID)
	if err != nil {
		return nil, err
	}
	st := s.state.Snapshot()
	if !s.svc.course.Unlocked(levelID, st.Profile) {
		return nil, domain.ErrLevelLocked
	}
	return quiz.New(level), nil
}
