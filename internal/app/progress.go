package app

import (
	"context"
	"errors"
	"fmt"
	"math"

	"doubledutch-sync/internal/docstore"
	"doubledutch-sync/internal/domain"
)

// errAlreadyCompleted aborts the profile transaction when the stored document
// already credits the level.
var errAlreadyCompleted = errors.New("level already completed")

// Commit credits levelID with xpReward exactly once. The level must be part of
// the course and xpReward must match its reward. A level that is already
// completed is a successful no-op whatever the reward. The profile write is a
// transactional read-modify-write; the leaderboard projection follows as a
// second write and is not rolled back if it fails.
func (s *Session) Commit(ctx context.Context, levelID string, xpReward int) error {
	if xpReward < 0 {
		return domain.ErrInvalidReward
	}
	level, err := s.svc.course.Level(levelID)
	if err != nil {
		return err
	}
	st := s.state.Snapshot()
	if st.Identity == "" || !st.ProfileLoaded || s.svc.docs == nil {
		return domain.ErrNotReady
	}
	if st.Profile.Completed(levelID) {
		s.logger.Debug("level already completed", "identity", st.Identity, "level", levelID)
		return nil
	}
	if xpReward != level.XPReward {
		return fmt.Errorf("level %q rewards %d xp, got %d: %w", levelID, level.XPReward, xpReward, domain.ErrInvalidReward)
	}

	key := st.Identity + "/" + levelID
	_, err, _ = s.svc.commits.Do(key, func() (interface{}, error) {
		return nil, s.commit(ctx, st.Identity, levelID, xpReward)
	})
	return err
}

func (s *Session) commit(ctx context.Context, identity, levelID string, xpReward int) error {
	logger := s.logger.With("identity", identity, "level", levelID)
	now := s.svc.now().UnixMilli()

	var updated domain.UserProfile
	err := s.svc.docs.Update(ctx, ProfilePath(s.svc.appID, identity), func(cur docstore.Snapshot) (docstore.Fields, error) {
		profile := NormalizeProfile(cur.Fields)
		if profile.Completed(levelID) {
			return nil, errAlreadyCompleted
		}
		if profile.XP > math.MaxInt-xpReward {
			return nil, fmt.Errorf("xp %d + %d overflows: %w", profile.XP, xpReward, domain.ErrInvalidReward)
		}
		profile.LevelProgress[levelID] = domain.LevelProgress{Completed: true, Timestamp: now}
		profile.XP += xpReward
		updated = profile
		return docstore.Fields{
			"xp":            profile.XP,
			"levelProgress": progressFields(profile.LevelProgress),
		}, nil
	})
	if errors.Is(err, errAlreadyCompleted) {
		logger.Debug("level already completed in store")
		return nil
	}
	if err != nil {
		logger.Error("updating profile failed", "error", err)
		return fmt.Errorf("update profile: %w", err)
	}

	err = s.svc.docs.UpsertMerge(ctx, LeaderboardEntryPath(s.svc.appID, identity), docstore.Fields{
		"userId":     identity,
		"xp":         updated.XP,
		"avatar":     updated.Avatar,
		"lastUpdate": now,
	})
	if err != nil {
		logger.Error("updating leaderboard failed, profile is ahead of leaderboard", "error", err)
		return fmt.Errorf("update leaderboard: %w", err)
	}

	logger.Info("level completed", "xp", updated.XP, "reward", xpReward)
	return nil
}
