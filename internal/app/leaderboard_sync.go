package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"doubledutch-sync/internal/docstore"
	"doubledutch-sync/internal/domain"
)

// DefaultLeaderboardLimit is the size of the leaderboard window.
const DefaultLeaderboardLimit = 10

// LeaderboardSync mirrors the shared leaderboard collection into the State Store.
type LeaderboardSync struct {
	docs     docstore.Store
	state    *StateStore
	identity string
	path     string
	limit    int
	logger   *slog.Logger
}

func NewLeaderboardSync(docs docstore.Store, state *StateStore, appID, identity string, limit int, logger *slog.Logger) *LeaderboardSync {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	path := LeaderboardPath(appID)
	return &LeaderboardSync{
		docs:     docs,
		state:    state,
		identity: identity,
		path:     path,
		limit:    limit,
		logger:   logger.With("sync", "leaderboard", "identity", identity, "path", path),
	}
}

func (l *LeaderboardSync) Run(ctx context.Context) error {
	sub, err := l.docs.WatchCollection(ctx, l.path, l.limit)
	if err != nil {
		l.logger.Error("leaderboard subscription failed", "error", err)
		return fmt.Errorf("watch leaderboard: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if ev.Err != nil {
				// stale is acceptable: keep the last published view
				l.logger.Warn("leaderboard snapshot failed", "error", ev.Err)
				continue
			}
			if err := l.state.DispatchFor(l.identity, SetLeaderboard(SortLeaderboard(ev.Value))); err != nil {
				l.logger.Debug("dropped leaderboard update", "error", err)
			}
		}
	}
}

// SortLeaderboard projects a collection snapshot into entries ordered by XP
// descending; equal XP keeps the store's order.
func SortLeaderboard(snap docstore.CollectionSnapshot) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		entries = append(entries, leaderboardEntry(doc))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].XP > entries[j].XP
	})
	return entries
}
