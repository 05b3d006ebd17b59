package app

import (
	"log/slog"
	"time"

	"doubledutch-sync/internal/course"
	"doubledutch-sync/internal/docstore"
	"golang.org/x/sync/singleflight"
)

// DefaultAppID namespaces documents when no tenant is configured.
const DefaultAppID = "doubledutch-app"

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	AppID            string
	LeaderboardLimit int
	Logger           *slog.Logger
	// Clock is overridable for deterministic timestamps in tests.
	Clock func() time.Time
}

// Service holds the collaborators shared by every learner session.
type Service struct {
	docs             docstore.Store
	course           course.Course
	appID            string
	leaderboardLimit int
	logger           *slog.Logger
	now              func() time.Time

	// commits collapses concurrent commits of the same identity+level.
	commits singleflight.Group
}

// NewService builds the engine. A nil store is tolerated: sessions then stay
// in a non-loading, no-data state.
func NewService(docs docstore.Store, c course.Course, opts Options) *Service {
	if opts.AppID == "" {
		opts.AppID = DefaultAppID
	}
	if opts.LeaderboardLimit <= 0 {
		opts.LeaderboardLimit = DefaultLeaderboardLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Service{
		docs:             docs,
		course:           c,
		appID:            opts.AppID,
		leaderboardLimit: opts.LeaderboardLimit,
		logger:           opts.Logger,
		now:              opts.Clock,
	}
}

// Course returns the static course content.
func (s *Service) Course() course.Course {
	return s.course
}

// NewSession creates the per-learner engine state.
func (s *Service) NewSession() *Session {
	return &Session{
		svc:    s,
		state:  NewStateStore(),
		logger: s.logger,
	}
}
