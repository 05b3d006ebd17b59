package domain

import "errors"

var (
	// ErrNotReady is returned when identity or profile have not been loaded yet.
	ErrNotReady = errors.New("learner identity or profile not loaded")
	// ErrIdentityMissing is returned when a transition requires an established identity.
	ErrIdentityMissing = errors.New("learner identity not established")
	// ErrLevelNotFound indicates a level ID is not part of the course.
	ErrLevelNotFound = errors.New("level not found")
	// ErrLevelLocked is returned when starting a level that is not unlocked yet.
	ErrLevelLocked = errors.New("level is locked")
	// ErrInvalidReward rejects rewards that are negative, differ from the
	// level's reward, or would overflow the learner's XP.
	ErrInvalidReward = errors.New("invalid xp reward")
)

// ErrStoreUnavailable is reported when no document store is configured.
var ErrStoreUnavailable = errors.New("document store not configured")
