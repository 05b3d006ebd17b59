package app

import (
	"context"
	"fmt"
	"time"

	"doubledutch-sync/internal/docstore"
	"doubledutch-sync/internal/domain"
)

// DateLayout is the ISO calendar date used for lastReminderDate.
const DateLayout = "2006-01-02"

// Today formats now as a UTC calendar date.
func Today(now time.Time) string {
	return now.UTC().Format(DateLayout)
}

// ReminderDue reports whether the daily prompt should show. An absent last
// date ("") always prompts.
func ReminderDue(lastReminderDate, today string) bool {
	return lastReminderDate != today
}

// ReminderDue reports whether this session should show the daily prompt.
func (s *Session) ReminderDue() bool {
	st := s.state.Snapshot()
	if st.Identity == "" || !st.ProfileLoaded {
		return false
	}
	today := Today(s.svc.now())

	s.mu.Lock()
	dismissed := s.dismissedOn == today
	s.mu.Unlock()
	return !dismissed && ReminderDue(st.Profile.LastReminderDate, today)
}

// DismissReminder hides today's prompt for this session without persisting.
func (s *Session) DismissReminder() {
	today := Today(s.svc.now())
	s.mu.Lock()
	s.dismissedOn = today
	s.mu.Unlock()
}

// AcknowledgeReminder persists today as lastReminderDate. On failure the
// prompt stays due.
func (s *Session) AcknowledgeReminder(ctx context.Context) error {
	st := s.state.Snapshot()
	if st.Identity == "" || s.svc.docs == nil {
		return domain.ErrNotReady
	}
	today := Today(s.svc.now())
	err := s.svc.docs.UpdateFields(ctx, ProfilePath(s.svc.appID, st.Identity), docstore.Fields{
		"lastReminderDate": today,
	})
	if err != nil {
		s.logger.Error("acknowledging reminder failed", "identity", st.Identity, "error", err)
		return fmt.Errorf("acknowledge reminder: %w", err)
	}
	// hide right away instead of waiting for the profile snapshot
	s.mu.Lock()
	s.dismissedOn = today
	s.mu.Unlock()
	return nil
}
