package app

import (
	"encoding/json"
	"math"

	"doubledutch-sync/internal/docstore"
	"doubledutch-sync/internal/domain"
)

// Remote layout, namespaced per tenant (app ID).
func ProfilePath(appID, identity string) string {
	return docstore.Join("artifacts", appID, "users", identity, "profiles", "self")
}

func LeaderboardPath(appID string) string {
	return docstore.Join("artifacts", appID, "public", "data", "leaderboard")
}

func LeaderboardEntryPath(appID, identity string) string {
	return docstore.Join(LeaderboardPath(appID), identity)
}

// NormalizeProfile turns an untyped profile document into a UserProfile,
// applying defaults for missing or malformed fields.
func NormalizeProfile(fields docstore.Fields) domain.UserProfile {
	p := domain.DefaultProfile()
	if xp, ok := toInt(fields["xp"]); ok && xp > 0 {
		p.XP = int(xp)
	}
	if avatar, ok := fields["avatar"].(string); ok && avatar != "" {
		p.Avatar = avatar
	}
	if date, ok := fields["lastReminderDate"].(string); ok {
		p.LastReminderDate = date
	}
	if raw, ok := asMap(fields["levelProgress"]); ok {
		for levelID, v := range raw {
			entry, ok := asMap(v)
			if !ok {
				continue
			}
			completed, _ := entry["completed"].(bool)
			ts, _ := toInt(entry["timestamp"])
			p.LevelProgress[levelID] = domain.LevelProgress{Completed: completed, Timestamp: ts}
		}
	}
	return p
}

// profileFields is the full document written when initializing a profile.
func profileFields(p domain.UserProfile) docstore.Fields {
	var lastReminder any
	if p.LastReminderDate != "" {
		lastReminder = p.LastReminderDate
	}
	return docstore.Fields{
		"xp":               p.XP,
		"levelProgress":    progressFields(p.LevelProgress),
		"avatar":           p.Avatar,
		"lastReminderDate": lastReminder,
	}
}

func progressFields(progress map[string]domain.LevelProgress) map[string]any {
	out := make(map[string]any, len(progress))
	for levelID, lp := range progress {
		out[levelID] = map[string]any{"completed": lp.Completed, "timestamp": lp.Timestamp}
	}
	return out
}

// leaderboardEntry projects a leaderboard document into an entry.
func leaderboardEntry(doc docstore.Document) domain.LeaderboardEntry {
	entry := domain.LeaderboardEntry{ID: doc.ID, Avatar: domain.DefaultAvatar}
	if xp, ok := toInt(doc.Fields["xp"]); ok && xp > 0 {
		entry.XP = int(xp)
	}
	if avatar, ok := doc.Fields["avatar"].(string); ok && avatar != "" {
		entry.Avatar = avatar
	}
	return entry
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case docstore.Fields:
		return m, true
	}
	return nil, false
}

// toInt accepts the numeric shapes documents come back with (Go ints from the
// in-memory store, float64 or json.Number after a JSON round trip).
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
