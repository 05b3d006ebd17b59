package domain

// DefaultAvatar is used when a profile has no avatar or an unknown one.
const DefaultAvatar = "bear"

// LevelProgress records the completion of a single level.
type LevelProgress struct {
	Completed bool  `json:"completed"`
	Timestamp int64 `json:"timestamp"` // unix millis
}

// UserProfile is the authoritative per-learner document.
type UserProfile struct {
	XP               int                      `json:"xp"`
	LevelProgress    map[string]LevelProgress `json:"levelProgress"`
	Avatar           string                   `json:"avatar"`
	LastReminderDate string                   `json:"lastReminderDate,omitempty"` // empty when absent
}

// DefaultProfile is the profile written for learners without a document.
func DefaultProfile() UserProfile {
	return UserProfile{
		XP:            0,
		LevelProgress: map[string]LevelProgress{},
		Avatar:        DefaultAvatar,
	}
}

// Completed reports whether levelID has been credited.
func (p UserProfile) Completed(levelID string) bool {
	return p.LevelProgress[levelID].Completed
}

// CompletedCount returns how many levels are completed.
func (p UserProfile) CompletedCount() int {
	n := 0
	for _, lp := range p.LevelProgress {
		if lp.Completed {
			n++
		}
	}
	return n
}

// Clone returns a copy whose LevelProgress map is not shared.
func (p UserProfile) Clone() UserProfile {
	progress := make(map[string]LevelProgress, len(p.LevelProgress))
	for k, v := range p.LevelProgress {
		progress[k] = v
	}
	p.LevelProgress = progress
	return p
}

// LeaderboardEntry is the projected XP of one learner.
type LeaderboardEntry struct {
	ID            string `json:"id"`
	XP            int    `json:"xp"`
	Avatar        string `json:"avatar"`
	IsCurrentUser bool   `json:"isCurrentUser"`
}

// VocabularyItem is one row of a lesson's word list.
type VocabularyItem struct {
	Dutch     string `json:"dutch" yaml:"dutch"`
	Afrikaans string `json:"afrikaans" yaml:"afrikaans"`
	English   string `json:"english" yaml:"english"`
}

// Question is a multiple-choice question; Answer holds the correct option text.
type Question struct {
	Question string   `json:"question" yaml:"question"`
	Options  []string `json:"options" yaml:"options"`
	Answer   string   `json:"answer" yaml:"answer"`
}

// CourseLevel is static course content. Only ID, XPReward and Quiz matter to the
// progress engine; the remaining lesson content is carried through opaquely.
type CourseLevel struct {
	ID         string           `json:"id" yaml:"id"`
	Title      string           `json:"title" yaml:"title"`
	Theme      string           `json:"theme" yaml:"theme"`
	XPReward   int              `json:"xpReward" yaml:"xpReward"`
	Vocabulary []VocabularyItem `json:"vocabulary" yaml:"vocabulary"`
	Quiz       []Question       `json:"quiz" yaml:"quiz"`
	Extras     map[string]any   `json:"extras,omitempty" yaml:"extras,omitempty"`
}
