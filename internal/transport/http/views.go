package http

import (
	"doubledutch-sync/internal/app"
	"doubledutch-sync/internal/course"
	"doubledutch-sync/internal/quiz"
)

const currentUserName = "You (Me)"

type levelView struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Theme         string `json:"theme"`
	XPReward      int    `json:"xpReward"`
	QuestionCount int    `json:"questionCount"`
	Unlocked      bool   `json:"unlocked"`
	Completed     bool   `json:"completed"`
}

type leaderboardRow struct {
	Rank          int    `json:"rank"`
	ID            string `json:"id"`
	Name          string `json:"name"`
	XP            int    `json:"xp"`
	Avatar        string `json:"avatar"`
	Symbol        string `json:"symbol"`
	IsCurrentUser bool   `json:"isCurrentUser"`
}

type stateView struct {
	Identity         string           `json:"identity"`
	Loading          bool             `json:"loading"`
	XP               int              `json:"xp"`
	Avatar           string           `json:"avatar"`
	AvatarSymbol     string           `json:"avatarSymbol"`
	CompletedLessons int              `json:"completedLessons"`
	LastReminderDate string           `json:"lastReminderDate,omitempty"`
	ReminderDue      bool             `json:"reminderDue"`
	Levels           []levelView      `json:"levels"`
	Leaderboard      []leaderboardRow `json:"leaderboard"`
}

func newStateView(st app.State, c course.Course, reminderDue bool) stateView {
	v := stateView{
		Identity:         st.Identity,
		Loading:          st.Loading,
		XP:               st.Profile.XP,
		Avatar:           st.Profile.Avatar,
		AvatarSymbol:     c.Symbol(st.Profile.Avatar),
		CompletedLessons: st.Profile.CompletedCount(),
		LastReminderDate: st.Profile.LastReminderDate,
		ReminderDue:      reminderDue,
		Levels:           make([]levelView, 0, len(c.Levels)),
		Leaderboard:      make([]leaderboardRow, 0, len(st.Leaderboard)),
	}
	for _, level := range c.Levels {
		v.Levels = append(v.Levels, levelView{
			ID:            level.ID,
			Title:         level.Title,
			Theme:         level.Theme,
			XPReward:      level.XPReward,
			QuestionCount: len(level.Quiz),
			Unlocked:      c.Unlocked(level.ID, st.Profile),
			Completed:     st.Profile.Completed(level.ID),
		})
	}
	for i, entry := range st.Leaderboard {
		v.Leaderboard = append(v.Leaderboard, leaderboardRow{
			Rank:          i + 1,
			ID:            entry.ID,
			Name:          displayName(entry.ID, entry.IsCurrentUser),
			XP:            entry.XP,
			Avatar:        entry.Avatar,
			Symbol:        c.Symbol(entry.Avatar),
			IsCurrentUser: entry.IsCurrentUser,
		})
	}
	return v
}

func displayName(id string, current bool) string {
	if current {
		return currentUserName
	}
	if len(id) > 8 {
		id = id[:8]
	}
	return "Learner " + id + "..."
}

type questionView struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type quizView struct {
	LevelID              string        `json:"levelId"`
	Title                string        `json:"title"`
	Status               quiz.Status   `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	Total                int           `json:"total"`
	Score                int           `json:"score"`
	ShowResult           bool          `json:"showResult"`
	Accuracy             int           `json:"accuracy"`
	XPReward             int           `json:"xpReward"`
	Claiming             bool          `json:"claiming"`
	ClaimError           string        `json:"claimError,omitempty"`
	Question             *questionView `json:"question,omitempty"`
	LastCorrect          *bool         `json:"lastCorrect,omitempty"`
}

func newQuizView(st quiz.State, lastCorrect *bool) quizView {
	v := quizView{
		LevelID:              st.Level.ID,
		Title:                st.Level.Title,
		Status:               st.Status,
		CurrentQuestionIndex: st.CurrentQuestionIndex,
		Total:                st.Total,
		Score:                st.Score,
		ShowResult:           st.ShowResult,
		Accuracy:             st.Accuracy(),
		XPReward:             st.Level.XPReward,
		Claiming:             st.Claiming,
		LastCorrect:          lastCorrect,
	}
	if st.ClaimErr != nil {
		v.ClaimError = st.ClaimErr.Error()
	}
	if q, ok := st.CurrentQuestion(); ok {
		v.Question = &questionView{Question: q.Question, Options: q.Options}
	}
	return v
}
