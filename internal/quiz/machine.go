// Package quiz implements the quiz-taking state machine. It knows nothing about
// persistence; claiming the reward goes through a Committer.
package quiz

import (
	"context"
	"errors"
	"math"
	"sync"

	"doubledutch-sync/internal/domain"
)

var (
	// ErrNotComplete is returned when claiming before every question is answered.
	ErrNotComplete = errors.New("quiz not complete")
	// ErrNoQuiz is returned for levels without questions.
	ErrNoQuiz = errors.New("level has no quiz")
	// ErrClaimInFlight is returned while a claim is outstanding.
	ErrClaimInFlight = errors.New("claim already in progress")
	// ErrClosed is returned once the quiz was exited or claimed.
	ErrClosed = errors.New("quiz closed")
)

// Status of a quiz.
type Status string

const (
	StatusInProgress Status = "inProgress"
	StatusComplete   Status = "complete"
	StatusNoQuiz     Status = "noQuiz"
	StatusClosed     Status = "closed"
)

// Committer persists a level completion (the progress commit protocol).
type Committer interface {
	Commit(ctx context.Context, levelID string, xpReward int) error
}

// State is a read-only view of the machine.
type State struct {
	Active               bool
	Level                domain.CourseLevel
	CurrentQuestionIndex int
	Score                int
	Total                int
	ShowResult           bool
	Status               Status
	Claiming             bool
	ClaimErr             error
}

// CurrentQuestion returns the question awaiting an answer, if any.
func (s State) CurrentQuestion() (domain.Question, bool) {
	if s.Status != StatusInProgress || s.CurrentQuestionIndex >= s.Total {
		return domain.Question{}, false
	}
	return s.Level.Quiz[s.CurrentQuestionIndex], true
}

// Accuracy is the rounded percentage of correct answers.
func (s State) Accuracy() int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(float64(s.Score) / float64(s.Total) * 100))
}

// Machine is safe for concurrent use; Claim releases the lock while committing.
type Machine struct {
	mu       sync.Mutex
	level    domain.CourseLevel
	index    int
	score    int
	status   Status
	claiming bool
	claimErr error
}

func New(level domain.CourseLevel) *Machine {
	m := &Machine{level: level}
	m.reset()
	return m
}

func (m *Machine) reset() {
	m.index = 0
	m.score = 0
	m.claimErr = nil
	if len(m.level.Quiz) == 0 {
		m.status = StatusNoQuiz
	} else {
		m.status = StatusInProgress
	}
}

// Answer scores option against the current question and advances. It reports
// whether the answer was correct and whether there was a question to answer.
func (m *Machine) Answer(option string) (correct bool, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusInProgress {
		return false, false
	}

	correct = option == m.level.Quiz[m.index].Answer
	if correct {
		m.score++
	}
	m.index++
	if m.index >= len(m.level.Quiz) {
		m.status = StatusComplete
	}
	return correct, true
}

// Retry restarts the same level from the first question.
func (m *Machine) Retry() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.status == StatusClosed:
		return ErrClosed
	case m.claiming:
		return ErrClaimInFlight
	}
	m.reset()
	return nil
}

// Exit discards the quiz. A claim still in flight completes, but its result
// is no longer applied.
func (m *Machine) Exit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusClosed
}

// Claim commits the level reward. On success the quiz closes; on failure it
// stays complete with ClaimErr set so the learner can claim again.
func (m *Machine) Claim(ctx context.Context, c Committer) error {
	m.mu.Lock()
	switch {
	case m.status == StatusNoQuiz:
		m.mu.Unlock()
		return ErrNoQuiz
	case m.status == StatusClosed:
		m.mu.Unlock()
		return ErrClosed
	case m.status != StatusComplete:
		m.mu.Unlock()
		return ErrNotComplete
	case m.claiming:
		m.mu.Unlock()
		return ErrClaimInFlight
	}
	m.claiming = true
	m.claimErr = nil
	level := m.level
	m.mu.Unlock()

	err := c.Commit(ctx, level.ID, level.XPReward)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.claiming = false
	if m.status != StatusComplete {
		return err
	}
	if err != nil {
		m.claimErr = err
		return err
	}
	m.status = StatusClosed
	return nil
}

// State returns a snapshot of the machine.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Active:               m.status != StatusClosed,
		Level:                m.level,
		CurrentQuestionIndex: m.index,
		Score:                m.score,
		Total:                len(m.level.Quiz),
		ShowResult:           m.status == StatusComplete,
		Status:               m.status,
		Claiming:             m.claiming,
		ClaimErr:             m.claimErr,
	}
}
