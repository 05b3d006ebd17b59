package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"doubledutch-sync/internal/app"
	"doubledutch-sync/internal/identity"
	"doubledutch-sync/internal/quiz"
	"github.com/gorilla/websocket"
)

// WSHandler serves one learner session per websocket connection.
type WSHandler struct {
	service  *app.Service
	logger   *slog.Logger
	upgrader websocket.Upgrader

	baseCtx   context.Context
	cancelAll context.CancelFunc
	conns     sync.WaitGroup
}

func NewWSHandler(service *app.Service, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		baseCtx:   ctx,
		cancelAll: cancel,
	}
}

// Wait closes every open connection and blocks until their sessions are torn down.
func (h *WSHandler) Wait() {
	h.cancelAll()
	h.conns.Wait()
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startQuizPayload struct {
	LevelID string `json:"levelId"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type commitPayload struct {
	LevelID  string `json:"levelId"`
	XPReward int    `json:"xpReward"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type resultPayload struct {
	OK      bool   `json:"ok"`
	LevelID string `json:"levelId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// connection holds the per-socket session and the active quiz, if any.
type connection struct {
	h       *WSHandler
	ctx     context.Context
	session *app.Session
	logger  *slog.Logger

	send       chan outboundMessage
	writerDone chan struct{}

	mu      sync.Mutex
	machine *quiz.Machine
	claims  sync.WaitGroup
}

// ServeWS upgrades the request and runs a learner session until the socket closes.
// Without a userId query parameter an anonymous identity is minted.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	var provider identity.Provider
	if userID := r.URL.Query().Get("userId"); userID != "" {
		provider = identity.NewStatic(userID)
	} else {
		provider = identity.NewAnonymous()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.conns.Add(1)
	defer h.conns.Done()

	ctx, cancel := context.WithCancel(h.baseCtx)
	defer cancel()
	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	c := &connection{
		h:          h,
		ctx:        ctx,
		session:    h.service.NewSession(),
		logger:     h.logger,
		send:       make(chan outboundMessage, 16),
		writerDone: make(chan struct{}),
	}

	updates, unsubscribe := c.session.State().Subscribe()
	defer unsubscribe()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := c.session.Run(ctx, provider.Identities(ctx)); err != nil {
			c.emit("error", errorPayload{Message: err.Error()})
		}
	}()

	closeSignals := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(c.writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				c.logger.Debug("ws write error", "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case st, ok := <-updates:
				if !ok {
					return
				}
				c.emitState(st)
			case <-closeSignals:
				return
			}
		}
	}()

	c.emitState(c.session.State().Snapshot())

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		c.handle(inbound)
	}

	cancel()
	<-runDone
	c.claims.Wait()
	close(closeSignals)
	<-updatesDone
	close(c.send)
	<-c.writerDone
}

func (c *connection) handle(in inboundMessage) {
	switch in.Type {
	case "startQuiz":
		var p startQuizPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			c.fail("invalid startQuiz payload")
			return
		}
		m, err := c.session.StartQuiz(p.LevelID)
		if err != nil {
			c.fail(err.Error())
			return
		}
		c.mu.Lock()
		if c.machine != nil {
			c.machine.Exit()
		}
		c.machine = m
		c.mu.Unlock()
		c.emitQuiz(m, nil)
	case "answer":
		var p answerPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			c.fail("invalid answer payload")
			return
		}
		m := c.current()
		if m == nil {
			c.fail("no active quiz")
			return
		}
		correct, ok := m.Answer(p.Option)
		if !ok {
			c.fail("no question awaiting an answer")
			return
		}
		c.emitQuiz(m, &correct)
	case "retry":
		m := c.current()
		if m == nil {
			c.fail("no active quiz")
			return
		}
		if err := m.Retry(); err != nil {
			c.fail(err.Error())
			return
		}
		c.emitQuiz(m, nil)
	case "exit":
		c.mu.Lock()
		m := c.machine
		c.machine = nil
		c.mu.Unlock()
		if m != nil {
			m.Exit()
			c.emitQuiz(m, nil)
		}
	case "claim":
		m := c.current()
		if m == nil {
			c.fail("no active quiz")
			return
		}
		c.claim(m)
	case "commit":
		var p commitPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			c.fail("invalid commit payload")
			return
		}
		c.claims.Add(1)
		go func() {
			defer c.claims.Done()
			err := c.session.Commit(context.WithoutCancel(c.ctx), p.LevelID, p.XPReward)
			c.emit("claimResult", result(p.LevelID, err))
		}()
	case "ackReminder":
		err := c.session.AcknowledgeReminder(c.ctx)
		c.emit("reminderResult", result("", err))
		c.emitState(c.session.State().Snapshot())
	case "dismissReminder":
		c.session.DismissReminder()
		c.emitState(c.session.State().Snapshot())
	default:
		c.fail("unsupported message type")
	}
}

// claim commits without blocking the read loop. The commit outlives the
// socket so a disconnect cannot leave profile and leaderboard half-written.
func (c *connection) claim(m *quiz.Machine) {
	c.claims.Add(1)
	go func() {
		defer c.claims.Done()
		levelID := m.State().Level.ID
		err := m.Claim(context.WithoutCancel(c.ctx), c.session)
		if errors.Is(err, quiz.ErrNotComplete) || errors.Is(err, quiz.ErrNoQuiz) || errors.Is(err, quiz.ErrClaimInFlight) {
			c.fail(err.Error())
			return
		}
		c.emit("claimResult", result(levelID, err))
		if c.current() != m {
			return
		}
		if err == nil {
			c.mu.Lock()
			if c.machine == m {
				c.machine = nil
			}
			c.mu.Unlock()
		}
		c.emitQuiz(m, nil)
	}()
}

func (c *connection) current() *quiz.Machine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine
}

func (c *connection) emitState(st app.State) {
	c.emit("state", newStateView(st, c.h.service.Course(), c.session.ReminderDue()))
}

func (c *connection) emitQuiz(m *quiz.Machine, lastCorrect *bool) {
	c.emit("quiz", newQuizView(m.State(), lastCorrect))
}

func (c *connection) fail(msg string) {
	c.emit("error", errorPayload{Message: msg})
}

// emit never blocks on a dead writer.
func (c *connection) emit(typ string, payload any) {
	select {
	case c.send <- outboundMessage{Type: typ, Payload: payload}:
	case <-c.writerDone:
	}
}

func result(levelID string, err error) resultPayload {
	if err != nil {
		return resultPayload{OK: false, LevelID: levelID, Error: err.Error()}
	}
	return resultPayload{OK: true, LevelID: levelID}
}
