// Package game sequences turns between a human and an AI move provider.
package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-llm-chess/internal/board"
	"github.com/park285/cheese-llm-chess/internal/obslog"
	"github.com/park285/cheese-llm-chess/internal/provider"
)

type Config struct {
	// StartFEN is the initial position; empty means the standard arrangement.
	StartFEN string
	// AITimeout bounds one AI move request.
	AITimeout time.Duration
}

// Controller owns one game. The human plays the side to move in the start position.
// All board access happens under mu, so the position has a single writer at a time.
type Controller struct {
	id        string
	provider  provider.MoveProvider
	sink      Sink
	logger    *zap.Logger
	aiTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	pending sync.WaitGroup

	mu        sync.Mutex
	idle      *sync.Cond
	board     *board.Board
	humanSide board.Side
	state     State
	outcome   Outcome
	reported  bool
	closed    bool
	lastMove  board.Move
	plies     int
	outbox    []Event
	draining  bool
}

func NewController(mp provider.MoveProvider, sink Sink, cfg Config, logger *zap.Logger) (*Controller, error) {
	if mp == nil {
		return nil, errors.New("move provider is required")
	}
	if logger == nil {
		logger = obslog.L()
	}
	if sink == nil {
		sink = Sinks(nil)
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = DefaultAITimeout
	}

	b := board.New()
	if cfg.StartFEN != "" {
		var err error
		if b, err = board.FromFEN(cfg.StartFEN); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:        uuid.NewString(),
		provider:  mp,
		sink:      sink,
		logger:    logger,
		aiTimeout: cfg.AITimeout,
		ctx:       ctx,
		cancel:    cancel,
		board:     b,
		humanSide: b.Turn(),
		state:     AwaitingHumanMove,
	}
	c.idle = sync.NewCond(&c.mu)
	c.logger = c.logger.With(zap.String("session_id", c.id))

	c.logger.Info("game_started",
		zap.String("provider", mp.Name()),
		zap.String("human_side", string(c.humanSide)),
		zap.String("fen", b.FEN()),
	)

	if status := b.Status(); status.Terminal() {
		c.mu.Lock()
		c.finishLocked(outcomeFor(status), "")
		c.mu.Unlock()
		c.drain()
	}
	return c, nil
}

func (c *Controller) ID() string { return c.id }

// ProposeHumanMove validates and applies a human move given in UCI text. On acceptance the
// AI request is started in the background unless the move ended the game.
func (c *Controller) ProposeHumanMove(text string) Proposal {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return rejected(ErrClosed)
	case c.state == GameOver:
		c.mu.Unlock()
		return rejected(ErrGameOver)
	case c.state == AwaitingAIMove:
		c.mu.Unlock()
		return rejected(ErrNotYourTurn)
	}

	m, err := board.ParseMove(text)
	if err == nil {
		err = c.board.Apply(m)
	}
	if err != nil {
		c.rejectHumanLocked(err)
		c.mu.Unlock()
		c.drain()
		c.logger.Debug("human_move_rejected", zap.String("input", text), zap.Error(err))
		return Proposal{Move: m, Reason: err.Error(), Err: err}
	}

	c.afterMoveLocked(m, c.humanSide)
	startAI := c.state == AwaitingAIMove
	var fen string
	var legal []string
	if startAI {
		fen, legal = c.board.FEN(), c.board.LegalMoveStrings()
		c.pending.Add(1)
	}
	c.mu.Unlock()

	c.logger.Info("human_move_applied", zap.String("move", m.String()))
	c.drain()
	if startAI {
		go c.requestAIMove(fen, legal)
	}
	return Proposal{Accepted: true, Move: m}
}

func (c *Controller) requestAIMove(fen string, legal []string) {
	defer c.pending.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.aiTimeout)
	defer cancel()

	started := time.Now()
	m, err := c.provider.ProposeMove(ctx, fen, legal)
	latency := time.Since(started)

	c.mu.Lock()
	if c.state != AwaitingAIMove {
		c.mu.Unlock()
		return
	}
	switch {
	case err != nil:
		kind := ErrorProvider
		var pe *provider.ParseError
		if errors.As(err, &pe) {
			kind = ErrorParse
		}
		c.logger.Warn("ai_move_failed", zap.String("kind", string(kind)), zap.Duration("latency", latency), zap.Error(err))
		c.abortLocked(kind, err, ErrOpponentFailed)
	default:
		if applyErr := c.board.Apply(m); applyErr != nil {
			kind := ErrorIllegalMove
			if errors.Is(applyErr, board.ErrRulesEngine) {
				kind = ErrorRulesEngine
			}
			c.logger.Warn("ai_move_rejected", zap.String("move", m.String()), zap.Duration("latency", latency), zap.Error(applyErr))
			c.abortLocked(kind, applyErr, ErrOpponentFailed)
			break
		}
		c.logger.Info("ai_move_applied", zap.String("move", m.String()), zap.Duration("latency", latency))
		c.afterMoveLocked(m, c.humanSide.Opponent())
	}
	c.mu.Unlock()
	c.drain()
}

// afterMoveLocked records an applied move and advances the state machine.
func (c *Controller) afterMoveLocked(m board.Move, side board.Side) {
	c.lastMove = m
	c.plies++
	c.queueLocked(Event{Type: EventMoveApplied, Move: m, Side: side, FEN: c.board.FEN()})

	status := c.board.Status()
	if status.Terminal() {
		c.queueLocked(Event{Type: EventStatusChanged, Status: status, FEN: c.board.FEN()})
		c.finishLocked(outcomeFor(status), c.board.Method())
		return
	}
	next := AwaitingHumanMove
	if side == c.humanSide {
		next = AwaitingAIMove
	}
	c.setStateLocked(next)
}

// rejectHumanLocked reports a human move that was not applied. An engine failure ends the game.
func (c *Controller) rejectHumanLocked(err error) {
	if errors.Is(err, board.ErrRulesEngine) {
		c.abortLocked(ErrorRulesEngine, err, ErrEngineFailed)
		return
	}
	c.queueLocked(Event{Type: EventError, ErrorKind: ErrorIllegalMove, Message: err.Error(), FEN: c.board.FEN()})
}

// abortLocked ends the game without a chess result. The position is left as is.
func (c *Controller) abortLocked(kind ErrorKind, cause, reason error) {
	c.queueLocked(Event{Type: EventError, ErrorKind: kind, Message: cause.Error(), FEN: c.board.FEN()})
	c.finishLocked(OutcomeAborted, reason.Error())
}

// finishLocked moves to GameOver and reports the outcome. It reports at most once.
func (c *Controller) finishLocked(outcome Outcome, detail string) {
	if c.reported {
		return
	}
	c.reported = true
	c.outcome = outcome
	c.setStateLocked(GameOver)
	c.queueLocked(Event{
		Type:    EventGameOver,
		Status:  c.board.Status(),
		Outcome: outcome,
		Side:    outcome.Winner(),
		Message: detail,
		FEN:     c.board.FEN(),
	})

	fields := []zap.Field{zap.String("outcome", string(outcome)), zap.Int("plies", c.plies)}
	if detail != "" {
		fields = append(fields, zap.String("detail", detail))
	}
	if code, title := c.board.Opening(); code != "" {
		fields = append(fields, zap.String("eco", code), zap.String("opening", title))
	}
	c.logger.Info("game_finished", fields...)
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.queueLocked(Event{Type: EventStateChanged, State: s, FEN: c.board.FEN()})
}

func (c *Controller) queueLocked(ev Event) {
	ev.SessionID = c.id
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	c.outbox = append(c.outbox, ev)
}

// drain delivers queued events in order. One goroutine drains at a time; others leave their
// events to it, so sinks may call back into the controller.
func (c *Controller) drain() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.outbox) > 0 {
		batch := c.outbox
		c.outbox = nil
		c.mu.Unlock()
		for _, ev := range batch {
			c.sink.Publish(ev)
		}
		c.mu.Lock()
	}
	c.draining = false
	c.idle.Broadcast()
	c.mu.Unlock()
}

// Snapshot returns the current game view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionID:  c.id,
		State:      c.state,
		Status:     c.board.Status(),
		Outcome:    c.outcome,
		FEN:        c.board.FEN(),
		Turn:       c.board.Turn(),
		HumanSide:  c.humanSide,
		LegalMoves: c.board.LegalMoveStrings(),
		LastMove:   c.lastMove,
		Plies:      c.plies,
		Provider:   c.provider.Name(),
	}
}

// Wait blocks until no AI request is outstanding and every queued event has been delivered.
func (c *Controller) Wait() {
	c.pending.Wait()
	c.mu.Lock()
	for c.draining || len(c.outbox) > 0 {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

// Close cancels an outstanding AI request and waits for it to settle. Later proposals are rejected.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.Wait()
	return nil
}
