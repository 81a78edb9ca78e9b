package game

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-llm-chess/internal/board"
	"github.com/park285/cheese-llm-chess/internal/obslog"
	"github.com/park285/cheese-llm-chess/internal/provider"
)

type providerCall struct {
	fen   string
	legal []string
}

// scriptedProvider answers with canned replies parsed the same way real providers parse them.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	err     error
	gate    chan struct{}
	block   bool
	calls   []providerCall
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) ProposeMove(ctx context.Context, fen string, legal []string) (board.Move, error) {
	p.mu.Lock()
	n := len(p.calls)
	p.calls = append(p.calls, providerCall{fen: fen, legal: append([]string(nil), legal...)})
	p.mu.Unlock()

	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return board.Move{}, &provider.ProviderError{Provider: p.Name(), Kind: provider.FailureCanceled, Err: ctx.Err()}
		}
	}
	if p.block {
		<-ctx.Done()
		return board.Move{}, &provider.ProviderError{Provider: p.Name(), Kind: provider.FailureTimeout, Err: ctx.Err()}
	}
	if p.err != nil {
		return board.Move{}, p.err
	}
	reply := ""
	if n < len(p.replies) {
		reply = p.replies[n]
	}
	m, ok := provider.ExtractMove(reply)
	if !ok {
		return board.Move{}, &provider.ParseError{Provider: p.Name(), Reply: reply}
	}
	return m, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func newTestController(t *testing.T, mp provider.MoveProvider, cfg Config) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	ctrl, err := NewController(mp, rec, cfg, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	t.Cleanup(func() { _ = ctrl.Close() })
	return ctrl, rec
}

func mustPropose(t *testing.T, ctrl *Controller, move string) {
	t.Helper()
	if p := ctrl.ProposeHumanMove(move); !p.Accepted {
		t.Fatalf("ProposeHumanMove(%s) rejected: %s", move, p.Reason)
	}
	ctrl.Wait()
}

func TestAcceptedMoveWaitsForAI(t *testing.T) {
	mp := &scriptedProvider{replies: []string{"e7e5"}, gate: make(chan struct{})}
	ctrl, _ := newTestController(t, mp, Config{})

	p := ctrl.ProposeHumanMove("e2e4")
	if !p.Accepted || p.Move.String() != "e2e4" {
		t.Fatalf("expected e2e4 accepted, got %+v", p)
	}
	snap := ctrl.Snapshot()
	if snap.State != AwaitingAIMove {
		t.Fatalf("state = %s, want %s", snap.State, AwaitingAIMove)
	}

	second := ctrl.ProposeHumanMove("d2d4")
	if second.Accepted || !errors.Is(second.Err, ErrNotYourTurn) {
		t.Fatalf("expected not-your-turn rejection, got %+v", second)
	}
	if ctrl.Snapshot().FEN != snap.FEN {
		t.Fatalf("rejected proposal changed the position")
	}

	close(mp.gate)
	ctrl.Wait()
	after := ctrl.Snapshot()
	if after.State != AwaitingHumanMove || after.LastMove.String() != "e7e5" || after.Plies != 2 {
		t.Fatalf("unexpected snapshot after AI move: %+v", after)
	}
}

func TestIllegalHumanMoveIsRejected(t *testing.T) {
	mp := &scriptedProvider{}
	ctrl, rec := newTestController(t, mp, Config{})
	before := ctrl.Snapshot()

	p := ctrl.ProposeHumanMove("e2e5")
	if p.Accepted || !errors.Is(p.Err, board.ErrIllegalMove) {
		t.Fatalf("expected illegal move rejection, got %+v", p)
	}
	if p.DTO().Error == nil || p.DTO().Error.Code != "illegal_move" || !p.DTO().Error.Retryable {
		t.Fatalf("unexpected DTO: %+v", p.DTO())
	}
	after := ctrl.Snapshot()
	if after.FEN != before.FEN || after.State != AwaitingHumanMove {
		t.Fatalf("rejected move changed the game: %+v", after)
	}
	if mp.callCount() != 0 {
		t.Fatalf("provider must not be called for a rejected move")
	}
	errs := rec.ofType(EventError)
	if len(errs) != 1 || errs[0].ErrorKind != ErrorIllegalMove {
		t.Fatalf("expected one illegal_move error event, got %+v", errs)
	}

	if p := ctrl.ProposeHumanMove("knight to f3"); p.Accepted || !errors.Is(p.Err, board.ErrMoveSyntax) {
		t.Fatalf("expected syntax rejection, got %+v", p)
	}
}

func TestProseReplyIsApplied(t *testing.T) {
	mp := &scriptedProvider{replies: []string{"I think e7e5 is strong"}}
	ctrl, _ := newTestController(t, mp, Config{})

	mustPropose(t, ctrl, "e2e4")
	snap := ctrl.Snapshot()
	if snap.LastMove.String() != "e7e5" || snap.State != AwaitingHumanMove {
		t.Fatalf("expected e7e5 applied, got %+v", snap)
	}
	if snap.Turn != board.White {
		t.Fatalf("expected white to move, got %s", snap.Turn)
	}
}

func TestProviderSeesPositionAndLegalMoves(t *testing.T) {
	mp := &scriptedProvider{replies: []string{"e7e5"}, gate: make(chan struct{})}
	ctrl, _ := newTestController(t, mp, Config{})

	if p := ctrl.ProposeHumanMove("e2e4"); !p.Accepted {
		t.Fatalf("rejected: %s", p.Reason)
	}
	snap := ctrl.Snapshot()
	close(mp.gate)
	ctrl.Wait()

	if len(mp.calls) != 1 {
		t.Fatalf("expected one provider call, got %d", len(mp.calls))
	}
	call := mp.calls[0]
	if call.fen != snap.FEN {
		t.Fatalf("provider fen = %q, want %q", call.fen, snap.FEN)
	}
	if len(call.legal) != 20 || len(call.legal) != len(snap.LegalMoves) {
		t.Fatalf("provider legal moves = %v", call.legal)
	}
}

func TestEventOrder(t *testing.T) {
	mp := &scriptedProvider{replies: []string{"e7e5"}}
	ctrl, rec := newTestController(t, mp, Config{})
	mustPropose(t, ctrl, "e2e4")

	want := []EventType{EventMoveApplied, EventStateChanged, EventMoveApplied, EventStateChanged}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	moves := rec.ofType(EventMoveApplied)
	if moves[0].Side != board.White || moves[1].Side != board.Black || moves[1].Move.String() != "e7e5" {
		t.Fatalf("unexpected move events: %+v", moves)
	}
	states := rec.ofType(EventStateChanged)
	if states[0].State != AwaitingAIMove || states[1].State != AwaitingHumanMove {
		t.Fatalf("unexpected state events: %+v", states)
	}
}

func TestFoolsMateReportedOnce(t *testing.T) {
	mp := &scriptedProvider{replies: []string{"e7e5", "Qh4 is mate: d8h4"}}
	ctrl, rec := newTestController(t, mp, Config{})

	mustPropose(t, ctrl, "f2f3")
	mustPropose(t, ctrl, "g2g4")

	snap := ctrl.Snapshot()
	if snap.State != GameOver || snap.Status != board.BlackWins || snap.Outcome != OutcomeBlackWins {
		t.Fatalf("unexpected final snapshot: %+v", snap)
	}
	over := rec.ofType(EventGameOver)
	if len(over) != 1 {
		t.Fatalf("expected exactly one game_over event, got %d", len(over))
	}
	if over[0].Side != board.Black || over[0].Message != "checkmate" {
		t.Fatalf("unexpected game_over event: %+v", over[0])
	}
	if status := rec.ofType(EventStatusChanged); len(status) != 1 || status[0].Status != board.BlackWins {
		t.Fatalf("expected one status_changed to black_wins, got %+v", status)
	}

	if p := ctrl.ProposeHumanMove("a2a3"); p.Accepted || !errors.Is(p.Err, ErrGameOver) {
		t.Fatalf("expected game over rejection, got %+v", p)
	}
	ctrl.Wait()
	if len(rec.ofType(EventGameOver)) != 1 {
		t.Fatalf("outcome reported more than once")
	}
}

func TestHumanMateSkipsProvider(t *testing.T) {
	mp := &scriptedProvider{}
	ctrl, rec := newTestController(t, mp, Config{StartFEN: "k7/8/1K6/8/8/8/7Q/8 w - - 0 1"})

	mustPropose(t, ctrl, "h2h8")
	if mp.callCount() != 0 {
		t.Fatalf("provider called after mate")
	}
	snap := ctrl.Snapshot()
	if snap.Outcome != OutcomeWhiteWins || snap.State != GameOver {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if over := rec.ofType(EventGameOver); len(over) != 1 || over[0].Side != board.White {
		t.Fatalf("unexpected game_over events: %+v", over)
	}
}

func TestHumanPlaysBlackFromFEN(t *testing.T) {
	mp := &scriptedProvider{replies: []string{"g1f3"}}
	ctrl, _ := newTestController(t, mp, Config{StartFEN: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"})
	if ctrl.Snapshot().HumanSide != board.Black {
		t.Fatalf("human should play the side to move")
	}
	mustPropose(t, ctrl, "e7e5")
	if snap := ctrl.Snapshot(); snap.LastMove.String() != "g1f3" || snap.Turn != board.Black {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestHumanEngineFailureReportsEngineReason(t *testing.T) {
	ctrl, rec := newTestController(t, &scriptedProvider{}, Config{})
	before := ctrl.Snapshot().FEN

	ctrl.mu.Lock()
	ctrl.rejectHumanLocked(board.ErrRulesEngine)
	ctrl.mu.Unlock()
	ctrl.drain()

	errs := rec.ofType(EventError)
	if len(errs) != 1 || errs[0].ErrorKind != ErrorRulesEngine {
		t.Fatalf("expected one rules_engine error event, got %+v", errs)
	}
	over := rec.ofType(EventGameOver)
	if len(over) != 1 || over[0].Outcome != OutcomeAborted || over[0].Message != ErrEngineFailed.Error() {
		t.Fatalf("unexpected game_over events: %+v", over)
	}
	if snap := ctrl.Snapshot(); snap.State != GameOver || snap.FEN != before {
		t.Fatalf("unexpected snapshot after engine failure: %+v", snap)
	}
}

func assertAborted(t *testing.T, ctrl *Controller, rec *recorder, fen string, kind ErrorKind) {
	t.Helper()
	snap := ctrl.Snapshot()
	if snap.State != GameOver || snap.Outcome != OutcomeAborted {
		t.Fatalf("expected aborted game, got %+v", snap)
	}
	if snap.FEN != fen {
		t.Fatalf("failed AI move changed the position: %q vs %q", snap.FEN, fen)
	}
	if snap.Status != board.InProgress {
		t.Fatalf("aborted game should not carry a chess result, got %s", snap.Status)
	}
	errs := rec.ofType(EventError)
	if len(errs) != 1 || errs[0].ErrorKind != kind {
		t.Fatalf("expected one %s error event, got %+v", kind, errs)
	}
	over := rec.ofType(EventGameOver)
	if len(over) != 1 || over[0].Outcome != OutcomeAborted || over[0].Message != ErrOpponentFailed.Error() {
		t.Fatalf("unexpected game_over events: %+v", over)
	}
}

func positionAfter(t *testing.T, moves ...string) string {
	t.Helper()
	b := board.New()
	for _, text := range moves {
		m, _ := board.ParseMove(text)
		if err := b.Apply(m); err != nil {
			t.Fatalf("Apply(%s): %v", text, err)
		}
	}
	return b.FEN()
}

func TestUnparseableReplyAborts(t *testing.T) {
	mp := &scriptedProvider{replies: []string{"I cannot comply"}}
	ctrl, rec := newTestController(t, mp, Config{})
	mustPropose(t, ctrl, "e2e4")
	assertAborted(t, ctrl, rec, positionAfter(t, "e2e4"), ErrorParse)
}

func TestIllegalAIMoveAborts(t *testing.T) {
	mp := &scriptedProvider{replies: []string{"e2e4"}}
	ctrl, rec := newTestController(t, mp, Config{})
	mustPropose(t, ctrl, "e2e4")
	assertAborted(t, ctrl, rec, positionAfter(t, "e2e4"), ErrorIllegalMove)
}

func TestProviderFailureAborts(t *testing.T) {
	mp := &scriptedProvider{err: &provider.ProviderError{Provider: "scripted", Kind: provider.FailureAuth, StatusCode: 401}}
	ctrl, rec := newTestController(t, mp, Config{})
	mustPropose(t, ctrl, "d2d4")
	assertAborted(t, ctrl, rec, positionAfter(t, "d2d4"), ErrorProvider)

	if p := ctrl.ProposeHumanMove("e2e4"); p.Accepted || !errors.Is(p.Err, ErrGameOver) {
		t.Fatalf("expected game over rejection, got %+v", p)
	}
}

func TestAITimeoutAborts(t *testing.T) {
	mp := &scriptedProvider{block: true}
	ctrl, rec := newTestController(t, mp, Config{AITimeout: 20 * time.Millisecond})
	mustPropose(t, ctrl, "e2e4")
	assertAborted(t, ctrl, rec, positionAfter(t, "e2e4"), ErrorProvider)
}

func TestCloseCancelsOutstandingRequest(t *testing.T) {
	mp := &scriptedProvider{block: true}
	ctrl, _ := newTestController(t, mp, Config{AITimeout: time.Minute})
	if p := ctrl.ProposeHumanMove("e2e4"); !p.Accepted {
		t.Fatalf("rejected: %s", p.Reason)
	}

	done := make(chan struct{})
	go func() {
		_ = ctrl.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not cancel the AI request")
	}
	if p := ctrl.ProposeHumanMove("d7d5"); p.Accepted || !errors.Is(p.Err, ErrClosed) {
		t.Fatalf("expected closed rejection, got %+v", p)
	}
}

func TestSnapshotDTO(t *testing.T) {
	mp := &scriptedProvider{replies: []string{"e7e5"}}
	ctrl, _ := newTestController(t, mp, Config{})
	mustPropose(t, ctrl, "e2e4")
	dto := ctrl.Snapshot().DTO()
	if dto.State != "awaiting_human_move" || dto.Status != "in_progress" || dto.LastMove != "e7e5" || dto.MoveCount != 2 {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.SessionID != ctrl.ID() || dto.Provider != "scripted" || dto.HumanSide != "white" {
		t.Fatalf("unexpected dto identity: %+v", dto)
	}
}

func TestNilLoggerFallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	if _, err := obslog.Init(obslog.Options{Level: "info", Format: "json", ToConsole: true, Console: &buf}); err != nil {
		t.Fatalf("obslog.Init: %v", err)
	}
	t.Cleanup(func() { _, _ = obslog.Init(obslog.Options{}) })

	ctrl, err := NewController(&scriptedProvider{}, nil, Config{}, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	defer func() { _ = ctrl.Close() }()
	if !strings.Contains(buf.String(), `"msg":"game_started"`) || !strings.Contains(buf.String(), ctrl.ID()) {
		t.Fatalf("expected game_started on the global logger, got %q", buf.String())
	}
}
