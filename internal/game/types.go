package game

import (
	"errors"
	"time"

	"github.com/park285/cheese-llm-chess/internal/board"
	"github.com/park285/cheese-llm-chess/pkg/chessdto"
)

var (
	ErrNotYourTurn    = errors.New("waiting for the opponent's move")
	ErrGameOver       = errors.New("game is over")
	ErrClosed         = errors.New("game closed")
	ErrOpponentFailed = errors.New("opponent failed to produce a move")
	ErrEngineFailed   = errors.New("rules engine failed to apply the move")
)

type State string

const (
	AwaitingHumanMove State = "awaiting_human_move"
	AwaitingAIMove    State = "awaiting_ai_move"
	GameOver          State = "game_over"
)

// Outcome is how a game ended. Aborted is not a chess result; it means the AI side failed.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeWhiteWins Outcome = "white_wins"
	OutcomeBlackWins Outcome = "black_wins"
	OutcomeDraw      Outcome = "draw"
	OutcomeAborted   Outcome = "aborted"
)

func outcomeFor(s board.Status) Outcome {
	switch s {
	case board.WhiteWins:
		return OutcomeWhiteWins
	case board.BlackWins:
		return OutcomeBlackWins
	case board.Draw:
		return OutcomeDraw
	default:
		return OutcomeNone
	}
}

// Winner returns the winning side, or "" for draws and aborts.
func (o Outcome) Winner() board.Side {
	switch o {
	case OutcomeWhiteWins:
		return board.White
	case OutcomeBlackWins:
		return board.Black
	default:
		return ""
	}
}

type ErrorKind string

const (
	ErrorIllegalMove ErrorKind = "illegal_move"
	ErrorParse       ErrorKind = "parse"
	ErrorProvider    ErrorKind = "provider"
	ErrorRulesEngine ErrorKind = "rules_engine"
)

// Fatal reports whether an error of this kind ends the game.
func (k ErrorKind) Fatal() bool {
	return k != ErrorIllegalMove
}

// Proposal is the answer to a human move: accepted, or rejected with a reason.
type Proposal struct {
	Accepted bool
	Move     board.Move
	Reason   string
	Err      error
}

func rejected(err error) Proposal {
	return Proposal{Reason: err.Error(), Err: err}
}

func (p Proposal) DTO() chessdto.ProposalResult {
	out := chessdto.ProposalResult{Accepted: p.Accepted}
	if !p.Move.IsZero() {
		out.Move = p.Move.String()
	}
	if !p.Accepted {
		out.Error = &chessdto.DomainError{Code: rejectionCode(p.Err), Message: p.Reason, Retryable: rejectionRetryable(p.Err)}
	}
	return out
}

func rejectionCode(err error) string {
	switch {
	case errors.Is(err, ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, ErrGameOver), errors.Is(err, ErrClosed):
		return "game_over"
	case errors.Is(err, board.ErrRulesEngine):
		return string(ErrorRulesEngine)
	default:
		return string(ErrorIllegalMove)
	}
}

func rejectionRetryable(err error) bool {
	return !errors.Is(err, ErrGameOver) && !errors.Is(err, ErrClosed) && !errors.Is(err, board.ErrRulesEngine)
}

// Snapshot is a read-only copy of the controller's view of the game.
type Snapshot struct {
	SessionID  string
	State      State
	Status     board.Status
	Outcome    Outcome
	FEN        string
	Turn       board.Side
	HumanSide  board.Side
	LegalMoves []string
	LastMove   board.Move
	Plies      int
	Provider   string
}

func (s Snapshot) DTO() chessdto.SessionState {
	out := chessdto.SessionState{
		SessionID:  s.SessionID,
		State:      string(s.State),
		Status:     s.Status.String(),
		Outcome:    string(s.Outcome),
		FEN:        s.FEN,
		Turn:       string(s.Turn),
		HumanSide:  string(s.HumanSide),
		LegalMoves: s.LegalMoves,
		MoveCount:  s.Plies,
		Provider:   s.Provider,
	}
	if out.LegalMoves == nil {
		out.LegalMoves = []string{}
	}
	if !s.LastMove.IsZero() {
		out.LastMove = s.LastMove.String()
	}
	return out
}

// DefaultAITimeout bounds a single AI move request when none is configured.
const DefaultAITimeout = 32 * time.Second
