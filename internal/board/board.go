// Package board wraps the chess rules engine and owns the position of a single game.
package board

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var (
	ErrIllegalMove = errors.New("illegal chess move")
	ErrMoveSyntax  = errors.New("malformed uci move")
	ErrInvalidFEN  = errors.New("invalid fen")
	ErrRulesEngine = errors.New("chess rules engine failure")
)

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

// Board is the sole mutator of a Position. Apply is the only method that changes it;
// everything else is read-only. A Board is not safe for concurrent use.
type Board struct {
	game      *nchess.Game
	fromStart bool
}

// New returns a board in the standard initial arrangement.
func New() *Board {
	return &Board{game: nchess.NewGame(), fromStart: true}
}

// FromFEN reconstructs a position from its FEN.
func FromFEN(fen string) (*Board, error) {
	text := strings.TrimSpace(fen)
	if text == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidFEN)
	}
	opt, err := nchess.FEN(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return &Board{game: nchess.NewGame(opt)}, nil
}

// LegalMoves returns the moves legal in the current position, sorted by UCI text.
// A finished game has no legal moves.
func (b *Board) LegalMoves() []Move {
	if b.Status().Terminal() {
		return nil
	}
	valid := b.game.ValidMoves()
	out := make([]Move, 0, len(valid))
	for _, mv := range valid {
		m, err := ParseMove(mv.String())
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (b *Board) LegalMoveStrings() []string {
	moves := b.LegalMoves()
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.String()
	}
	return out
}

func (b *Board) IsLegal(m Move) bool {
	want := m.String()
	for _, legal := range b.LegalMoves() {
		if legal.String() == want {
			return true
		}
	}
	return false
}

// Apply plays m if and only if it is in LegalMoves. On error the position is unchanged.
func (b *Board) Apply(m Move) error {
	text := m.String()
	if !b.IsLegal(m) {
		return fmt.Errorf("%w: %s", ErrIllegalMove, text)
	}
	if err := b.game.PushNotationMove(text, nchess.UCINotation{}, nil); err != nil {
		return fmt.Errorf("%w: apply %s: %v", ErrRulesEngine, text, err)
	}
	return nil
}

func (b *Board) FEN() string {
	return b.game.FEN()
}

func (b *Board) Status() Status {
	switch b.game.Outcome() {
	case nchess.WhiteWon:
		return WhiteWins
	case nchess.BlackWon:
		return BlackWins
	case nchess.Draw:
		return Draw
	default:
		return InProgress
	}
}

// Method names how a finished game ended in snake_case ("checkmate", "insufficient_material", ...),
// or "" while in progress.
func (b *Board) Method() string {
	if b.game.Outcome() == nchess.NoOutcome {
		return ""
	}
	switch b.game.Method() {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	case nchess.ThreefoldRepetition:
		return "threefold_repetition"
	case nchess.FivefoldRepetition:
		return "fivefold_repetition"
	case nchess.FiftyMoveRule:
		return "fifty_move_rule"
	case nchess.SeventyFiveMoveRule:
		return "seventy_five_move_rule"
	case nchess.Resignation:
		return "resignation"
	case nchess.DrawOffer:
		return "draw_offer"
	default:
		return ""
	}
}

func (b *Board) Turn() Side {
	if b.game.Position().Turn() == nchess.Black {
		return Black
	}
	return White
}

func (b *Board) Clone() *Board {
	return &Board{game: b.game.Clone(), fromStart: b.fromStart}
}

// Draw returns a text diagram of the position.
func (b *Board) Draw() string {
	return b.game.Position().Board().Draw()
}

// Opening returns the ECO code and title of the line played so far. Only games started
// from the initial arrangement are labelled.
func (b *Board) Opening() (string, string) {
	if !b.fromStart {
		return "", ""
	}
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	if ecoBook == nil {
		return "", ""
	}
	if eco := ecoBook.Find(b.game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}
