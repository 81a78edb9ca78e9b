package board

import (
	"fmt"
	"regexp"
	"strings"
)

var uciPattern = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// Move is a move in UCI coordinate notation. The zero value is not a move.
type Move struct {
	From      string
	To        string
	Promotion string
}

// ParseMove checks UCI syntax only; legality is decided by Board.Apply.
func ParseMove(raw string) (Move, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if !uciPattern.MatchString(s) {
		return Move{}, fmt.Errorf("%w: %q", ErrMoveSyntax, raw)
	}
	return Move{From: s[0:2], To: s[2:4], Promotion: s[4:]}, nil
}

func (m Move) String() string {
	return m.From + m.To + m.Promotion
}

func (m Move) IsZero() bool {
	return m.From == "" && m.To == ""
}

// Side identifies a chess color.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// Status is the rules-level result of a position.
type Status int

const (
	InProgress Status = iota
	WhiteWins
	BlackWins
	Draw
)

func (s Status) String() string {
	switch s {
	case WhiteWins:
		return "white_wins"
	case BlackWins:
		return "black_wins"
	case Draw:
		return "draw"
	default:
		return "in_progress"
	}
}

func (s Status) Terminal() bool {
	return s != InProgress
}
