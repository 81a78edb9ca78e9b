// Package terminal is a line-oriented presenter for playing a game from a terminal.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/park285/cheese-llm-chess/internal/board"
	"github.com/park285/cheese-llm-chess/internal/game"
	"github.com/park285/cheese-llm-chess/internal/msgcat"
)

// Presenter prints game events. It is a game.Sink.
type Presenter struct {
	mu        sync.Mutex
	out       io.Writer
	cat       *msgcat.Catalog
	humanSide board.Side
	provider  string
	showBoard bool
}

func NewPresenter(out io.Writer, cat *msgcat.Catalog, humanSide board.Side, providerName string) *Presenter {
	return &Presenter{out: out, cat: cat, humanSide: humanSide, provider: providerName, showBoard: true}
}

// SetShowBoard toggles the diagram printed after each move.
func (p *Presenter) SetShowBoard(v bool) {
	p.mu.Lock()
	p.showBoard = v
	p.mu.Unlock()
}

func (p *Presenter) Publish(ev game.Event) {
	switch ev.Type {
	case game.EventMoveApplied:
		p.println(p.cat.Text("move.applied", map[string]any{"Side": p.sideLabel(ev.Side), "Move": ev.Move.String()}))
		if p.boardEnabled() {
			p.printBoard(ev.FEN)
		}
	case game.EventStateChanged:
		if ev.State == game.AwaitingAIMove {
			p.println(p.cat.Text("prompt.ai_thinking", map[string]any{"Provider": p.provider}))
		}
	case game.EventError:
		if ev.ErrorKind.Fatal() || p.aiFailure(ev) {
			p.println(p.cat.Text("error.opponent_failed", map[string]any{"Detail": ev.Message}))
		}
	case game.EventGameOver:
		p.println(p.outcomeText(ev))
	}
}

// aiFailure reports whether an error was raised while the AI side was to move.
func (p *Presenter) aiFailure(ev game.Event) bool {
	b, err := board.FromFEN(ev.FEN)
	if err != nil {
		return false
	}
	return b.Turn() != p.humanSide
}

func (p *Presenter) outcomeText(ev game.Event) string {
	var msg string
	switch ev.Outcome {
	case game.OutcomeAborted:
		return p.cat.Text("outcome.aborted", map[string]any{"Reason": ev.Message})
	case game.OutcomeDraw:
		msg = p.cat.Text("outcome.draw", nil)
	default:
		if ev.Outcome.Winner() == p.humanSide {
			msg = p.cat.Text("outcome.human_wins", nil)
		} else {
			msg = p.cat.Text("outcome.ai_wins", nil)
		}
	}
	if ev.Message != "" {
		msg += " " + p.cat.Text("outcome.method", map[string]any{"Method": p.methodText(ev.Message)})
	}
	return msg
}

// methodText renders a snake_case end method through the catalog, falling back to plain words.
func (p *Presenter) methodText(method string) string {
	if p.cat != nil {
		if text, err := p.cat.Render("outcome.methods."+method, nil); err == nil {
			return text
		}
	}
	return strings.ReplaceAll(method, "_", " ")
}

func (p *Presenter) sideLabel(s board.Side) string {
	if s == p.humanSide {
		return "You (" + string(s) + ")"
	}
	return p.provider + " (" + string(s) + ")"
}

func (p *Presenter) boardEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.showBoard
}

func (p *Presenter) printBoard(fen string) {
	b, err := board.FromFEN(fen)
	if err != nil {
		return
	}
	p.println(strings.TrimRight(b.Draw(), "\n"))
}

func (p *Presenter) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}
