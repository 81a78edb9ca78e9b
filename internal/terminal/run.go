package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/park285/cheese-llm-chess/internal/game"
	"github.com/park285/cheese-llm-chess/internal/msgcat"
)

// Game is the part of game.Controller the terminal loop drives.
type Game interface {
	ProposeHumanMove(text string) game.Proposal
	Snapshot() game.Snapshot
	Wait()
}

type Loop struct {
	in  io.Reader
	out io.Writer
	cat *msgcat.Catalog
	pr  *Presenter
}

func NewLoop(in io.Reader, out io.Writer, cat *msgcat.Catalog, pr *Presenter) *Loop {
	return &Loop{in: in, out: out, cat: cat, pr: pr}
}

// Run reads commands and moves until the game ends, input is exhausted, quit is entered, or
// ctx is done.
func (l *Loop) Run(ctx context.Context, g Game) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(l.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	snap := g.Snapshot()
	l.say(l.cat.Text("prompt.banner", map[string]any{"Side": string(snap.HumanSide), "Provider": snap.Provider}))
	if l.pr != nil {
		l.pr.printBoard(snap.FEN)
	}

	for {
		snap = g.Snapshot()
		if snap.State == game.GameOver {
			return nil
		}
		l.say(l.cat.Text("prompt.your_turn", map[string]any{"Side": string(snap.HumanSide)}))

		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case text, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = strings.Join(strings.Fields(text), " ")
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "moves":
			l.say(l.cat.Text("move.legal", map[string]any{"Moves": strings.Join(snap.LegalMoves, ", ")}))
			continue
		case "fen":
			l.say(l.cat.Text("move.fen", map[string]any{"FEN": snap.FEN}))
			continue
		case "board":
			if l.pr != nil {
				l.pr.printBoard(snap.FEN)
			}
			continue
		case "board on", "board off":
			if l.pr != nil {
				on := strings.HasSuffix(strings.ToLower(line), "on")
				l.pr.SetShowBoard(on)
				l.say(l.cat.Text("move.board_toggle", map[string]any{"On": on}))
			}
			continue
		}

		p := g.ProposeHumanMove(line)
		if !p.Accepted {
			l.say(l.cat.Text("move.rejected", map[string]any{"Reason": p.Reason}))
			continue
		}
		if err := waitTurn(ctx, g); err != nil {
			return err
		}
	}
}

// waitTurn blocks until the AI turn settles or ctx is done.
func waitTurn(ctx context.Context, g Game) error {
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) say(s string) {
	if l.pr != nil {
		l.pr.println(s)
		return
	}
	fmt.Fprintln(l.out, s)
}
