package game

import (
	"time"

	"github.com/park285/cheese-llm-chess/internal/board"
	"github.com/park285/cheese-llm-chess/pkg/chessdto"
)

type EventType string

const (
	EventStateChanged  EventType = "state_changed"
	EventStatusChanged EventType = "status_changed"
	EventMoveApplied   EventType = "move_applied"
	EventError         EventType = "error"
	EventGameOver      EventType = "game_over"
)

// Event is one step of a game as seen by presenters. Fields not relevant to Type are zero.
type Event struct {
	Type      EventType
	SessionID string
	State     State
	Status    board.Status
	Outcome   Outcome
	Move      board.Move
	Side      board.Side
	ErrorKind ErrorKind
	Message   string
	FEN       string
	At        time.Time
}

func (e Event) DTO() chessdto.Event {
	out := chessdto.Event{
		Type:      string(e.Type),
		SessionID: e.SessionID,
		State:     string(e.State),
		Outcome:   string(e.Outcome),
		Side:      string(e.Side),
		ErrorKind: string(e.ErrorKind),
		Message:   e.Message,
		FEN:       e.FEN,
		At:        e.At,
	}
	if e.Type == EventStatusChanged || e.Type == EventGameOver {
		out.Status = e.Status.String()
	}
	if !e.Move.IsZero() {
		out.Move = e.Move.String()
	}
	return out
}

// Sink receives events in the order they happen, one at a time. Publish should return quickly.
type Sink interface {
	Publish(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

// Sinks fans an event out to several sinks in order.
type Sinks []Sink

func (s Sinks) Publish(ev Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Publish(ev)
		}
	}
}
