package chessdto

import "time"

// MoveProposal is a human move submitted by a presenter.
type MoveProposal struct {
	Move string `json:"move"`
}

// ProposalResult answers a MoveProposal.
type ProposalResult struct {
	Accepted bool         `json:"accepted"`
	Move     string       `json:"move,omitempty"`
	Error    *DomainError `json:"error,omitempty"`
}

// Event mirrors a game event on the wire.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	State     string    `json:"state,omitempty"`
	Status    string    `json:"status,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Move      string    `json:"move,omitempty"`
	Side      string    `json:"side,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	FEN       string    `json:"fen,omitempty"`
	At        time.Time `json:"at"`
}

const (
	MessageEvent  = "event"
	MessageResult = "result"
	MessageState  = "state"
)

// Message is the envelope written to WebSocket clients.
type Message struct {
	Kind   string          `json:"kind"`
	Event  *Event          `json:"event,omitempty"`
	Result *ProposalResult `json:"result,omitempty"`
	State  *SessionState   `json:"state,omitempty"`
}
