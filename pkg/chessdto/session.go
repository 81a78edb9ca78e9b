package chessdto

// SessionState is a point-in-time view of one game.
type SessionState struct {
	SessionID  string   `json:"session_id"`
	State      string   `json:"state"`
	Status     string   `json:"status"`
	Outcome    string   `json:"outcome,omitempty"`
	FEN        string   `json:"fen"`
	Turn       string   `json:"turn"`
	HumanSide  string   `json:"human_side"`
	LegalMoves []string `json:"legal_moves"`
	LastMove   string   `json:"last_move,omitempty"`
	MoveCount  int      `json:"move_count"`
	Provider   string   `json:"provider"`
}
