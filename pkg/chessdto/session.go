package chessdto

import "time"

// BoardState is one frame of the game as the front end draws it.
// Board rows start at black's home rank; white pieces are upper case, black lower case.
type BoardState struct {
	SessionID  string     `json:"session_id"`
	Board      [][]string `json:"board"`
	Turn       string     `json:"turn"`
	Phase      string     `json:"phase"`
	Selected   *Square    `json:"selected,omitempty"`
	Legal      []Square   `json:"legal"`
	LastMove   *Move      `json:"last_move,omitempty"`
	Moves      []string   `json:"moves"`
	Captured   []string   `json:"captured"`
	MoveCount  int        `json:"move_count"`
	Finished   bool       `json:"finished"`
	Outcome    string     `json:"outcome,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Message    string     `json:"message"`
	FEN        string     `json:"fen"`
	Generation uint64     `json:"generation"`
	PlayerName string     `json:"player_name,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Event is pushed to subscribers after every state change.
type Event struct {
	Type     string      `json:"type"`
	State    *BoardState `json:"state"`
	Opponent *Move       `json:"opponent,omitempty"`
}

const (
	EventState    = "state"
	EventOpponent = "opponent_move"
	EventFinished = "finished"
)
