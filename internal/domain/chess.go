package domain

import "time"

const (
	ResultWin       = "win"
	ResultAbandoned = "abandoned"
)

// GameRecord is a finished or abandoned game as kept in the history store.
type GameRecord struct {
	ID           int64         `json:"id"`
	GameUUID     string        `json:"game_uuid"`
	SessionUUID  string        `json:"session_uuid"`
	PlayerHash   string        `json:"player_hash"`
	PlayerName   string        `json:"player_name,omitempty"`
	Result       string        `json:"result"`
	ResultMethod string        `json:"result_method"`
	Moves        []string      `json:"moves"`
	FinalFEN     string        `json:"final_fen"`
	Captured     []string      `json:"captured"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      time.Time     `json:"ended_at"`
	Duration     time.Duration `json:"duration"`
}

type PlayerProfile struct {
	PlayerHash   string    `json:"player_hash"`
	PlayerName   string    `json:"player_name,omitempty"`
	GamesPlayed  int       `json:"games_played"`
	Wins         int       `json:"wins"`
	Abandoned    int       `json:"abandoned"`
	Streak       int       `json:"streak"`
	BestStreak   int       `json:"best_streak"`
	LastPlayedAt time.Time `json:"last_played_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	CreatedAt    time.Time `json:"created_at"`
}
