package chessdto

import "time"

type Profile struct {
	PlayerName   string    `json:"player_name,omitempty"`
	GamesPlayed  int       `json:"games_played"`
	Wins         int       `json:"wins"`
	Abandoned    int       `json:"abandoned"`
	Streak       int       `json:"streak"`
	BestStreak   int       `json:"best_streak"`
	LastPlayedAt time.Time `json:"last_played_at"`
}
