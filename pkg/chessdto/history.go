package chessdto

import "time"

type GameRecord struct {
	ID           int64     `json:"id"`
	GameUUID     string    `json:"game_uuid"`
	SessionUUID  string    `json:"session_uuid"`
	Result       string    `json:"result"`
	ResultMethod string    `json:"result_method"`
	Moves        []string  `json:"moves"`
	FinalFEN     string    `json:"final_fen"`
	Captured     []string  `json:"captured"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	DurationMS   int64     `json:"duration_ms"`
}
