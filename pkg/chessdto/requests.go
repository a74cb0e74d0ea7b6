package chessdto

type StartGameRequest struct {
	Player string `json:"player,omitempty"`
}

// SquareRequest addresses a board square by grid coordinates or, when Name is set, by algebraic name.
type SquareRequest struct {
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Name string `json:"name,omitempty"`
}

type StateResponse struct {
	State *BoardState `json:"state"`
}

type HistoryResponse struct {
	Games []*GameRecord `json:"games"`
}

type ProfileResponse struct {
	Profile *Profile `json:"profile"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}
