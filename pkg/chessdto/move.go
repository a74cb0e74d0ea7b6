package chessdto

type Square struct {
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Name string `json:"name,omitempty"`
}

type Move struct {
	From     Square `json:"from"`
	To       Square `json:"to"`
	UCI      string `json:"uci"`
	Captured string `json:"captured,omitempty"`
}
