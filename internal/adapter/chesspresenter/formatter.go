package chesspresenter

import (
	"strings"

	corechess "github.com/park285/baahaus/internal/chess"
	svc "github.com/park285/baahaus/internal/service/chess"
)

const (
	fallbackWhiteTurn = "your turn (white)"
	fallbackBlackTurn = "ai's turn (black)"
	fallbackHumanWins = "you win!"
)

// Catalog is the part of msgcat.Catalog the formatter needs.
type Catalog interface {
	RenderOr(key string, data any, def string) string
}

// Formatter renders the status line and HUD texts from the message catalog.
type Formatter struct {
	catalog Catalog
}

func NewFormatter(catalog Catalog) *Formatter {
	return &Formatter{catalog: catalog}
}

func (f *Formatter) render(key string, data any, def string) string {
	if f == nil || f.catalog == nil {
		return def
	}
	return f.catalog.RenderOr(key, data, def)
}

// Status is the one line shown under the board.
func (f *Formatter) Status(st corechess.GameState) string {
	if st.Outcome == corechess.OutcomeHumanWins {
		return f.render("status.outcome.human_wins", nil, fallbackHumanWins)
	}
	if st.Turn == corechess.White {
		return f.render("status.turn.white", nil, fallbackWhiteTurn)
	}
	return f.render("status.turn.black", nil, fallbackBlackTurn)
}

func (f *Formatter) Selection(st corechess.GameState) string {
	if st.Selected == nil {
		return ""
	}
	piece := st.Board.At(*st.Selected)
	return f.render("status.selected", map[string]any{
		"Piece":  piece.Kind.String(),
		"Square": st.Selected.String(),
		"Count":  len(st.Legal),
	}, "")
}

// HUD implements svc.HUDLabeler.
func (f *Formatter) HUD(state *svc.SessionState) (string, string) {
	if state == nil {
		return "", ""
	}
	player := strings.TrimSpace(state.PlayerName)
	if player == "" {
		player = "player"
	}
	header := f.render("hud.player", map[string]any{"Player": player}, player+" vs ai")

	if sel := f.Selection(state.Game); sel != "" {
		return header, sel
	}
	moves := f.render("hud.moves", map[string]any{"Count": state.Game.MoveCount()/2 + 1}, "")
	status := f.Status(state.Game)
	if moves == "" || state.Game.Outcome != corechess.OutcomeNone {
		return header, status
	}
	return header, status + " - " + moves
}
