package chesspresenter

import (
	corechess "github.com/park285/baahaus/internal/chess"
	"github.com/park285/baahaus/internal/domain"
	svc "github.com/park285/baahaus/internal/service/chess"
	"github.com/park285/baahaus/pkg/chessdto"
)

func ToDTOState(s *svc.SessionState, f *Formatter) *chessdto.BoardState {
	if s == nil {
		return nil
	}
	g := s.Game
	out := &chessdto.BoardState{
		SessionID:  s.SessionUUID,
		Board:      g.Board.Letters(),
		Turn:       g.Turn.String(),
		Phase:      g.Phase().String(),
		Legal:      toDTOSquares(g.Legal),
		Moves:      make([]string, 0, len(g.Moves)),
		Captured:   make([]string, 0, len(g.Captured)),
		MoveCount:  g.MoveCount(),
		Finished:   g.Outcome != corechess.OutcomeNone,
		Outcome:    string(g.Outcome),
		Reason:     g.Reason,
		Message:    f.Status(g),
		FEN:        corechess.FEN(g.Board, g.Turn, g.MoveCount()),
		Generation: g.Generation,
		PlayerName: s.PlayerName,
		StartedAt:  s.StartedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	if g.Selected != nil {
		sq := toDTOSquare(*g.Selected)
		out.Selected = &sq
	}
	if g.LastMove != nil {
		m := toDTOMove(*g.LastMove, corechess.Piece{})
		out.LastMove = &m
	}
	for _, m := range g.Moves {
		out.Moves = append(out.Moves, m.String())
	}
	for _, p := range g.Captured {
		out.Captured = append(out.Captured, p.Letter())
	}
	return out
}

// ToDTOEvent converts a service event; the opponent move keeps its captured piece.
func ToDTOEvent(ev svc.Event, f *Formatter) *chessdto.Event {
	return &chessdto.Event{
		Type:     ev.Kind,
		State:    ToDTOState(ev.State, f),
		Opponent: ToDTOOpponentMove(ev.Opponent),
	}
}

func ToDTOOpponentMove(m *corechess.ScoredMove) *chessdto.Move {
	if m == nil {
		return nil
	}
	mv := toDTOMove(m.Move, m.Captured)
	return &mv
}

func toDTOSquare(sq corechess.Square) chessdto.Square {
	return chessdto.Square{Row: sq.Row, Col: sq.Col, Name: sq.String()}
}

func toDTOSquares(list []corechess.Square) []chessdto.Square {
	out := make([]chessdto.Square, 0, len(list))
	for _, sq := range list {
		out = append(out, toDTOSquare(sq))
	}
	return out
}

func toDTOMove(m corechess.Move, captured corechess.Piece) chessdto.Move {
	return chessdto.Move{
		From:     toDTOSquare(m.From),
		To:       toDTOSquare(m.To),
		UCI:      m.String(),
		Captured: captured.Letter(),
	}
}

// profile
func ToDTOProfile(p *domain.PlayerProfile) *chessdto.Profile {
	if p == nil {
		return nil
	}
	return &chessdto.Profile{
		PlayerName:   p.PlayerName,
		GamesPlayed:  p.GamesPlayed,
		Wins:         p.Wins,
		Abandoned:    p.Abandoned,
		Streak:       p.Streak,
		BestStreak:   p.BestStreak,
		LastPlayedAt: p.LastPlayedAt,
	}
}

func ToDTOGames(list []*domain.GameRecord) []*chessdto.GameRecord {
	out := make([]*chessdto.GameRecord, 0, len(list))
	for _, g := range list {
		if g == nil {
			continue
		}
		out = append(out, ToDTOGame(g))
	}
	return out
}

func ToDTOGame(g *domain.GameRecord) *chessdto.GameRecord {
	if g == nil {
		return nil
	}
	return &chessdto.GameRecord{
		ID:           g.ID,
		GameUUID:     g.GameUUID,
		SessionUUID:  g.SessionUUID,
		Result:       g.Result,
		ResultMethod: g.ResultMethod,
		Moves:        append([]string{}, g.Moves...),
		FinalFEN:     g.FinalFEN,
		Captured:     append([]string{}, g.Captured...),
		StartedAt:    g.StartedAt,
		EndedAt:      g.EndedAt,
		DurationMS:   g.Duration.Milliseconds(),
	}
}
