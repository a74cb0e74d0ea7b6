package httpx

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/baahaus/internal/adapter/chesspresenter"
	corechess "github.com/park285/baahaus/internal/chess"
	svcchess "github.com/park285/baahaus/internal/service/chess"
	"github.com/park285/baahaus/pkg/chessdto"
)

type squareAction func(ctx context.Context, sessionID string, row, col int) (*svcchess.SessionState, error)

func (s *Server) writeState(w http.ResponseWriter, state *svcchess.SessionState) {
	writeJSON(w, chessdto.StateResponse{State: chesspresenter.ToDTOState(state, s.formatter)})
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var body chessdto.StartGameRequest
	if err := decodeBody(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	state, err := s.service.StartGame(r.Context(), svcchess.SessionMeta{Player: body.Player})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	s.writeState(w, state)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.State(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeState(w, state)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Close(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSquare(action squareAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body chessdto.SquareRequest
		if err := decodeBody(r, &body); err != nil {
			writeDecodeError(w, err)
			return
		}
		sq, ok := parseSquareRequest(body)
		if !ok {
			writeError(w, http.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "invalid square"})
			return
		}
		state, err := action(r.Context(), r.PathValue("id"), sq.Row, sq.Col)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeState(w, state)
	}
}

func (s *Server) handleOpponent(w http.ResponseWriter, r *http.Request) {
	state, res, err := s.service.OpponentTurn(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := struct {
		State    *chessdto.BoardState `json:"state"`
		Opponent *chessdto.Move       `json:"opponent,omitempty"`
	}{State: chesspresenter.ToDTOState(state, s.formatter)}
	if res.Applied {
		out.Opponent = chesspresenter.ToDTOOpponentMove(&res.Move)
	}
	writeJSON(w, out)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.Reset(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeState(w, state)
}

func (s *Server) handleBoardPNG(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.BoardPNG(r.Context(), r.PathValue("id"))
	if err != nil {
		applyAPISecurityHeaders(w.Header())
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("board image write failed", zap.Error(err))
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.service.Profile(r.Context(), r.PathValue("player"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, chessdto.ProfileResponse{Profile: chesspresenter.ToDTOProfile(profile)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "invalid limit"})
			return
		}
		limit = n
	}
	games, err := s.service.History(r.Context(), r.PathValue("player"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, chessdto.HistoryResponse{Games: chesspresenter.ToDTOGames(games)})
}

// parseSquareRequest prefers the algebraic name when one is given.
func parseSquareRequest(body chessdto.SquareRequest) (corechess.Square, bool) {
	if name := strings.TrimSpace(body.Name); name != "" {
		return corechess.ParseSquare(name)
	}
	sq := corechess.Square{Row: body.Row, Col: body.Col}
	return sq, sq.OnBoard()
}
