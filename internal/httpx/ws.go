package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/baahaus/internal/adapter/chesspresenter"
	"github.com/park285/baahaus/pkg/chessdto"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleEvents upgrades to a websocket and pushes one frame per session change.
// The first frame is always the current state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	events, unsubscribe, err := s.service.Subscribe(r.Context(), id)
	if err != nil {
		applyAPISecurityHeaders(w.Header())
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		s.writeServiceError(w, r, err)
		return
	}
	defer unsubscribe()

	state, err := s.service.State(r.Context(), id)
	if err != nil {
		applyAPISecurityHeaders(w.Header())
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		s.writeServiceError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Debug("websocket accept failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// Clients never send frames; CloseRead handles control frames and cancels ctx on disconnect.
	ctx := conn.CloseRead(r.Context())

	presenter := chesspresenter.NewPresenter(s.formatter, func(ev *chessdto.Event) error {
		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		defer cancel()
		return wsjson.Write(wctx, conn, ev)
	})
	if err := presenter.Snapshot(state); err != nil {
		s.logger.Debug("websocket snapshot write failed", zap.String("session_id", id), zap.Error(err))
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				s.logger.Debug("websocket ping failed", zap.String("session_id", id), zap.Error(err))
				return
			}
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			if err := presenter.Event(ev); err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Debug("websocket event write failed", zap.String("session_id", id), zap.Error(err))
				}
				return
			}
		}
	}
}
