package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/baahaus/internal/adapter/chesspresenter"
	svcchess "github.com/park285/baahaus/internal/service/chess"
	"github.com/park285/baahaus/pkg/chessdto"
)

// Server serves the static site and the chess API.
type Server struct {
	service   *svcchess.Service
	formatter *chesspresenter.Formatter
	site      *siteHandler
	logger    *zap.Logger

	srvMu sync.Mutex
	srv   *http.Server
}

const (
	maxJSONBodyBytes int64 = 1 << 20
	apiCSP                 = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
)

func NewServer(service *svcchess.Service, formatter *chesspresenter.Formatter, siteRoot string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		service:   service,
		formatter: formatter,
		site:      newSiteHandler(siteRoot, logger),
		logger:    logger,
	}
}

// Listen starts the HTTP server and blocks until it stops.
func (s *Server) Listen(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()
	defer func() {
		s.srvMu.Lock()
		s.srv = nil
		s.srvMu.Unlock()
	}()

	s.logger.Info("http listening", zap.String("addr", addr))
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close attempts a graceful shutdown of the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the routing table. WriteTimeout stays unset so event streams are not cut.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/games", s.withJSON(s.handleStartGame))
	mux.HandleFunc("GET /api/games/{id}", s.withJSON(s.handleState))
	mux.HandleFunc("DELETE /api/games/{id}", s.withJSON(s.handleClose))
	mux.HandleFunc("POST /api/games/{id}/select", s.withJSON(s.handleSquare(s.service.Select)))
	mux.HandleFunc("POST /api/games/{id}/move", s.withJSON(s.handleSquare(s.service.Move)))
	mux.HandleFunc("POST /api/games/{id}/click", s.withJSON(s.handleSquare(s.service.Click)))
	mux.HandleFunc("POST /api/games/{id}/opponent", s.withJSON(s.handleOpponent))
	mux.HandleFunc("POST /api/games/{id}/reset", s.withJSON(s.handleReset))
	mux.HandleFunc("GET /api/games/{id}/board.png", s.handleBoardPNG)
	mux.HandleFunc("GET /api/games/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /api/players/{player}/profile", s.withJSON(s.handleProfile))
	mux.HandleFunc("GET /api/players/{player}/games", s.withJSON(s.handleHistory))
	mux.HandleFunc("/api/", s.withJSON(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "unknown endpoint"})
	}))

	mux.HandleFunc("GET /healthz", s.withJSON(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, chessdto.HealthResponse{Status: "ok", Sessions: s.service.Sessions()})
	}))

	mux.Handle("/", s.site)
	return mux
}

// ---- JSON helpers ----

func (s *Server) withJSON(h func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applyAPISecurityHeaders(w.Header())
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, derr chessdto.DomainError) {
	w.WriteHeader(status)
	writeJSON(w, derr)
}

func applyAPISecurityHeaders(h http.Header) {
	h.Set("Content-Security-Policy", apiCSP)
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("X-Content-Type-Options", "nosniff")
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// decodeBody fills v from the request body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if isBodyTooLarge(err) {
		writeError(w, http.StatusRequestEntityTooLarge, chessdto.DomainError{Code: chessdto.CodeRequestTooLarge, Message: "request too large"})
		return
	}
	writeError(w, http.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "invalid json"})
}

// writeServiceError maps service sentinels to wire errors.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, svcchess.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, chessdto.DomainError{Code: chessdto.CodeSessionNotFound, Message: "game session not found"})
	case errors.Is(err, svcchess.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, chessdto.DomainError{Code: chessdto.CodeProfileNotFound, Message: "player has no recorded games"})
	case errors.Is(err, svcchess.ErrTooManySessions), errors.Is(err, svcchess.ErrServiceShutdown):
		writeError(w, http.StatusServiceUnavailable, chessdto.DomainError{Code: chessdto.CodeTooManySessions, Message: "server is busy, try again later", Retryable: true})
	case svcchess.IsInvalidPlayer(err):
		writeError(w, http.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: err.Error()})
	default:
		s.logger.Error("chess api request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, chessdto.DomainError{Code: chessdto.CodeInternal, Message: "internal error", Retryable: true})
	}
}
