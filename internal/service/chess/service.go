package chess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	corechess "github.com/park285/baahaus/internal/chess"
	"github.com/park285/baahaus/internal/domain"
)

var (
	ErrSessionNotFound  = errors.New("chess session not found")
	ErrTooManySessions  = errors.New("too many live chess sessions")
	ErrProfileNotFound  = errors.New("chess profile not found")
	ErrServiceShutdown  = errors.New("chess service is shutting down")
	errInvalidPlayerKey = errors.New("player name is required")
)

const (
	defaultSessionTTL     = time.Hour
	defaultHistoryLimit   = 10
	maxHistoryLimit       = 50
	defaultMaxSessions    = 200
	playerLabelRuneLimit  = 24
	defaultHUDPlayerLabel = "player"
	backgroundOpTimeout   = 5 * time.Second
	subscriberBuffer      = 16
)

const (
	EventState    = "state"
	EventOpponent = "opponent_move"
	EventFinished = "finished"
)

type Config struct {
	OpponentDelay time.Duration
	SessionTTL    time.Duration
	HistoryLimit  int
	MaxSessions   int
}

type SessionMeta struct {
	Player string
}

// SessionState is a point-in-time copy of a live session.
type SessionState struct {
	SessionUUID     string
	GameUUID        string
	PlayerHash      string
	PlayerName      string
	Game            corechess.GameState
	OpponentPending bool
	StartedAt       time.Time
	UpdatedAt       time.Time
}

type Event struct {
	Kind     string
	State    *SessionState
	Opponent *corechess.ScoredMove
}

// HUDLabeler supplies the texts drawn above the board image.
type HUDLabeler interface {
	HUD(state *SessionState) (header, turn string)
}

type Option func(*Service)

func WithJitter(j corechess.JitterFunc) Option {
	return func(s *Service) { s.jitter = j }
}

func WithAfterFunc(after corechess.AfterFunc) Option {
	return func(s *Service) { s.after = after }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithHUD(labeler HUDLabeler) Option {
	return func(s *Service) { s.hud = labeler }
}

type liveSession struct {
	mu sync.Mutex

	id         string
	gameUUID   string
	ctrl       *corechess.Controller
	pacer      *corechess.Pacer
	playerHash string
	playerName string
	startedAt  time.Time
	updatedAt  time.Time
	recorded   bool
	closed     bool
}

type Service struct {
	store    SessionStore
	repo     Repository
	renderer BoardRenderer
	cfg      Config
	logger   *zap.Logger

	jitter corechess.JitterFunc
	after  corechess.AfterFunc
	now    func() time.Time
	hud    HUDLabeler

	mu       sync.Mutex
	sessions map[string]*liveSession
	shutdown bool

	hub *hub
}

func NewService(store SessionStore, repo Repository, renderer BoardRenderer, cfg Config, logger *zap.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("chess repository is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("board renderer is required")
	}
	if cfg.OpponentDelay < 0 {
		cfg.OpponentDelay = corechess.DefaultOpponentDelay
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:    store,
		repo:     repo,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*liveSession),
		hub:      newHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Config() Config { return s.cfg }

// StartGame opens a new session with the starting position. White moves first.
func (s *Service) StartGame(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	now := s.now()
	id := uuid.NewString()
	name := normalizePlayerLabel(meta.Player)
	hash := playerHashFor(name)
	if name == "" {
		name = defaultHUDPlayerLabel
		hash = hashString("session:" + id)
	}

	ls := &liveSession{
		id:         id,
		gameUUID:   uuid.NewString(),
		ctrl:       corechess.NewController(corechess.NewEvaluator(s.jitter)),
		pacer:      corechess.NewPacer(s.cfg.OpponentDelay, s.after),
		playerHash: hash,
		playerName: name,
		startedAt:  now,
		updatedAt:  now,
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil, ErrServiceShutdown
	}
	if len(s.sessions) >= s.cfg.MaxSessions && !s.evictIdleLocked() {
		s.mu.Unlock()
		return nil, ErrTooManySessions
	}
	s.sessions[id] = ls
	s.mu.Unlock()

	ls.mu.Lock()
	defer ls.mu.Unlock()
	s.persistLocked(ctx, ls)
	s.logger.Info("chess session started",
		zap.String("session_id", id),
		zap.String("game_uuid", ls.gameUUID),
		zap.String("player_hash", hash),
	)
	return s.snapshotLocked(ls), nil
}

// evictIdleLocked drops the least recently updated session that has no opponent reply pending.
// The snapshot stays in the store, so the session can be rehydrated later.
func (s *Service) evictIdleLocked() bool {
	var (
		victim   *liveSession
		victimAt time.Time
	)
	for _, ls := range s.sessions {
		if ls.pacer.Pending() {
			continue
		}
		ls.mu.Lock()
		at := ls.updatedAt
		ls.mu.Unlock()
		if victim == nil || at.Before(victimAt) {
			victim, victimAt = ls, at
		}
	}
	if victim == nil {
		return false
	}
	victim.mu.Lock()
	victim.closed = true
	victim.pacer.Cancel()
	victim.mu.Unlock()
	delete(s.sessions, victim.id)
	s.hub.closeSession(victim.id)
	s.logger.Info("chess session evicted", zap.String("session_id", victim.id))
	return true
}

func (s *Service) State(ctx context.Context, sessionID string) (*SessionState, error) {
	ls, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return s.snapshotLocked(ls), nil
}

func (s *Service) Select(ctx context.Context, sessionID string, row, col int) (*SessionState, error) {
	return s.mutate(ctx, sessionID, func(ls *liveSession) corechess.MoveResult {
		ls.ctrl.SelectPiece(row, col)
		return corechess.MoveResult{}
	})
}

func (s *Service) Move(ctx context.Context, sessionID string, row, col int) (*SessionState, error) {
	return s.mutate(ctx, sessionID, func(ls *liveSession) corechess.MoveResult {
		return ls.ctrl.AttemptMove(row, col)
	})
}

func (s *Service) Click(ctx context.Context, sessionID string, row, col int) (*SessionState, error) {
	return s.mutate(ctx, sessionID, func(ls *liveSession) corechess.MoveResult {
		return ls.ctrl.Click(row, col)
	})
}

// mutate runs one human input. Ignored inputs still return the current state.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(ls *liveSession) corechess.MoveResult) (*SessionState, error) {
	ls, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return nil, ErrSessionNotFound
	}

	res := fn(ls)
	if res.Applied {
		ls.updatedAt = s.now()
		s.persistLocked(ctx, ls)
		s.logger.Debug("chess human move",
			zap.String("session_id", ls.id),
			zap.String("move", res.Move.String()),
			zap.Bool("capture", !res.Captured.IsZero()),
		)
		s.scheduleOpponentLocked(ls)
	}

	// selection changes do not bump the generation but subscribers still redraw
	state := s.snapshotLocked(ls)
	s.hub.publish(ls.id, Event{Kind: EventState, State: state})
	return state, nil
}

func (s *Service) scheduleOpponentLocked(ls *liveSession) {
	if ls.ctrl.Turn() != corechess.OpponentColor || ls.ctrl.Finished() {
		return
	}
	id := ls.id
	ls.pacer.Schedule(ls.ctrl.Generation(), func(generation uint64) {
		s.runScheduledOpponent(id, ls, generation)
	})
}

func (s *Service) runScheduledOpponent(id string, ls *liveSession, generation uint64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed || ls.ctrl.Generation() != generation {
		s.logger.Debug("stale opponent turn dropped",
			zap.String("session_id", id),
			zap.Uint64("scheduled_generation", generation),
			zap.Uint64("current_generation", ls.ctrl.Generation()),
		)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
	defer cancel()
	s.playOpponentLocked(ctx, ls)
}

// OpponentTurn plays the reply right away instead of waiting for the pacer.
func (s *Service) OpponentTurn(ctx context.Context, sessionID string) (*SessionState, corechess.OpponentResult, error) {
	ls, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, corechess.OpponentResult{}, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return nil, corechess.OpponentResult{}, ErrSessionNotFound
	}
	ls.pacer.Cancel()
	res := s.playOpponentLocked(ctx, ls)
	return s.snapshotLocked(ls), res, nil
}

func (s *Service) playOpponentLocked(ctx context.Context, ls *liveSession) corechess.OpponentResult {
	res := ls.ctrl.TriggerOpponentTurn()
	if !res.Applied && !res.Finished {
		return res
	}
	ls.updatedAt = s.now()

	if res.Finished {
		s.recordGameLocked(ctx, ls, domain.ResultWin, corechess.ReasonNoLegalMoves)
		s.persistLocked(ctx, ls)
		s.logger.Info("chess game finished",
			zap.String("session_id", ls.id),
			zap.String("game_uuid", ls.gameUUID),
			zap.String("outcome", string(corechess.OutcomeHumanWins)),
			zap.Int("move_count", ls.ctrl.State().MoveCount()),
		)
		s.hub.publish(ls.id, Event{Kind: EventFinished, State: s.snapshotLocked(ls)})
		return res
	}

	s.persistLocked(ctx, ls)
	move := res.Move
	s.logger.Debug("chess opponent move",
		zap.String("session_id", ls.id),
		zap.String("move", move.Move.String()),
		zap.Float64("score", move.Score),
	)
	s.hub.publish(ls.id, Event{Kind: EventOpponent, State: s.snapshotLocked(ls), Opponent: &move})
	return res
}

// Reset starts a new game in the same session. A game in progress with moves counts as abandoned.
func (s *Service) Reset(ctx context.Context, sessionID string) (*SessionState, error) {
	ls, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return nil, ErrSessionNotFound
	}

	ls.pacer.Cancel()
	if st := ls.ctrl.State(); !ls.recorded && st.Outcome == corechess.OutcomeNone && st.MoveCount() > 0 {
		s.recordGameLocked(ctx, ls, domain.ResultAbandoned, "reset")
	}
	ls.ctrl.Reset()
	now := s.now()
	ls.gameUUID = uuid.NewString()
	ls.recorded = false
	ls.startedAt = now
	ls.updatedAt = now
	s.persistLocked(ctx, ls)

	state := s.snapshotLocked(ls)
	s.hub.publish(ls.id, Event{Kind: EventState, State: state})
	return state, nil
}

// Close ends a session and removes its snapshot.
func (s *Service) Close(ctx context.Context, sessionID string) error {
	id := strings.TrimSpace(sessionID)
	s.mu.Lock()
	ls, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		ls.mu.Lock()
		ls.closed = true
		ls.pacer.Cancel()
		ls.mu.Unlock()
	}
	s.hub.closeSession(id)
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (s *Service) BoardPNG(ctx context.Context, sessionID string) ([]byte, error) {
	ls, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	state := s.snapshotLocked(ls)
	ls.mu.Unlock()

	opts := RenderOptions{
		Selected: state.Game.Selected,
		Legal:    state.Game.Legal,
		LastMove: state.Game.LastMove,
	}
	if s.hud != nil {
		opts.HUDHeader, opts.HUDTurn = s.hud.HUD(state)
	} else {
		opts.HUDHeader = state.PlayerName + " vs ai"
	}
	data, err := s.renderer.RenderPNG(ctx, state.Game.Board, opts)
	if err != nil {
		s.logger.Warn("failed to render chess board image", zap.Error(err), zap.String("session_id", state.SessionUUID))
		return nil, err
	}
	return data, nil
}

// Subscribe streams events of one session. The cancel func must be called when the caller is done.
func (s *Service) Subscribe(ctx context.Context, sessionID string) (<-chan Event, func(), error) {
	ls, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribe(ls.id)
	return ch, cancel, nil
}

func (s *Service) History(ctx context.Context, player string, limit int) ([]*domain.GameRecord, error) {
	name := normalizePlayerLabel(player)
	if name == "" {
		return nil, errInvalidPlayerKey
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	return s.repo.GetRecentGames(ctx, playerHashFor(name), limit)
}

func (s *Service) Profile(ctx context.Context, player string) (*domain.PlayerProfile, error) {
	name := normalizePlayerLabel(player)
	if name == "" {
		return nil, errInvalidPlayerKey
	}
	profile, err := s.repo.GetProfile(ctx, playerHashFor(name))
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown cancels pending opponent turns and closes all subscriptions. Snapshots stay in the store.
func (s *Service) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	live := make([]*liveSession, 0, len(s.sessions))
	for _, ls := range s.sessions {
		live = append(live, ls)
	}
	s.sessions = make(map[string]*liveSession)
	s.mu.Unlock()

	for _, ls := range live {
		ls.mu.Lock()
		ls.closed = true
		ls.pacer.Cancel()
		ls.mu.Unlock()
	}
	s.hub.closeAll()
}

func IsInvalidPlayer(err error) bool { return errors.Is(err, errInvalidPlayerKey) }

// session returns the live session, rehydrating it from the store when this process does not hold it.
func (s *Service) session(ctx context.Context, sessionID string) (*liveSession, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, ErrSessionNotFound
	}
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil, ErrServiceShutdown
	}
	ls, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return ls, nil
	}

	rec, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrSessionNotFound
	}
	restored, err := s.restore(rec)
	if err != nil {
		s.logger.Warn("discarding unreadable chess session", zap.Error(err), zap.String("session_id", id))
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	if len(s.sessions) >= s.cfg.MaxSessions && !s.evictIdleLocked() {
		s.mu.Unlock()
		return nil, ErrTooManySessions
	}
	s.sessions[id] = restored
	s.mu.Unlock()

	s.logger.Info("chess session rehydrated",
		zap.String("session_id", id),
		zap.Uint64("generation", restored.ctrl.Generation()),
	)
	restored.mu.Lock()
	s.scheduleOpponentLocked(restored)
	restored.mu.Unlock()
	return restored, nil
}

func (s *Service) restore(rec *SessionRecord) (*liveSession, error) {
	board, err := corechess.BoardFromLetters(rec.Board)
	if err != nil {
		return nil, err
	}
	turn, ok := corechess.ParseColor(rec.Turn)
	if !ok {
		return nil, fmt.Errorf("invalid turn %q", rec.Turn)
	}
	state := corechess.GameState{
		Board:      board,
		Turn:       turn,
		Outcome:    corechess.Outcome(rec.Outcome),
		Reason:     rec.Reason,
		Generation: rec.Generation,
	}
	for _, text := range rec.Moves {
		m, ok := corechess.ParseMove(text)
		if !ok {
			return nil, fmt.Errorf("invalid move %q", text)
		}
		state.Moves = append(state.Moves, m)
	}
	if n := len(state.Moves); n > 0 {
		last := state.Moves[n-1]
		state.LastMove = &last
	}
	for _, letter := range rec.Captured {
		p, ok := corechess.PieceFromLetter(letter)
		if !ok {
			return nil, fmt.Errorf("invalid captured piece %q", letter)
		}
		state.Captured = append(state.Captured, p)
	}

	ctrl := corechess.NewController(corechess.NewEvaluator(s.jitter))
	ctrl.Restore(state)
	return &liveSession{
		id:         rec.SessionUUID,
		gameUUID:   rec.GameUUID,
		ctrl:       ctrl,
		pacer:      corechess.NewPacer(s.cfg.OpponentDelay, s.after),
		playerHash: rec.PlayerHash,
		playerName: rec.PlayerName,
		startedAt:  rec.StartedAt,
		updatedAt:  rec.UpdatedAt,
		recorded:   rec.Recorded,
	}, nil
}

func (s *Service) recordLocked(ls *liveSession) *SessionRecord {
	st := ls.ctrl.State()
	rec := &SessionRecord{
		SessionUUID: ls.id,
		GameUUID:    ls.gameUUID,
		PlayerHash:  ls.playerHash,
		PlayerName:  ls.playerName,
		Board:       st.Board.Letters(),
		Turn:        st.Turn.String(),
		Moves:       moveStrings(st.Moves),
		Captured:    pieceLetters(st.Captured),
		Outcome:     string(st.Outcome),
		Reason:      st.Reason,
		Generation:  st.Generation,
		Recorded:    ls.recorded,
		StartedAt:   ls.startedAt,
		UpdatedAt:   ls.updatedAt,
	}
	return rec
}

func (s *Service) persistLocked(ctx context.Context, ls *liveSession) {
	if err := s.store.Save(ctx, s.recordLocked(ls), s.cfg.SessionTTL); err != nil {
		s.logger.Warn("failed to persist chess session",
			zap.Error(err),
			zap.String("session_id", ls.id),
			zap.Uint64("generation", ls.ctrl.Generation()),
		)
	}
}

func (s *Service) snapshotLocked(ls *liveSession) *SessionState {
	return &SessionState{
		SessionUUID:     ls.id,
		GameUUID:        ls.gameUUID,
		PlayerHash:      ls.playerHash,
		PlayerName:      ls.playerName,
		Game:            ls.ctrl.State(),
		OpponentPending: ls.pacer.Pending(),
		StartedAt:       ls.startedAt,
		UpdatedAt:       ls.updatedAt,
	}
}

// recordGameLocked writes the game to history once and folds the result into the player profile.
func (s *Service) recordGameLocked(ctx context.Context, ls *liveSession, result, method string) {
	if ls.recorded {
		return
	}
	st := ls.ctrl.State()
	now := s.now()
	game := &domain.GameRecord{
		GameUUID:     ls.gameUUID,
		SessionUUID:  ls.id,
		PlayerHash:   ls.playerHash,
		PlayerName:   ls.playerName,
		Result:       result,
		ResultMethod: method,
		Moves:        moveStrings(st.Moves),
		FinalFEN:     corechess.FEN(st.Board, st.Turn, st.MoveCount()),
		Captured:     pieceLetters(st.Captured),
		StartedAt:    ls.startedAt,
		EndedAt:      now,
		Duration:     now.Sub(ls.startedAt),
	}

	id, err := s.repo.InsertGame(ctx, game)
	if errors.Is(err, ErrDuplicateGame) {
		ls.recorded = true
		return
	}
	if err != nil {
		s.logger.Warn("failed to record chess game",
			zap.Error(err),
			zap.String("session_id", ls.id),
			zap.String("game_uuid", ls.gameUUID),
		)
		return
	}
	ls.recorded = true

	profile, err := s.repo.GetProfile(ctx, ls.playerHash)
	if err != nil {
		s.logger.Warn("failed to load chess profile", zap.Error(err), zap.String("player_hash", ls.playerHash))
		return
	}
	profile = applyGameResult(profile, ls.playerHash, ls.playerName, result, now)
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		s.logger.Warn("failed to update chess profile", zap.Error(err), zap.String("player_hash", ls.playerHash))
		return
	}
	s.logger.Info("chess game recorded",
		zap.Int64("game_id", id),
		zap.String("game_uuid", ls.gameUUID),
		zap.String("result", result),
		zap.Int("wins", profile.Wins),
		zap.Int("streak", profile.Streak),
	)
}

func applyGameResult(profile *domain.PlayerProfile, playerHash, playerName, result string, endedAt time.Time) *domain.PlayerProfile {
	if profile == nil {
		profile = &domain.PlayerProfile{
			PlayerHash: playerHash,
			CreatedAt:  endedAt,
		}
	}
	if playerName != "" {
		profile.PlayerName = playerName
	}
	profile.GamesPlayed++
	switch result {
	case domain.ResultWin:
		profile.Wins++
		profile.Streak++
		if profile.Streak > profile.BestStreak {
			profile.BestStreak = profile.Streak
		}
	case domain.ResultAbandoned:
		profile.Abandoned++
		profile.Streak = 0
	}
	profile.LastPlayedAt = endedAt
	profile.UpdatedAt = endedAt
	return profile
}

func moveStrings(moves []corechess.Move) []string {
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, m.String())
	}
	return out
}

func pieceLetters(pieces []corechess.Piece) []string {
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, p.Letter())
	}
	return out
}

func normalizePlayerLabel(raw string) string {
	cleaned := strings.NewReplacer("\r", " ", "\n", " ").Replace(strings.TrimSpace(raw))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return ""
	}
	runes := []rune(cleaned)
	if len(runes) > playerLabelRuneLimit {
		return strings.TrimSpace(string(runes[:playerLabelRuneLimit]))
	}
	return cleaned
}

func playerHashFor(name string) string {
	return hashString(strings.ToLower(name))
}

func hashString(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
