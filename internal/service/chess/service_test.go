package chess

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	corechess "github.com/park285/baahaus/internal/chess"
	"github.com/park285/baahaus/internal/domain"
)

type manualTimer struct {
	mu      sync.Mutex
	stopped bool
	fn      func()
}

func (m *manualTimer) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := !m.stopped
	m.stopped = true
	return was
}

type manualClock struct {
	mu     sync.Mutex
	delays []time.Duration
	timers []*manualTimer
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) corechess.Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{fn: f}
	c.delays = append(c.delays, d)
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// fire runs the i-th callback the way time.AfterFunc would, even if it was stopped late.
func (c *manualClock) fire(i int) {
	c.mu.Lock()
	t := c.timers[i]
	c.mu.Unlock()
	t.fn()
}

type testEnv struct {
	svc   *Service
	store SessionStore
	repo  Repository
	clock *manualClock
}

func newTestService(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		store: NewMemoryStore(),
		repo:  NewMemoryRepository(),
		clock: &manualClock{},
	}
	if cfg.OpponentDelay == 0 {
		cfg.OpponentDelay = corechess.DefaultOpponentDelay
	}
	svc, err := NewService(env.store, env.repo, NewBoardRenderer(), cfg, nil,
		WithJitter(corechess.NoJitter),
		WithAfterFunc(env.clock.AfterFunc),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Shutdown)
	env.svc = svc
	return env
}

func drain(ch <-chan Event) []string {
	var kinds []string
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return kinds
			}
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func TestServiceHumanMoveSchedulesOpponent(t *testing.T) {
	env := newTestService(t, Config{})
	ctx := context.Background()

	st, err := env.svc.StartGame(ctx, SessionMeta{Player: "alice"})
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	events, cancel, err := env.svc.Subscribe(ctx, st.SessionUUID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if _, err := env.svc.Click(ctx, st.SessionUUID, 6, 4); err != nil {
		t.Fatalf("Click e2: %v", err)
	}
	st, err = env.svc.Click(ctx, st.SessionUUID, 4, 4)
	if err != nil {
		t.Fatalf("Click e4: %v", err)
	}
	if st.Game.Turn != corechess.Black || !st.OpponentPending {
		t.Fatalf("after e2e4 the opponent should be pending, turn=%s pending=%v", st.Game.Turn, st.OpponentPending)
	}
	if env.clock.count() != 1 || env.clock.delays[0] != 500*time.Millisecond {
		t.Fatalf("expected one 500ms timer, got %v", env.clock.delays)
	}

	env.clock.fire(0)

	st, err = env.svc.State(ctx, st.SessionUUID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if diff := cmp.Diff([]string{"e2e4", "d7d5"}, moveStrings(st.Game.Moves)); diff != "" {
		t.Fatalf("moves mismatch (-want +got):\n%s", diff)
	}
	if st.Game.Turn != corechess.White || st.OpponentPending {
		t.Fatalf("turn should return to white")
	}
	if diff := cmp.Diff([]string{EventState, EventState, EventOpponent}, drain(events)); diff != "" {
		t.Fatalf("event kinds mismatch (-want +got):\n%s", diff)
	}

	rec, err := env.store.Load(ctx, st.SessionUUID)
	if err != nil || rec == nil {
		t.Fatalf("snapshot not persisted: %v", err)
	}
	if rec.Turn != "white" || len(rec.Moves) != 2 || rec.Generation != st.Game.Generation {
		t.Fatalf("unexpected snapshot: %+v", rec)
	}
}

func TestServiceResetDropsPendingOpponent(t *testing.T) {
	env := newTestService(t, Config{})
	ctx := context.Background()

	st, _ := env.svc.StartGame(ctx, SessionMeta{Player: "alice"})
	id := st.SessionUUID
	env.svc.Click(ctx, id, 6, 4)
	env.svc.Click(ctx, id, 4, 4)

	reset, err := env.svc.Reset(ctx, id)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if reset.GameUUID == st.GameUUID {
		t.Fatalf("reset should start a new game uuid")
	}

	env.clock.fire(0)

	after, _ := env.svc.State(ctx, id)
	if after.Game.MoveCount() != 0 || after.Game.Turn != corechess.White {
		t.Fatalf("stale opponent task changed the new game: %+v", after.Game.Moves)
	}
	if diff := cmp.Diff(corechess.StartingBoard(), after.Game.Board); diff != "" {
		t.Fatalf("board should be the starting position (-want +got):\n%s", diff)
	}

	games, err := env.svc.History(ctx, "alice", 0)
	if err != nil || len(games) != 1 {
		t.Fatalf("History: %v %v", games, err)
	}
	if games[0].Result != domain.ResultAbandoned || games[0].GameUUID != st.GameUUID {
		t.Fatalf("unexpected abandoned record: %+v", games[0])
	}
	profile, err := env.svc.Profile(ctx, "Alice")
	if err != nil || profile.Abandoned != 1 || profile.Wins != 0 {
		t.Fatalf("profile after abandon: %+v %v", profile, err)
	}
}

func TestServiceResetWithoutMovesRecordsNothing(t *testing.T) {
	env := newTestService(t, Config{})
	ctx := context.Background()
	st, _ := env.svc.StartGame(ctx, SessionMeta{Player: "bob"})
	if _, err := env.svc.Reset(ctx, st.SessionUUID); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := env.svc.Profile(ctx, "bob"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func saveRecord(t *testing.T, store SessionStore, b corechess.Board, turn corechess.Color, player string) *SessionRecord {
	t.Helper()
	rec := &SessionRecord{
		SessionUUID: "restored-session",
		GameUUID:    "restored-game",
		PlayerHash:  playerHashFor(player),
		PlayerName:  player,
		Board:       b.Letters(),
		Turn:        turn.String(),
		Moves:       []string{"e2e4"},
		Captured:    []string{},
		Generation:  9,
		StartedAt:   time.Unix(1700000000, 0),
		UpdatedAt:   time.Unix(1700000000, 0),
	}
	if err := store.Save(context.Background(), rec, time.Hour); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return rec
}

func TestServiceCaptureLastPieceRecordsWin(t *testing.T) {
	env := newTestService(t, Config{})
	ctx := context.Background()

	var b corechess.Board
	b.Set(corechess.Square{Row: 7, Col: 0}, corechess.Piece{Kind: corechess.Rook, Color: corechess.White})
	b.Set(corechess.Square{Row: 3, Col: 0}, corechess.Piece{Kind: corechess.Pawn, Color: corechess.Black})
	rec := saveRecord(t, env.store, b, corechess.White, "carol")

	events, cancel, err := env.svc.Subscribe(ctx, rec.SessionUUID)
	if err != nil {
		t.Fatalf("Subscribe (rehydrate): %v", err)
	}
	defer cancel()

	env.svc.Click(ctx, rec.SessionUUID, 7, 0)
	st, _ := env.svc.Click(ctx, rec.SessionUUID, 3, 0)
	if st.Game.Board.Count(corechess.Black) != 0 {
		t.Fatalf("pawn should have been captured")
	}
	if st.Game.Generation <= rec.Generation {
		t.Fatalf("generation %d must move past the stored %d", st.Game.Generation, rec.Generation)
	}

	env.clock.fire(0)

	st, _ = env.svc.State(ctx, rec.SessionUUID)
	if st.Game.Outcome != corechess.OutcomeHumanWins || st.Game.Phase() != corechess.PhaseFinished {
		t.Fatalf("game should be won, outcome=%q", st.Game.Outcome)
	}
	if diff := cmp.Diff([]string{EventState, EventState, EventFinished}, drain(events)); diff != "" {
		t.Fatalf("event kinds mismatch (-want +got):\n%s", diff)
	}

	if again, _ := env.svc.Click(ctx, rec.SessionUUID, 3, 0); again.Game.Selected != nil {
		t.Fatalf("input after the game ended must be ignored")
	}

	game, err := env.repo.GetGameByUUID(ctx, "restored-game")
	if err != nil || game == nil {
		t.Fatalf("finished game not recorded: %v", err)
	}
	if game.Result != domain.ResultWin || len(game.Moves) != 2 || len(game.Captured) != 1 {
		t.Fatalf("unexpected record: %+v", game)
	}
	profile, err := env.svc.Profile(ctx, "carol")
	if err != nil || profile.Wins != 1 || profile.Streak != 1 {
		t.Fatalf("profile after win: %+v %v", profile, err)
	}

	// a second reset must not record the finished game again
	if _, err := env.svc.Reset(ctx, rec.SessionUUID); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if games, _ := env.svc.History(ctx, "carol", 10); len(games) != 1 {
		t.Fatalf("history should still hold one game, got %d", len(games))
	}
}

func TestServiceRehydrateReschedulesOpponent(t *testing.T) {
	env := newTestService(t, Config{})
	ctx := context.Background()

	b := corechess.StartingBoard()
	b.Apply(corechess.Move{From: corechess.Square{Row: 6, Col: 4}, To: corechess.Square{Row: 4, Col: 4}})
	rec := saveRecord(t, env.store, b, corechess.Black, "dave")

	st, err := env.svc.State(ctx, rec.SessionUUID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !st.OpponentPending || env.clock.count() != 1 {
		t.Fatalf("rehydrating on black's turn should schedule the reply")
	}
	env.clock.fire(0)
	st, _ = env.svc.State(ctx, rec.SessionUUID)
	if st.Game.Turn != corechess.White || st.Game.MoveCount() != 2 {
		t.Fatalf("reply not played after rehydrate: turn=%s moves=%d", st.Game.Turn, st.Game.MoveCount())
	}
}

func TestServiceManualOpponentTurn(t *testing.T) {
	env := newTestService(t, Config{})
	ctx := context.Background()
	st, _ := env.svc.StartGame(ctx, SessionMeta{})
	id := st.SessionUUID
	if st.PlayerName != defaultHUDPlayerLabel {
		t.Fatalf("anonymous player label = %q", st.PlayerName)
	}

	if _, res, _ := env.svc.OpponentTurn(ctx, id); res.Applied {
		t.Fatalf("opponent must not move on white's turn")
	}

	env.svc.Move(ctx, id, 4, 4) // nothing selected
	env.svc.Select(ctx, id, 6, 3)
	env.svc.Move(ctx, id, 4, 3)

	st, res, err := env.svc.OpponentTurn(ctx, id)
	if err != nil || !res.Applied {
		t.Fatalf("OpponentTurn: %+v %v", res, err)
	}
	if st.Game.Turn != corechess.White || st.OpponentPending {
		t.Fatalf("manual trigger should play the reply and cancel the timer")
	}
	before := st.Game.Generation
	env.clock.fire(0)
	if after, _ := env.svc.State(ctx, id); after.Game.Generation != before {
		t.Fatalf("cancelled timer still acted")
	}
}

func TestServiceSessionLimits(t *testing.T) {
	env := newTestService(t, Config{MaxSessions: 1})
	ctx := context.Background()

	first, _ := env.svc.StartGame(ctx, SessionMeta{Player: "a"})
	env.svc.Click(ctx, first.SessionUUID, 6, 4)
	env.svc.Click(ctx, first.SessionUUID, 4, 4)

	if _, err := env.svc.StartGame(ctx, SessionMeta{Player: "b"}); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("busy session must not be evicted, got %v", err)
	}

	env.clock.fire(0)
	second, err := env.svc.StartGame(ctx, SessionMeta{Player: "b"})
	if err != nil {
		t.Fatalf("idle session should be evicted: %v", err)
	}
	if env.svc.Sessions() != 1 {
		t.Fatalf("sessions = %d, want 1", env.svc.Sessions())
	}

	// the evicted session comes back from the store
	st, err := env.svc.State(ctx, first.SessionUUID)
	if err != nil || st.Game.MoveCount() != 2 {
		t.Fatalf("evicted session not rehydrated: %v", err)
	}
	if _, err := env.svc.State(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("unknown session: %v", err)
	}
	if err := env.svc.Close(ctx, first.SessionUUID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := env.svc.State(ctx, first.SessionUUID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("closed session should be gone, got %v", err)
	}
	_ = second
}

func TestServiceBoardPNG(t *testing.T) {
	env := newTestService(t, Config{})
	ctx := context.Background()
	st, _ := env.svc.StartGame(ctx, SessionMeta{Player: "erin"})
	env.svc.Click(ctx, st.SessionUUID, 7, 6)

	data, err := env.svc.BoardPNG(ctx, st.SessionUUID)
	if err != nil {
		t.Fatalf("BoardPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	want := boardPixels + sideMargin*2
	if img.Bounds().Dx() != want || img.Bounds().Dy() != boardPixels+topMargin+bottomMargin {
		t.Fatalf("unexpected image size %v", img.Bounds())
	}
}

func TestServiceHistoryRequiresPlayer(t *testing.T) {
	env := newTestService(t, Config{})
	if _, err := env.svc.History(context.Background(), "  ", 5); !IsInvalidPlayer(err) {
		t.Fatalf("blank player should be rejected, got %v", err)
	}
}
