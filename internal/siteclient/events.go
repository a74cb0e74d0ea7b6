package siteclient

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/baahaus/pkg/chessdto"
)

type StreamState int

const (
	StreamDisconnected StreamState = iota
	StreamConnecting
	StreamConnected
	StreamReconnecting
	StreamFailed
)

func (s StreamState) String() string {
	switch s {
	case StreamConnecting:
		return "connecting"
	case StreamConnected:
		return "connected"
	case StreamReconnecting:
		return "reconnecting"
	case StreamFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

type EventCallback func(ev *chessdto.Event)

type StateCallback func(state StreamState)

type callbackEntry struct {
	id       int
	callback EventCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// Events follows one session's event stream. After a reconnect the server sends a fresh
// state frame first, so callers never miss the current position.
type Events struct {
	wsURL  string
	logger *zap.Logger

	connM sync.Mutex
	conn  *websocket.Conn

	state  StreamState
	stateM sync.RWMutex

	evCbs    []callbackEntry
	stateCbs []stateCallbackEntry
	nextCbID int
	cbM      sync.RWMutex

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	headerProvider HeaderProvider
}

func NewEvents(wsURL string, maxReconnectAttempts int, logger *zap.Logger) *Events {
	if logger == nil {
		logger = zap.NewNop()
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Events{
		wsURL:                wsURL,
		logger:               logger,
		state:                StreamDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		rootCtx:              rootCtx,
		rootCancel:           rootCancel,
	}
}

// SetPingInterval must be called before Connect.
func (e *Events) SetPingInterval(d time.Duration) {
	if d > 0 {
		e.pingInterval = d
	}
}

// SetHeaderProvider allows injecting headers into the WS handshake.
func (e *Events) SetHeaderProvider(h HeaderProvider) {
	e.headerProvider = h
}

func (e *Events) State() StreamState {
	e.stateM.RLock()
	defer e.stateM.RUnlock()
	return e.state
}

func (e *Events) Connect(ctx context.Context) error {
	e.stateM.Lock()
	if e.state == StreamConnected || e.state == StreamConnecting {
		e.stateM.Unlock()
		return nil
	}
	e.stateM.Unlock()

	e.setState(StreamConnecting)
	conn, err := e.dial(ctx)
	if err != nil {
		e.setState(StreamFailed)
		return err
	}
	e.attach(conn)
	return nil
}

func (e *Events) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, e.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      e.buildHeaders(),
	})
	return conn, err
}

func (e *Events) attach(conn *websocket.Conn) {
	e.connM.Lock()
	e.conn = conn
	e.connM.Unlock()
	e.setState(StreamConnected)

	connCtx, cancel := context.WithCancel(e.rootCtx)
	e.wg.Add(2)
	go e.listen(connCtx, cancel, conn)
	go e.pingLoop(connCtx, conn)
}

func (e *Events) listen(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer e.wg.Done()
	defer cancel()
	for {
		var ev chessdto.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if e.isStopping() {
				return
			}
			e.logger.Debug("event stream read failed", zap.String("url", e.wsURL), zap.Error(err))
			e.setState(StreamDisconnected)
			e.closeConn(conn, websocket.StatusGoingAway, "reconnect")
			e.scheduleReconnect()
			return
		}

		e.cbM.RLock()
		callbacks := make([]callbackEntry, len(e.evCbs))
		copy(callbacks, e.evCbs)
		e.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(&ev)
			}
		}
	}
}

func (e *Events) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer e.wg.Done()
	t := time.NewTicker(e.pingInterval)
	defer t.Stop()
	consecutivePingFailures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err == nil {
				consecutivePingFailures = 0
				continue
			}
			consecutivePingFailures++
			if consecutivePingFailures >= 2 {
				// Closing the conn makes listen fail and reconnect.
				e.closeConn(conn, websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (e *Events) scheduleReconnect() {
	if e.maxReconnectAttempts <= 0 {
		e.setState(StreamFailed)
		return
	}
	e.setState(StreamReconnecting)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for attempt := 1; attempt <= e.maxReconnectAttempts; attempt++ {
			select {
			case <-e.stopCh:
				return
			case <-time.After(backoff(attempt)):
			}

			conn, err := e.dial(e.rootCtx)
			if err != nil {
				e.logger.Debug("event stream reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			if e.isStopping() {
				_ = conn.Close(websocket.StatusNormalClosure, "close")
				return
			}
			e.attach(conn)
			return
		}
		e.setState(StreamFailed)
	}()
}

func (e *Events) OnEvent(cb EventCallback) int {
	e.cbM.Lock()
	defer e.cbM.Unlock()
	e.nextCbID++
	e.evCbs = append(e.evCbs, callbackEntry{id: e.nextCbID, callback: cb})
	return e.nextCbID
}

func (e *Events) RemoveEventCallback(id int) {
	e.cbM.Lock()
	defer e.cbM.Unlock()
	for i, cb := range e.evCbs {
		if cb.id == id {
			e.evCbs = append(e.evCbs[:i], e.evCbs[i+1:]...)
			break
		}
	}
}

func (e *Events) OnStateChange(cb StateCallback) int {
	e.cbM.Lock()
	defer e.cbM.Unlock()
	e.nextCbID++
	e.stateCbs = append(e.stateCbs, stateCallbackEntry{id: e.nextCbID, callback: cb})
	return e.nextCbID
}

func (e *Events) RemoveStateCallback(id int) {
	e.cbM.Lock()
	defer e.cbM.Unlock()
	for i, cb := range e.stateCbs {
		if cb.id == id {
			e.stateCbs = append(e.stateCbs[:i], e.stateCbs[i+1:]...)
			break
		}
	}
}

func (e *Events) setState(state StreamState) {
	e.stateM.Lock()
	e.state = state
	e.stateM.Unlock()

	e.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(e.stateCbs))
	copy(callbacks, e.stateCbs)
	e.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (e *Events) Close(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.connM.Lock()
	conn := e.conn
	e.connM.Unlock()
	if conn != nil {
		e.closeConn(conn, websocket.StatusNormalClosure, "close")
	}
	e.rootCancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.setState(StreamDisconnected)
		return nil
	}
}

func (e *Events) closeConn(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	e.connM.Lock()
	if e.conn == conn {
		e.conn = nil
	}
	e.connM.Unlock()
	_ = conn.Close(code, reason)
}

func (e *Events) isStopping() bool {
	select {
	case <-e.stopCh:
		return true
	default:
		return false
	}
}

func (e *Events) buildHeaders() http.Header {
	hdr := http.Header{}
	if e.headerProvider == nil {
		return hdr
	}
	for k, v := range e.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
