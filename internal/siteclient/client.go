package siteclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/baahaus/pkg/chessdto"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

// APIError is a non-2xx answer from the site.
type APIError struct {
	Status int
	chessdto.DomainError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("site api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the site.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == fasthttp.StatusNotFound
}

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Health(ctx context.Context) (*chessdto.HealthResponse, error) {
	var out chessdto.HealthResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/healthz", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartGame(ctx context.Context, player string) (*chessdto.BoardState, error) {
	var out chessdto.StateResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games", chessdto.StartGameRequest{Player: player}, &out, false); err != nil {
		return nil, err
	}
	return out.State, nil
}

func (c *Client) State(ctx context.Context, sessionID string) (*chessdto.BoardState, error) {
	var out chessdto.StateResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, gamePath(sessionID, ""), nil, &out, true); err != nil {
		return nil, err
	}
	return out.State, nil
}

// Click addresses a square by its algebraic name, e.g. "e2".
func (c *Client) Click(ctx context.Context, sessionID, square string) (*chessdto.BoardState, error) {
	return c.squareAction(ctx, sessionID, "click", square)
}

func (c *Client) Select(ctx context.Context, sessionID, square string) (*chessdto.BoardState, error) {
	return c.squareAction(ctx, sessionID, "select", square)
}

func (c *Client) Move(ctx context.Context, sessionID, square string) (*chessdto.BoardState, error) {
	return c.squareAction(ctx, sessionID, "move", square)
}

func (c *Client) squareAction(ctx context.Context, sessionID, action, square string) (*chessdto.BoardState, error) {
	var out chessdto.StateResponse
	req := chessdto.SquareRequest{Name: square}
	// Not retried: a repeated click toggles the selection.
	if err := c.doJSON(ctx, fasthttp.MethodPost, gamePath(sessionID, action), req, &out, false); err != nil {
		return nil, err
	}
	return out.State, nil
}

// Opponent asks the server to play the reply now. The returned move is nil when nothing was played.
func (c *Client) Opponent(ctx context.Context, sessionID string) (*chessdto.BoardState, *chessdto.Move, error) {
	var out struct {
		State    *chessdto.BoardState `json:"state"`
		Opponent *chessdto.Move       `json:"opponent"`
	}
	if err := c.doJSON(ctx, fasthttp.MethodPost, gamePath(sessionID, "opponent"), nil, &out, false); err != nil {
		return nil, nil, err
	}
	return out.State, out.Opponent, nil
}

func (c *Client) Reset(ctx context.Context, sessionID string) (*chessdto.BoardState, error) {
	var out chessdto.StateResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, gamePath(sessionID, "reset"), nil, &out, false); err != nil {
		return nil, err
	}
	return out.State, nil
}

func (c *Client) CloseGame(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, fasthttp.MethodDelete, gamePath(sessionID, ""), nil, nil, false)
}

func (c *Client) Profile(ctx context.Context, player string) (*chessdto.Profile, error) {
	var out chessdto.ProfileResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/players/"+url.PathEscape(player)+"/profile", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Profile, nil
}

func (c *Client) History(ctx context.Context, player string, limit int) ([]*chessdto.GameRecord, error) {
	path := "/api/players/" + url.PathEscape(player) + "/games"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out chessdto.HistoryResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Games, nil
}

// EventsURL is the websocket address of a session's event stream.
func (c *Client) EventsURL(sessionID string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + gamePath(sessionID, "events")
}

func gamePath(sessionID, action string) string {
	p := "/api/games/" + url.PathEscape(strings.TrimSpace(sessionID))
	if action != "" {
		p += "/" + action
	}
	return p
}

// call is one API request. Only idempotent calls are retried.
type call struct {
	method     string
	path       string
	body       any
	out        any
	idempotent bool
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	return c.do(ctx, call{method: method, path: path, body: in, out: out, idempotent: retry})
}

func (c *Client) do(ctx context.Context, cl call) error {
	var payload []byte
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}

	tries := 1
	if cl.idempotent && c.retryMax > 1 {
		tries = c.retryMax
	}
	for n := 1; ; n++ {
		again, err := c.roundTrip(ctx, cl, payload)
		if err == nil || !again || n >= tries {
			return err
		}
		if waitErr := wait(ctx, backoff(n)); waitErr != nil {
			return err
		}
	}
}

// roundTrip performs a single attempt. again reports whether a failure is worth retrying.
func (c *Client) roundTrip(ctx context.Context, cl call, payload []byte) (again bool, err error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + cl.path)
	req.Header.SetMethod(cl.method)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if k = strings.TrimSpace(k); k != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if payload != nil {
		req.SetBody(payload)
	}

	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return true, fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return retryableStatus(status), decodeAPIError(status, resp.Body())
	}
	if cl.out == nil || status == fasthttp.StatusNoContent {
		return false, nil
	}
	if err := json.Unmarshal(resp.Body(), cl.out); err != nil {
		return false, fmt.Errorf("decode %s response: %w", cl.path, err)
	}
	return false, nil
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &apiErr.DomainError); err != nil || apiErr.Code == "" {
		const maxMessage = 512
		msg := string(body)
		if len(msg) > maxMessage {
			msg = msg[:maxMessage]
		}
		apiErr.Code = chessdto.CodeInternal
		apiErr.Message = msg
	}
	return apiErr
}

// deadline is the earlier of the context deadline and the client timeout.
func (c *Client) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backoff doubles from 100ms and stops growing after the sixth try.
func backoff(n int) time.Duration {
	n = min(max(n, 1), 6)
	return (100 * time.Millisecond) << (n - 1)
}

func retryableStatus(code int) bool {
	switch code {
	case fasthttp.StatusInternalServerError, fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout:
		return true
	}
	return false
}
