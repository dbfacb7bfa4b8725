// Package client is the SDK's HTTP transport to the Herald backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
)

const (
	// DefaultTimeout bounds every request so a hung call cannot block the next sync tick.
	DefaultTimeout = 15 * time.Second

	// APIKeyHeader carries the per-app key on SDK routes.
	APIKeyHeader = "X-API-Key"

	maxResponseBytes = 10 << 20
	userAgent        = "herald-sdk-go"
)

// Client talks to the SDK-facing routes of one app.
type Client struct {
	baseURL *url.URL
	appID   string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the X-API-Key credential sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCircuitBreaker replaces the default circuit breaker.
func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for appID served at baseURL.
func New(baseURL, appID string, opts ...Option) (*Client, error) {
	if appID == "" {
		return nil, errors.New("client: app id is required")
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: base URL must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL: u,
		appID:   appID,
		timeout: DefaultTimeout,
		http:    &http.Client{},
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.breaker == nil {
		c.breaker = NewCircuitBreaker("herald-" + appID)
	}

	return c, nil
}

// NewCircuitBreaker returns the breaker used by default: it opens after five
// consecutive transport or 5xx failures and probes again after 30 seconds.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// FullSync fetches every enabled notification and all segments of the app.
func (c *Client) FullSync(ctx context.Context) (model.SyncResponse, error) {
	var resp model.SyncResponse
	err := c.do(ctx, OpFullSync, http.MethodGet, "/api/sync/"+url.PathEscape(c.appID), nil, nil, &resp)
	return resp, err
}

// DeltaSync fetches the notifications whose version is greater than since.
func (c *Client) DeltaSync(ctx context.Context, since int64) (model.SyncResponse, error) {
	query := url.Values{"since": []string{strconv.FormatInt(since, 10)}}

	var resp model.SyncResponse
	err := c.do(ctx, OpDeltaSync, http.MethodGet, "/api/sync/"+url.PathEscape(c.appID)+"/delta", query, nil, &resp)
	return resp, err
}

type upsertUserRequest struct {
	ExternalID string           `json:"externalId"`
	Properties rules.Properties `json:"properties"`
}

// UpsertUser creates or updates the user's properties on the server.
func (c *Client) UpsertUser(ctx context.Context, externalID string, props rules.Properties) (model.User, error) {
	if props == nil {
		props = rules.Properties{}
	}

	var user model.User
	body := upsertUserRequest{ExternalID: externalID, Properties: props}
	err := c.do(ctx, OpUpsertUser, http.MethodPost, "/api/users/"+url.PathEscape(c.appID), nil, body, &user)
	return user, err
}

// SessionEvent is the body of the session endpoint.
type SessionEvent struct {
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session event types.
const (
	SessionStart = "start"
	SessionEnd   = "end"
)

// StartSession opens a session for userID and returns the server-assigned id.
func (c *Client) StartSession(ctx context.Context, userID string, at time.Time) (string, error) {
	var resp struct {
		SessionID string `json:"sessionId"`
	}

	event := SessionEvent{UserID: userID, Type: SessionStart, Timestamp: at}
	if err := c.do(ctx, OpStartSession, http.MethodPost, c.sessionPath(), nil, event, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", &Error{Op: OpStartSession, StatusCode: http.StatusOK, Err: errors.New("response carries no sessionId")}
	}
	return resp.SessionID, nil
}

// EndSession closes the session sessionID of userID.
func (c *Client) EndSession(ctx context.Context, userID, sessionID string, at time.Time) error {
	event := SessionEvent{UserID: userID, Type: SessionEnd, SessionID: sessionID, Timestamp: at}
	return c.do(ctx, OpEndSession, http.MethodPost, c.sessionPath(), nil, event, nil)
}

func (c *Client) sessionPath() string {
	return "/api/analytics/" + url.PathEscape(c.appID) + "/session"
}

// reply is a fully read response, so the body can be closed inside the breaker.
type reply struct {
	status int
	body   []byte
}

var errServerStatus = errors.New("server error")

// do executes a request through the circuit breaker and decodes the JSON reply into out.
func (c *Client) do(ctx context.Context, op Op, method, path string, query url.Values, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		r, err := c.send(ctx, method, path, query, in)
		if err != nil {
			return nil, err
		}
		// Only server-side failures count against the breaker.
		if r.status >= http.StatusInternalServerError {
			return r, errServerStatus
		}
		return r, nil
	})

	r, _ := result.(*reply)
	if r == nil {
		c.logger.Debug("herald request failed",
			"op", op,
			"error", err,
			"duration", time.Since(start),
		)
		return &Error{Op: op, Err: err}
	}

	c.logger.Debug("herald request completed",
		"op", op,
		"status", r.status,
		"duration", time.Since(start),
	)

	if r.status < 200 || r.status >= 300 {
		return &Error{Op: op, StatusCode: r.status, Message: serverMessage(r.body)}
	}

	if out == nil || len(r.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return &Error{Op: op, StatusCode: r.status, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, in any) (*reply, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &reply{status: resp.StatusCode, body: data}, nil
}

// serverMessage extracts the {"error": "..."} message of a failed response.
func serverMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error
}
