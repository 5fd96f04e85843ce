package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/valyala/fasthttp"

	"personal/cheesebot/src/intents"
)

const defaultGatewayVersion = "10"

type Client struct {
	token   string
	rest    *restClient
	dialer  *websocket.Dialer
	handler Handler
	logger  *slog.Logger

	apiURL         string
	httpClient     *fasthttp.Client
	gatewayVersion string
	intents        intents.Intent
	properties     ConnectionProperties
	compress       bool
	maxMissedAcks  int
	limiterOpts    []RateLimiterConfigOpt
	limiter        RateLimiter
	newBackOff     func() backoff.BackOff

	mu        sync.Mutex
	resume    *ResumeState
	lastReady bool
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithIntents(i intents.Intent) Option {
	return func(c *Client) { c.intents = i }
}

// WithAPIURL points REST calls at another base URL, including the API version.
func WithAPIURL(apiURL string) Option {
	return func(c *Client) { c.apiURL = apiURL }
}

func WithHTTPClient(httpClient *fasthttp.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = dialer }
}

func WithGatewayVersion(version string) Option {
	return func(c *Client) { c.gatewayVersion = version }
}

func WithDevice(device string) Option {
	return func(c *Client) { c.properties.Device = device }
}

// WithCompression asks the gateway for zlib-compressed payloads.
func WithCompression(enabled bool) Option {
	return func(c *Client) { c.compress = enabled }
}

// WithMaxMissedAcks ends a connection after n unacknowledged heartbeats. Zero disables the check.
func WithMaxMissedAcks(n int) Option {
	return func(c *Client) { c.maxMissedAcks = n }
}

func WithRateLimit(opts ...RateLimiterConfigOpt) Option {
	return func(c *Client) { c.limiterOpts = append(c.limiterOpts, opts...) }
}

// WithBackOff sets the reconnect delay policy used by Run.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = newBackOff }
}

// NewBot creates a gateway client. handler may be nil, in which case
// every event is logged and ignored.
func NewBot(token string, handler Handler, opts ...Option) *Client {
	c := &Client{
		token:          token,
		dialer:         websocket.DefaultDialer,
		logger:         slog.Default(),
		apiURL:         DiscordAPI,
		gatewayVersion: defaultGatewayVersion,
		intents:        intents.AllWithoutPrivileged,
		properties: ConnectionProperties{
			OS:      "linux",
			Browser: "cheesebot",
			Device:  "cheesebot",
		},
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}

	if handler == nil {
		handler = BaseHandler{Logger: c.logger}
	}
	c.handler = handler
	c.limiter = NewRateLimiter(c.limiterOpts...)
	c.rest = newRESTClient(c.httpClient, c.apiURL, token, c.logger)
	return c
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	return b
}

// GatewayMetadata fetches the websocket URL to connect to.
func (c *Client) GatewayMetadata(ctx context.Context) (*GatewayMetadata, error) {
	resBody, err := c.rest.do(ctx, fasthttp.MethodGet, "/gateway/bot", nil)
	if err != nil {
		return nil, &MetadataFetchError{Err: err}
	}

	var metadata GatewayMetadata
	if err := wireJSON.Unmarshal(resBody, &metadata); err != nil {
		return nil, &MetadataFetchError{Err: fmt.Errorf("could not unmarshal response body: %w", err)}
	}
	if metadata.URL == "" {
		return nil, &MetadataFetchError{Err: errors.New("response has no gateway url")}
	}
	return &metadata, nil
}

// OpenSession fetches gateway metadata and connects. The returned
// connection identifies on Hello and starts with no sequence number.
func (c *Client) OpenSession(ctx context.Context) (*Connection, error) {
	metadata, err := c.GatewayMetadata(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("received gateway metadata", "url", metadata.URL, "sessions_remaining", metadata.SessionStartLimit.Remaining)

	conn, err := c.dial(ctx, metadata.URL)
	if err != nil {
		return nil, err
	}

	identify := Identify{IdentifyData{
		Token:      c.token,
		Intents:    c.intents,
		Properties: c.properties,
		Compress:   c.compress,
	}}
	return newConnection(conn, &Sequence{}, c.connectionConfig(identify)), nil
}

// ResumeSession connects to the session's resume URL. The returned
// connection answers Hello with a Resume carrying the saved sequence number.
func (c *Client) ResumeSession(ctx context.Context, state ResumeState) (*Connection, error) {
	conn, err := c.dial(ctx, state.URL)
	if err != nil {
		return nil, err
	}

	sequence := &Sequence{}
	if state.Sequence.Valid {
		sequence.Store(state.Sequence.Value)
	}

	resume := Resume{ResumeData{
		Token:     c.token,
		SessionID: state.SessionID,
		Sequence:  state.Sequence.Value,
	}}
	return newConnection(conn, sequence, c.connectionConfig(resume)), nil
}

// connectionConfig starts a new send window: the gateway limit is per connection.
func (c *Client) connectionConfig(handshake OutboundFrame) connectionConfig {
	c.limiter.Reset()
	return connectionConfig{
		handshake:     handshake,
		handler:       c.handler,
		limiter:       c.limiter,
		maxMissedAcks: c.maxMissedAcks,
		logger:        c.logger,
	}
}

func (c *Client) dial(ctx context.Context, gateway string) (*websocket.Conn, error) {
	u, err := url.Parse(gateway)
	if err != nil {
		return nil, &ConnectError{URL: gateway, Err: err}
	}
	query := u.Query()
	query.Set("v", c.gatewayVersion)
	query.Set("encoding", "json")
	u.RawQuery = query.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		return nil, &ConnectError{URL: u.String(), Err: err}
	}
	return conn, nil
}

// Run keeps a gateway session alive until ctx is cancelled or the gateway
// rejects the configuration. Dropped connections are resumed when the
// session allows it and re-identified otherwise.
func (c *Client) Run(ctx context.Context) error {
	b := backoff.WithContext(c.newBackOff(), ctx)

	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var closeErr *CloseError
		if errors.As(err, &closeErr) && closeErr.Fatal() {
			return err
		}
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == fasthttp.StatusUnauthorized {
			return err
		}

		if c.lastSessionReady() {
			b.Reset()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		c.logger.Warn("gateway connection ended, reconnecting", "error", err, "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	c.mu.Lock()
	resume := c.resume
	c.mu.Unlock()

	var conn *Connection
	var err error
	if resume != nil {
		c.logger.Info("resuming session", "session_id", resume.SessionID, "sequence", resume.Sequence.String())
		conn, err = c.ResumeSession(ctx, *resume)
		if err != nil {
			c.setResume(nil, false)
			return err
		}
	} else {
		conn, err = c.OpenSession(ctx)
		if err != nil {
			c.setResume(nil, false)
			return err
		}
	}

	err = conn.Run(ctx)

	var signal *ProtocolSignal
	switch {
	case errors.As(err, &signal) && !signal.Resumable:
		c.setResume(nil, conn.ReachedReady())
	default:
		if state, ok := conn.ResumeState(); ok {
			c.setResume(&state, conn.ReachedReady())
		} else if resume != nil && keepsSession(err) {
			next := *resume
			next.Sequence = conn.Sequence()
			c.setResume(&next, conn.ReachedReady())
		} else {
			c.setResume(nil, conn.ReachedReady())
		}
	}
	return err
}

func (c *Client) setResume(state *ResumeState, ready bool) {
	c.mu.Lock()
	c.resume = state
	c.lastReady = ready
	c.mu.Unlock()
}

func (c *Client) lastSessionReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReady
}

// CanResume reports whether the next connection will resume instead of identifying.
func (c *Client) CanResume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resume != nil
}
