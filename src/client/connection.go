package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// State is the protocol state of one connection.
type State int32

const (
	StateAwaitingHello State = iota
	StateIdentified
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingHello:
		return "awaiting hello"
	case StateIdentified:
		return "identified"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const closeWriteTimeout = time.Second

// ResumeState is what a later connection needs to resume this session.
type ResumeState struct {
	SessionID string
	URL       string
	Sequence  Seq
}

type connectionConfig struct {
	handshake     OutboundFrame
	handler       Handler
	limiter       RateLimiter
	maxMissedAcks int
	logger        *slog.Logger
}

type inboundMessage struct {
	messageType int
	data        []byte
}

// Connection is one live gateway session. It is owned by the goroutine
// that calls Run and is single use.
type Connection struct {
	conn      Transport
	sender    *sender
	sequence  *Sequence
	heartbeat *heartbeater
	config    connectionConfig
	logger    *slog.Logger

	state atomic.Int32
	ready atomic.Bool

	mu        sync.Mutex
	sessionID string
	resumeURL string

	writeErr   chan error
	writerDone chan struct{}
	closeOnce  sync.Once
}

func newConnection(conn Transport, sequence *Sequence, config connectionConfig) *Connection {
	if config.logger == nil {
		config.logger = slog.Default()
	}
	if config.handler == nil {
		config.handler = BaseHandler{Logger: config.logger}
	}
	if config.limiter == nil {
		config.limiter = NewRateLimiter()
	}

	s := newSender(config.logger)
	return &Connection{
		conn:      conn,
		sender:    s,
		sequence:  sequence,
		heartbeat: newHeartbeater(s, sequence, config.maxMissedAcks, config.logger),
		config:    config,
		logger:    config.logger,
		writeErr:  make(chan error, 1),
	}
}

func (c *Connection) State() State {
	return State(c.state.Load())
}

// Sequence returns the last dispatch sequence number seen.
func (c *Connection) Sequence() Seq {
	return c.sequence.Load()
}

// Latency is the round trip of the last acknowledged heartbeat.
func (c *Connection) Latency() time.Duration {
	return time.Duration(c.heartbeat.latency.Load())
}

// ReachedReady reports whether a READY or RESUMED dispatch was received.
func (c *Connection) ReachedReady() bool {
	return c.ready.Load()
}

// ResumeState returns the data needed to resume, or false if the session never became ready.
func (c *Connection) ResumeState() (ResumeState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID == "" || c.resumeURL == "" {
		return ResumeState{}, false
	}
	return ResumeState{SessionID: c.sessionID, URL: c.resumeURL, Sequence: c.sequence.Load()}, true
}

// Run reads frames until the connection ends and returns why it ended:
// a *ProtocolSignal, *CloseError, *SendError, ErrHeartbeatTimeout, the
// read error, or the context error. The connection is closed on return.
func (c *Connection) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.writerDone = make(chan struct{})
	go func() {
		defer close(c.writerDone)
		if err := c.sender.writeLoop(c.conn, c.config.limiter); err != nil {
			c.writeErr <- err
		}
	}()

	defer func() { c.teardown(err) }()

	messages := make(chan inboundMessage, 10)
	readErr := make(chan error, 1)
	go c.readLoop(ctx, messages, readErr)

	c.logger.Info("started listening for messages")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			return asCloseError(err)

		case err := <-c.writeErr:
			return err

		case <-c.heartbeat.stale():
			return ErrHeartbeatTimeout

		case message := <-messages:
			if err := c.handleMessage(ctx, message); err != nil {
				return err
			}
		}
	}
}

func (c *Connection) readLoop(ctx context.Context, messages chan<- inboundMessage, readErr chan<- error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}

		select {
		case messages <- inboundMessage{messageType: messageType, data: data}:
		case <-ctx.Done():
			return
		}
	}
}

// handleMessage returns a non-nil error only when the connection must end.
func (c *Connection) handleMessage(ctx context.Context, message inboundMessage) error {
	frame, err := Decode(message.messageType, message.data)
	if err != nil {
		c.logger.Error("error decoding gateway message", "error", err)
		return nil
	}
	return c.handleFrame(ctx, frame)
}

func (c *Connection) handleFrame(ctx context.Context, frame Frame) error {
	if _, isHello := frame.(Hello); !isHello && c.State() == StateAwaitingHello {
		c.logger.Warn("unexpected frame before hello", "op", frame.Opcode().String())
	}

	switch f := frame.(type) {
	case Hello:
		if c.State() != StateAwaitingHello {
			c.logger.Warn("ignoring repeated hello")
			return nil
		}
		return c.onHello(ctx, f)

	case Dispatch:
		c.sequence.Store(f.Sequence)
		c.route(ctx, f)

	case HeartbeatRequest:
		c.logger.Info("gateway requested a heartbeat")
		if err := c.heartbeat.beat(ctx); err != nil {
			return c.sendFailed(err)
		}

	case HeartbeatACK:
		c.heartbeat.ack()

	case Reconnect:
		c.logger.Info("gateway requested reconnect")
		return &ProtocolSignal{Kind: SignalReconnect, Resumable: true}

	case InvalidSession:
		c.logger.Warn("invalid session", "resumable", f.Resumable)
		return &ProtocolSignal{Kind: SignalInvalidSession, Resumable: f.Resumable}
	}

	return nil
}

func (c *Connection) onHello(ctx context.Context, hello Hello) error {
	handshake := c.config.handshake
	if err := c.sender.Send(ctx, handshake); err != nil {
		return c.sendFailed(err)
	}

	c.heartbeat.start(ctx, hello.Interval())
	c.state.Store(int32(StateIdentified))

	c.logger.Info("received hello", "heartbeat_interval", hello.Interval(), "handshake", handshake.Opcode().String())
	return nil
}

func (c *Connection) route(ctx context.Context, d Dispatch) {
	event, err := DecodeEvent(d)
	if err != nil {
		c.logger.Error("error decoding dispatch", "event", d.Event, "sequence", d.Sequence, "error", err)
		return
	}

	c.logger.Debug("received dispatch", "event", d.Event, "sequence", d.Sequence)

	switch e := event.(type) {
	case *Ready:
		c.mu.Lock()
		c.sessionID = e.SessionID
		c.resumeURL = e.ResumeGatewayURL
		c.mu.Unlock()
		c.ready.Store(true)
		c.config.handler.OnReady(ctx, e)

	case *Resumed:
		c.ready.Store(true)
		c.logger.Info("session resumed", "sequence", d.Sequence)

	case *Interaction:
		c.config.handler.OnInteractionCreate(ctx, e)

	case *UnknownEvent:
		c.config.handler.OnEvent(ctx, e.Name, e.Data)
	}
}

// sendFailed prefers the writer's error over the generic closed-channel error.
func (c *Connection) sendFailed(err error) error {
	if errors.Is(err, ErrSendClosed) {
		select {
		case werr := <-c.writeErr:
			return werr
		default:
		}
	}
	var se *SendError
	if errors.As(err, &se) {
		return se
	}
	return &SendError{Err: err}
}

// Close ends a connection that is not running. Run closes its own connection.
func (c *Connection) Close() error {
	c.teardown(context.Canceled)
	return nil
}

func (c *Connection) teardown(reason error) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))

		c.heartbeat.stop()
		c.sender.close()
		if c.writerDone != nil {
			<-c.writerDone
		}

		code := websocket.CloseNormalClosure
		if keepsSession(reason) {
			code = websocket.CloseServiceRestart
		}
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(closeWriteTimeout))
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("error closing websocket", "error", err)
		}

		c.logger.Info("connection closed", "reason", reason, "latency", c.Latency())
	})
}

// keepsSession reports whether the server-side session should survive the close.
// Close codes 1000 and 1001 invalidate it.
func keepsSession(reason error) bool {
	if errors.Is(reason, context.Canceled) || errors.Is(reason, context.DeadlineExceeded) {
		return false
	}
	var signal *ProtocolSignal
	if errors.As(reason, &signal) {
		return signal.Resumable
	}
	return true
}
