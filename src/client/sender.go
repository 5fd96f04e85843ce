package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const outboundQueueSize = 16

// Transport is the part of *websocket.Conn a connection uses.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// sender is the ordered multi-producer queue in front of the single
// websocket writer. Producers are the read loop and the heartbeat task.
type sender struct {
	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

func newSender(logger *slog.Logger) *sender {
	return &sender{
		queue:  make(chan []byte, outboundQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Send encodes f and enqueues it. After close it returns ErrSendClosed.
func (s *sender) Send(ctx context.Context, f OutboundFrame) error {
	payload, err := Encode(f)
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return ErrSendClosed
	default:
	}

	select {
	case <-s.done:
		return ErrSendClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.queue <- payload:
		return nil
	}
}

func (s *sender) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// writeLoop is the only code that writes data frames to conn. It returns
// nil once the sender is closed and the write error otherwise.
func (s *sender) writeLoop(conn Transport, limiter RateLimiter) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-s.done:
			return nil
		case payload := <-s.queue:
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.close()
				return &SendError{Err: err}
			}
			s.logger.Debug("frame sent", "bytes", len(payload))
		}
	}
}
