package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type heartbeater struct {
	sender    *sender
	sequence  *Sequence
	maxMissed int
	logger    *slog.Logger

	unacked  atomic.Int32
	lastSent atomic.Int64
	latency  atomic.Int64

	zombie     chan struct{}
	zombieOnce sync.Once

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newHeartbeater(s *sender, seq *Sequence, maxMissed int, logger *slog.Logger) *heartbeater {
	return &heartbeater{
		sender:    s,
		sequence:  seq,
		maxMissed: maxMissed,
		logger:    logger,
		zombie:    make(chan struct{}),
	}
}

// start spawns the periodic task. It has no effect if the task is already running.
func (h *heartbeater) start(ctx context.Context, interval time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		return
	}

	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	go h.run(ctx, interval, h.done)
}

// stop cancels the periodic task and waits for it to return.
func (h *heartbeater) stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (h *heartbeater) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.Debug("starting heartbeat", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("stopping heartbeat")
			return

		case <-ticker.C:
			if h.maxMissed > 0 && int(h.unacked.Load()) >= h.maxMissed {
				h.logger.Warn("heartbeat not acknowledged, connection is stale", "missed", h.unacked.Load())
				h.zombieOnce.Do(func() { close(h.zombie) })
				return
			}

			if err := h.beat(ctx); err != nil {
				if errors.Is(err, ErrSendClosed) || ctx.Err() != nil {
					return
				}
				h.logger.Error("failed to send heartbeat", "error", err)
			}
		}
	}
}

// beat enqueues one heartbeat carrying the current sequence number.
func (h *heartbeater) beat(ctx context.Context) error {
	seq := h.sequence.Load()
	if err := h.sender.Send(ctx, Heartbeat{LastSequence: seq}); err != nil {
		return err
	}

	h.unacked.Add(1)
	h.lastSent.Store(time.Now().UnixNano())
	h.logger.Debug("sent heartbeat", "sequence", seq.String())
	return nil
}

func (h *heartbeater) ack() {
	h.unacked.Store(0)
	if sent := h.lastSent.Load(); sent != 0 {
		h.latency.Store(time.Now().UnixNano() - sent)
	}
	h.logger.Debug("received heartbeat ack")
}

func (h *heartbeater) stale() <-chan struct{} {
	return h.zombie
}
