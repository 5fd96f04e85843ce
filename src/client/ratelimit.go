package client

import (
	"context"
	"time"

	"github.com/sasha-s/go-csync"
)

// The gateway accepts 120 frames per connection per 60 seconds.
const (
	defaultFramesPerWindow = 120
	defaultRateWindow      = time.Minute
)

// RateLimiter paces outbound gateway frames.
type RateLimiter interface {
	Wait(ctx context.Context) error
	Reset()
}

func NewRateLimiter(opts ...RateLimiterConfigOpt) RateLimiter {
	config := DefaultRateLimiterConfig()
	config.Apply(opts)

	return &rateLimiterImpl{
		config: *config,
		now:    time.Now,
	}
}

type rateLimiterImpl struct {
	mu csync.Mutex

	reset     time.Time
	remaining int

	config RateLimiterConfig
	now    func() time.Time
}

// Wait blocks until a frame may be sent or ctx is done.
func (l *rateLimiterImpl) Wait(ctx context.Context) error {
	if err := l.mu.CLock(ctx); err != nil {
		return err
	}
	defer l.mu.Unlock()

	now := l.now()
	if !now.Before(l.reset) {
		l.reset = now.Add(l.config.Window)
		l.remaining = l.config.FramesPerWindow
	}

	if l.remaining <= 0 {
		timer := time.NewTimer(l.reset.Sub(now))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		l.reset = l.now().Add(l.config.Window)
		l.remaining = l.config.FramesPerWindow
	}

	l.remaining--
	return nil
}

// Reset starts a fresh window, used when a new connection is opened.
func (l *rateLimiterImpl) Reset() {
	l.mu.Lock()
	l.reset = time.Time{}
	l.remaining = 0
	l.mu.Unlock()
}

func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		FramesPerWindow: defaultFramesPerWindow,
		Window:          defaultRateWindow,
	}
}

type RateLimiterConfig struct {
	FramesPerWindow int
	Window          time.Duration
}

type RateLimiterConfigOpt func(config *RateLimiterConfig)

func (c *RateLimiterConfig) Apply(opts []RateLimiterConfigOpt) {
	for _, opt := range opts {
		opt(c)
	}
}

func WithFramesPerWindow(frames int, window time.Duration) RateLimiterConfigOpt {
	return func(config *RateLimiterConfig) {
		config.FramesPerWindow = frames
		config.Window = window
	}
}
