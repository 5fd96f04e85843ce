package client

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderWritesInOrder(t *testing.T) {
	ft := newFakeTransport()
	s := newSender(discardLogger())

	done := make(chan error, 1)
	go func() { done <- s.writeLoop(ft, NewRateLimiter()) }()

	ctx := context.Background()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, s.Send(ctx, Heartbeat{LastSequence: SeqOf(i)}))
	}
	for i := 1; i <= 5; i++ {
		frame := ft.next(t)
		assert.Equal(t, 1, frame.Op)
		assert.JSONEq(t, strconv.Itoa(i), string(frame.D))
	}

	s.close()
	assert.NoError(t, waitResult(t, done))
}

func TestSenderClosed(t *testing.T) {
	s := newSender(discardLogger())
	s.close()
	s.close()

	err := s.Send(context.Background(), Heartbeat{})
	assert.ErrorIs(t, err, ErrSendClosed)
}

func TestSenderRespectsContext(t *testing.T) {
	s := newSender(discardLogger())
	for i := 0; i < outboundQueueSize; i++ {
		require.NoError(t, s.Send(context.Background(), Heartbeat{}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Send(ctx, Heartbeat{}), context.DeadlineExceeded)
}

func TestSenderWriteFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.failWrites(errors.New("broken pipe"))
	s := newSender(discardLogger())

	done := make(chan error, 1)
	go func() { done <- s.writeLoop(ft, NewRateLimiter()) }()

	require.NoError(t, s.Send(context.Background(), Heartbeat{}))

	err := waitResult(t, done)
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.EqualError(t, se.Err, "broken pipe")

	assert.ErrorIs(t, s.Send(context.Background(), Heartbeat{}), ErrSendClosed)
}
