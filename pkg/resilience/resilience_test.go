package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerTransitions(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("feed:test", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     20 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})
	boom := errors.New("boom")

	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
	assert.Equal(t, "feed:test", cb.Name())
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "feed fetch http://feed.test", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, "feed fetch http://feed.test: timed out after 10ms", err.Error())

	assert.NoError(t, WithTimeout(context.Background(), 0, "unbounded", func(context.Context) error { return nil }))

	boom := errors.New("bad status")
	err = WithTimeout(context.Background(), time.Second, "feed fetch", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsTimeout(err))
}

func TestWithTimeoutParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithTimeout(ctx, time.Second, "feed fetch", func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTimeout(err))
}
