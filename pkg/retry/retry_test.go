package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/code-escrow/pkg/retry/backoff"
)

func TestRealSleeper(t *testing.T) {
	sleeperImpl = &realSleeper{}

	start := time.Now()
	n, err := Retry(func() error { return errors.New("err") },
		Limit(2),
		Backoff(backoff.Constant(100*time.Millisecond), 100*time.Millisecond),
	)

	assert.NotNil(t, err)
	assert.EqualValues(t, 2, n)
	assert.True(t, 100*time.Millisecond <= time.Since(start))
	assert.True(t, 1*time.Second > time.Since(start))
}

func TestRetry_RetriableOnly(t *testing.T) {
	retriableErr := errors.New("retriable")
	strategies := []Strategy{Limit(5), RetriableErrors(retriableErr)}

	// Happy path always goes through
	attempts, err := Retry(func() error { return nil }, strategies...)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), attempts)

	attempts, err = Retry(func() error { return errors.New("unknown") }, strategies...)
	assert.Error(t, err)
	assert.Equal(t, uint(1), attempts)

	attempts, err = Retry(func() error { return retriableErr }, strategies...)
	assert.Equal(t, retriableErr, err)
	assert.Equal(t, uint(5), attempts)

	var calls int
	attempts, err = Retry(func() error {
		calls++
		if calls < 3 {
			return retriableErr
		}
		return nil
	}, strategies...)
	assert.NoError(t, err)
	assert.Equal(t, uint(3), attempts)
}

func TestRetry_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	attempts, err := Retry(func() error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("transient")
	}, Canceled(ctx))
	assert.Error(t, err)
	assert.Equal(t, uint(2), attempts)
}
