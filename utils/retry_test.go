package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	rc := RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, Logger: zerolog.Nop()}

	attempts := 0
	err := rc.Do("flaky-op", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	rc := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: zerolog.Nop()}

	attempts := 0
	sentinel := errors.New("permanent")
	err := rc.Do("doomed-op", func() error {
		attempts++
		return sentinel
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, attempts)
}

func TestRetryFirstTrySuccess(t *testing.T) {
	rc := RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, Logger: zerolog.Nop()}

	start := time.Now()
	err := rc.Do("instant-op", func() error { return nil })

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "no backoff on immediate success")
}
