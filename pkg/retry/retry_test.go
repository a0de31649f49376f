package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cacheforge/tiercache/pkg/retry"
)

func TestExponentialBackoff_RetriesUntilSuccess(t *testing.T) {
	policy := retry.NewExponentialBackoff(retry.Config{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  time.Second,
		MaxRetries:      5,
	})

	attempts := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExponentialBackoff_GivesUpAfterMaxRetries(t *testing.T) {
	policy := retry.NewExponentialBackoff(retry.Config{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  time.Second,
		MaxRetries:      2,
	})

	boom := errors.New("still down")
	attempts := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.LessOrEqual(t, attempts, 3)
}

func TestNoRetry_RunsOnce(t *testing.T) {
	attempts := 0
	err := retry.NoRetry{}.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("fails")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
