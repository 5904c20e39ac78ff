package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilNextRun(t *testing.T) {
	t.Parallel()

	daily := NewDaily(7, time.UTC, slog.New(slog.DiscardHandler))

	before := time.Date(2026, 8, 29, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, 2*time.Hour, daily.untilNextRun(before))

	after := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 22*time.Hour, daily.untilNextRun(after))

	exactly := time.Date(2026, 8, 29, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, 24*time.Hour, daily.untilNextRun(exactly))
}

func TestRunExecutesImmediatelyAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	daily := NewDaily(7, time.UTC, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{}, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- daily.Run(ctx, func(context.Context) error {
			ran <- struct{}{}
			return nil
		})
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("initial run did not happen")
	}

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
