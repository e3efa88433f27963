package session

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSweeperIntervalDefaults(t *testing.T) {
	store := NewMemoryStore(Options{})

	assert.Equal(t, DefaultSweepInterval, NewSweeper(store, SweeperConfig{}).Interval())
	assert.Equal(t, MinSweepInterval, NewSweeper(store, SweeperConfig{Interval: time.Millisecond}).Interval())
	assert.Equal(t, 5*time.Second, NewSweeper(store, SweeperConfig{Interval: 5 * time.Second}).Interval())
}

func TestSweeperRemovesExpiredSessions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clk := clock.NewMock()
	store := NewMemoryStore(Options{Clock: clk})
	ctx := context.Background()

	_, err := store.Create(ctx, testPrincipal(), time.Second)
	require.NoError(t, err)
	keep, err := store.Create(ctx, testPrincipal(), time.Hour)
	require.NoError(t, err)

	passes := make(chan int, 4)
	sweeper := NewSweeper(store, SweeperConfig{
		Interval: time.Minute,
		Clock:    clk,
		OnSweep: func(removed int, err error) {
			assert.NoError(t, err)
			passes <- removed
		},
	})
	sweeper.Start(ctx)
	defer sweeper.Stop()

	clk.Add(time.Minute)

	select {
	case removed := <-passes:
		assert.Equal(t, 1, removed)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run")
	}

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = store.Get(ctx, keep.ID)
	require.NoError(t, err)
}

func TestSweeperStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sweeper := NewSweeper(NewMemoryStore(Options{}), SweeperConfig{Clock: clock.NewMock()})
	sweeper.Stop()

	sweeper.Start(context.Background())
	sweeper.Stop()
	sweeper.Stop()
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	sweeper := NewSweeper(NewMemoryStore(Options{}), SweeperConfig{Clock: clock.NewMock()})
	sweeper.Start(ctx)

	cancel()
	done := make(chan struct{})
	go func() {
		sweeper.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not exit after cancellation")
	}
}
