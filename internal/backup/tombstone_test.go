package backup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	calls []int
	n     int
	err   error
}

func (f *fakePurger) PurgeDeleted(ctx context.Context, olderThanDays int) (int, error) {
	f.calls = append(f.calls, olderThanDays)
	return f.n, f.err
}

func TestTombstonePurgerDefaultsRetentionTo30Days(t *testing.T) {
	store := &fakePurger{n: 3}
	p := NewTombstonePurger(store, TombstonePurgeConfig{})

	n, err := p.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []int{30}, store.calls)
}

func TestTombstonePurgerStartStopsOnContextCancel(t *testing.T) {
	store := &fakePurger{}
	p := NewTombstonePurger(store, TombstonePurgeConfig{Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}

func TestTombstonePurgerStop(t *testing.T) {
	store := &fakePurger{}
	p := NewTombstonePurger(store, TombstonePurgeConfig{Interval: time.Millisecond})

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	p.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
