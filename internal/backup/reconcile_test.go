package backup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStaleFailer struct {
	mu     sync.Mutex
	calls  int
	reaped int64
	err    error
	olders []time.Duration
}

func (f *fakeStaleFailer) FailStale(_ context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.olders = append(f.olders, olderThan)
	return f.reaped, f.err
}

func (f *fakeStaleFailer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestReaperSweepsBothTables(t *testing.T) {
	jobs := &fakeStaleFailer{reaped: 2}
	restores := &fakeStaleFailer{reaped: 1}

	r := NewReaper(zerolog.Nop(), jobs, restores, 2*time.Hour, time.Minute)
	r.sweep(context.Background())

	assert.Equal(t, 1, jobs.callCount())
	assert.Equal(t, 1, restores.callCount())
	assert.Equal(t, []time.Duration{2 * time.Hour}, jobs.olders)
}

func TestReaperSweepsAtStartupAndOnTicks(t *testing.T) {
	jobs := &fakeStaleFailer{}
	restores := &fakeStaleFailer{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewReaper(zerolog.Nop(), jobs, restores, time.Hour, 20*time.Millisecond)
	go r.Run(ctx)

	require.Eventually(t, func() bool {
		return jobs.callCount() >= 3 && restores.callCount() >= 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReaperSurvivesStoreErrors(t *testing.T) {
	jobs := &fakeStaleFailer{err: context.DeadlineExceeded}
	restores := &fakeStaleFailer{reaped: 1}

	r := NewReaper(zerolog.Nop(), jobs, restores, time.Hour, time.Minute)
	r.sweep(context.Background())

	// A job-table error must not skip the restore sweep.
	assert.Equal(t, 1, restores.callCount())
}

func TestReaperStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewReaper(zerolog.Nop(), &fakeStaleFailer{}, &fakeStaleFailer{}, time.Hour, time.Minute)

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
