package backup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerEnqueueRejectsWhenFull(t *testing.T) {
	s := NewScheduler(zerolog.Nop(), 1, 2)
	// No workers started: nothing drains the queue.

	require.NoError(t, s.Enqueue(Task{JobID: "a", Run: func(context.Context) {}}))
	require.NoError(t, s.Enqueue(Task{JobID: "b", Run: func(context.Context) {}}))
	err := s.Enqueue(Task{JobID: "c", Run: func(context.Context) {}})
	require.ErrorIs(t, err, ErrQueueFull)

	assert.Equal(t, 2, s.QueueDepth())
}

func TestSchedulerSerializesSameResourceClass(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(zerolog.Nop(), 4, 16)
	s.Start(ctx)

	var active, maxActive, done int32
	var mu sync.Mutex

	run := func(context.Context) {
		n := atomic.AddInt32(&active, 1)
		mu.Lock()
		if n > maxActive {
			maxActive = n
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		atomic.AddInt32(&done, 1)
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Enqueue(Task{JobID: "job", Classes: []string{ClassDatabase}, Run: run}))
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&done) == 5
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), maxActive, "database class must admit one task at a time")
}

func TestSchedulerDistinctClassesRunConcurrently(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(zerolog.Nop(), 2, 16)
	s.Start(ctx)

	filesStarted := make(chan struct{})
	release := make(chan struct{})
	var dbDone atomic.Bool

	require.NoError(t, s.Enqueue(Task{JobID: "files", Classes: []string{ClassFiles}, Run: func(context.Context) {
		close(filesStarted)
		<-release
	}}))

	<-filesStarted
	require.NoError(t, s.Enqueue(Task{JobID: "db", Classes: []string{ClassDatabase}, Run: func(context.Context) {
		dbDone.Store(true)
	}}))

	// The database task must finish while the files task still holds its class.
	require.Eventually(t, dbDone.Load, 5*time.Second, 10*time.Millisecond)
	close(release)
}

func TestSchedulerBothClassesBlockSingleClassTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(zerolog.Nop(), 2, 16)
	s.Start(ctx)

	bothStarted := make(chan struct{})
	release := make(chan struct{})
	var filesRan atomic.Bool

	require.NoError(t, s.Enqueue(Task{JobID: "both", Classes: []string{ClassFiles, ClassDatabase}, Run: func(context.Context) {
		close(bothStarted)
		<-release
	}}))
	<-bothStarted

	require.NoError(t, s.Enqueue(Task{JobID: "files", Classes: []string{ClassFiles}, Run: func(context.Context) {
		filesRan.Store(true)
	}}))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, filesRan.Load(), "files task must wait for the both-kind task")

	close(release)
	require.Eventually(t, filesRan.Load, 5*time.Second, 10*time.Millisecond)
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler(zerolog.Nop(), 2, 4)
	s.Start(ctx)
	cancel()

	finished := make(chan struct{})
	go func() {
		s.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not exit after cancel")
	}
}
