package backup

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Resource classes serialize mutually destructive work. At most one task
// holds a given class at a time; a "both" backup holds files and database
// together.
const (
	ClassFiles    = "files"
	ClassDatabase = "database"
	ClassBorg     = "borg"
)

// Task is a unit of queued work. Run is invoked only after every listed
// resource class has been acquired, so a queued task never reports itself as
// running before it can actually make progress.
type Task struct {
	JobID   string
	Classes []string
	Run     func(ctx context.Context)
}

// Scheduler is a bounded in-process work queue with a fixed worker pool and
// one-slot semaphores per resource class.
type Scheduler struct {
	logger  zerolog.Logger
	queue   chan Task
	workers int
	gates   map[string]*semaphore.Weighted
	wg      sync.WaitGroup
}

func NewScheduler(logger zerolog.Logger, workers, queueSize int) *Scheduler {
	return &Scheduler{
		logger:  logger.With().Str("component", "scheduler").Logger(),
		queue:   make(chan Task, queueSize),
		workers: workers,
		gates: map[string]*semaphore.Weighted{
			ClassFiles:    semaphore.NewWeighted(1),
			ClassDatabase: semaphore.NewWeighted(1),
			ClassBorg:     semaphore.NewWeighted(1),
		},
	}
}

// Start launches the worker pool. Workers exit when ctx is canceled; tasks
// still queued at that point are abandoned and swept by the reaper.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.work(ctx)
		}()
	}
	s.logger.Info().Int("workers", s.workers).Int("queue_size", cap(s.queue)).Msg("scheduler started")
}

// Wait blocks until every worker has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Enqueue adds a task without blocking. When the queue is full it returns
// ErrQueueFull and the caller decides what to record.
func (s *Scheduler) Enqueue(t Task) error {
	select {
	case s.queue <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth reports the number of tasks waiting for a worker.
func (s *Scheduler) QueueDepth() int {
	return len(s.queue)
}

func (s *Scheduler) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.queue:
			s.execute(ctx, t)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, t Task) {
	// Acquire classes in sorted order so two tasks wanting the same pair
	// can never deadlock against each other.
	classes := slices.Clone(t.Classes)
	slices.Sort(classes)

	var held []*semaphore.Weighted
	release := func() {
		for _, g := range held {
			g.Release(1)
		}
	}

	for _, class := range classes {
		gate, ok := s.gates[class]
		if !ok {
			s.logger.Error().Str("job_id", t.JobID).Str("class", class).Msg("unknown resource class")
			release()
			return
		}
		if err := gate.Acquire(ctx, 1); err != nil {
			release()
			return
		}
		held = append(held, gate)
	}
	defer release()

	s.logger.Debug().Str("job_id", t.JobID).Strs("classes", classes).Msg("task acquired resource classes")
	t.Run(ctx)
}
