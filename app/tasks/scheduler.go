package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/pressroom/app/database"
)

const (
	queueCapacity = 300
	taskTimeout   = 5 * time.Minute
	maxRetryDelay = 30 * time.Second
)

var (
	ErrQueueFull        = errors.New("task queue is full")
	ErrSchedulerStopped = errors.New("scheduler is stopped")
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	seeds       SeedSource
	userRepo    database.UserRepository
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
	retryDelay  func(attempt int) time.Duration
}

func NewScheduler(seeds SeedSource, userRepo database.UserRepository, interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if workerCount <= 0 {
		workerCount = 1
	}

	return &Scheduler{
		seeds:       seeds,
		userRepo:    userRepo,
		interval:    interval,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueCapacity),
		retryDelay:  backoff,
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.enqueueSyncTasks()

		if s.interval <= 0 {
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.reloadSeeds()
				s.enqueueSyncTasks()
			}
		}
	}()
}

// Stop cancels running tasks and waits for workers to exit. Queued tasks
// that were not picked up are dropped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if s.ctx.Err() != nil {
		return ErrSchedulerStopped
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Scheduler) reloadSeeds() {
	if err := s.seeds.Run(); err != nil {
		slog.Warn("Failed to reload account seeds", "error", err)
	}
}

func (s *Scheduler) enqueueSyncTasks() {
	seeds := s.seeds.GetSeeds()
	if len(seeds) == 0 {
		slog.Debug("No account seeds found")
		return
	}

	slog.Debug("Syncing account seeds", "count", len(seeds))

	for _, seed := range seeds {
		if err := s.EnqueueTask(NewSyncAccountTask(seed, s.userRepo)); err != nil {
			slog.Warn("Failed to enqueue SyncAccountTask", "account", seed.ID, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed",
		"worker_id", workerID,
		"type", string(task.GetType()),
		"id", task.GetID(),
		"retry_count", task.GetRetryCount(),
		"error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries",
			"type", string(task.GetType()),
			"id", task.GetID(),
			"retry_count", task.GetRetryCount(),
			"max_retries", task.GetMaxRetries(),
			"last_error", err)
		return
	}

	task.IncrementRetryCount()
	delay := s.retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled",
		"type", string(task.GetType()),
		"subject", task.GetSubject(),
		"retry_count", task.GetRetryCount(),
		"max_retries", task.GetMaxRetries(),
		"delay", delay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if err := s.EnqueueTask(task); err != nil {
				slog.Error("Failed to re-enqueue task for retry",
					"type", string(task.GetType()),
					"id", task.GetID(),
					"retry_count", task.GetRetryCount(),
					"error", err)
			}
		}
	}()
}

func backoff(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * time.Second
	return min(delay, maxRetryDelay)
}
