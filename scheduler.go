package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TaskResult is the outcome of one acquisition.
type TaskResult struct {
	Worker  string
	Token   string
	Error   error
	Fatal   bool
	Elapsed time.Duration
}

// Success reports whether a token was acquired.
func (r TaskResult) Success() bool {
	return r.Error == nil && r.Token != ""
}

type Worker struct {
	id     string
	logger Logger
}

// Scheduler runs independent acquisitions concurrently. Every acquisition
// gets a fresh solver from the factory; failures are reported, not retried.
type Scheduler struct {
	workers      []*Worker
	workChan     chan struct{}
	resultsChan  chan TaskResult
	wg           sync.WaitGroup
	factory      SolverFactory
	logger       Logger
	staggerDelay time.Duration
	cancel       context.CancelFunc
	done         <-chan struct{}
	fatalOnce    sync.Once
	fatalErr     error
	stopped      atomic.Bool
}

func NewScheduler(workerCount int, factory SolverFactory, staggerDelay time.Duration, logger Logger) *Scheduler {
	s := &Scheduler{
		workers:      make([]*Worker, workerCount),
		workChan:     make(chan struct{}, workerCount*2),
		resultsChan:  make(chan TaskResult, workerCount*2),
		factory:      factory,
		logger:       logger,
		staggerDelay: staggerDelay,
	}

	for i := range s.workers {
		id := generateWorkerID()
		s.workers[i] = &Worker{id: id, logger: &workerLogger{id: id, base: logger}}
	}
	return s
}

func generateWorkerID() string {
	return uuid.New().String()[:8]
}

// workerLogger wraps a logger with worker ID prefix.
type workerLogger struct {
	id   string
	base Logger
}

func (w *workerLogger) Log(format string, args ...any) {
	w.base.Log("[%s] "+format, append([]any{w.id}, args...)...)
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = ctx.Done()

	for i, worker := range s.workers {
		s.wg.Add(1)
		go s.runWorker(ctx, worker)

		if s.staggerDelay > 0 && i < len(s.workers)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.staggerDelay):
			}
		}
	}
}

func (s *Scheduler) handleFatalError(worker *Worker, err error) {
	s.fatalOnce.Do(func() {
		s.fatalErr = err
		s.stopped.Store(true)
		s.logger.Log("FATAL ERROR: %v - stopping all workers", err)

		if s.cancel != nil {
			s.cancel()
		}

		select {
		case s.resultsChan <- TaskResult{Worker: worker.id, Fatal: true, Error: err}:
		default:
		}
	})
}

func (s *Scheduler) runWorker(ctx context.Context, worker *Worker) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-s.workChan:
			if !ok {
				return
			}
			if s.stopped.Load() {
				return
			}

			result := s.acquire(ctx, worker)
			if result.Fatal {
				s.handleFatalError(worker, result.Error)
				return
			}

			select {
			case s.resultsChan <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}

// acquire performs exactly one acquisition with a fresh solver.
func (s *Scheduler) acquire(ctx context.Context, worker *Worker) TaskResult {
	start := time.Now()
	result := TaskResult{Worker: worker.id}

	solver, err := s.factory(ctx, worker.logger)
	if err == nil {
		result.Token, err = solver.GetToken(ctx)
	}
	result.Elapsed = time.Since(start)

	if err != nil {
		result.Error = err
		result.Fatal = IsFatalError(err)
		worker.logger.Log("Failed after %s (%s): %v", result.Elapsed.Round(time.Millisecond), KindOf(err), err)
		return result
	}
	worker.logger.Log("Token acquired in %s", result.Elapsed.Round(time.Millisecond))
	return result
}

// Submit queues one acquisition. It returns false once the scheduler has
// stopped on a fatal error.
func (s *Scheduler) Submit(ctx context.Context) bool {
	if s.stopped.Load() {
		return false
	}
	select {
	case s.workChan <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	}
}

// Done is closed once the scheduler stops, on a fatal error or when the
// context passed to Start ends. The fatal result itself may not reach
// Results if that channel is full; Err still reports it.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Err returns the fatal error that stopped the scheduler, if any. It is
// only meaningful after Done is closed.
func (s *Scheduler) Err() error {
	if s.stopped.Load() {
		return s.fatalErr
	}
	return nil
}

// Results returns the results channel for reading task outcomes.
func (s *Scheduler) Results() <-chan TaskResult {
	return s.resultsChan
}

// Close shuts down the scheduler and waits for workers to finish.
// No Submit may be in flight.
func (s *Scheduler) Close() {
	close(s.workChan)
	s.wg.Wait()
	if s.cancel != nil {
		s.cancel()
	}
	close(s.resultsChan)
}

// WorkerCount returns the number of workers.
func (s *Scheduler) WorkerCount() int {
	return len(s.workers)
}
