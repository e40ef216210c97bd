package pool

import (
	"errors"
	"fmt"
	"sync"

	"MiniMR/internal/logger"
	"MiniMR/internal/mapreduce"
	"MiniMR/internal/storage"
	"MiniMR/internal/types"
)

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("pool is closed")
	// ErrSkipped is reported to observers for jobs discarded because an
	// earlier job of the same phase failed.
	ErrSkipped = errors.New("skipped after phase failure")
)

// Config for creating a worker pool
type Config struct {
	Size     int            // Number of workers and capacity of the job queue
	Layout   storage.Layout // Where partitions and reduce outputs are written
	Logger   *logger.Logger
	Observer Observer
}

// Job is one unit of work: a task and the application that executes it.
type Job struct {
	Task types.Task
	App  mapreduce.App
}

// Pool owns a fixed set of workers fed from a bounded FIFO queue.
//
// Every submitted job is counted as outstanding until the worker that ran it
// has returned from it, file writes included. Wait blocks on that count, so
// a phase is over only when its last job has finished, not when the queue
// has merely been emptied.
type Pool struct {
	workers  []*Worker
	jobs     chan Job
	app      mapreduce.App
	layout   storage.Layout
	observer Observer
	logger   *logger.Logger

	// sendMu keeps Close from closing jobs under a blocked Submit.
	sendMu sync.RWMutex
	closed bool

	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	failed  bool
	errs    []error

	wg sync.WaitGroup
}

// New starts cfg.Size workers sharing app.
func New(cfg Config, app mapreduce.App) (*Pool, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", cfg.Size)
	}
	if app == nil {
		return nil, fmt.Errorf("pool requires an application")
	}
	if cfg.Layout.Root == "" {
		return nil, fmt.Errorf("pool requires a storage root")
	}

	lg := cfg.Logger
	if lg == nil {
		lg = logger.New("INFO")
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	p := &Pool{
		jobs:     make(chan Job, cfg.Size),
		app:      app,
		layout:   cfg.Layout,
		observer: obs,
		logger:   lg.Named("pool"),
	}
	p.idle = sync.NewCond(&p.mu)

	for i := 0; i < cfg.Size; i++ {
		w := newWorker(p)
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go w.run()
	}

	p.logger.Info("Pool started: workers=%d queue_capacity=%d root=%s", cfg.Size, cap(p.jobs), cfg.Layout.Root)
	return p, nil
}

// Submit enqueues task, blocking while the queue is full. It refuses new
// work once the current phase has a failed job.
func (p *Pool) Submit(task types.Task) error {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	p.mu.Lock()
	if p.failed {
		err := errors.Join(p.errs...)
		p.mu.Unlock()
		return fmt.Errorf("phase aborted, not submitting %s: %w", task, err)
	}
	p.pending++
	p.mu.Unlock()

	p.observer.TaskSubmitted(task)
	p.jobs <- Job{Task: task, App: p.app}
	p.logger.Debug("Task submitted: %s", task)
	return nil
}

// Wait blocks until every submitted job has finished and returns the
// errors of the jobs that failed since the previous Wait.
func (p *Pool) Wait() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.pending > 0 {
		p.idle.Wait()
	}

	err := errors.Join(p.errs...)
	p.errs = nil
	p.failed = false
	return err
}

// Close stops accepting work, lets queued jobs drain and waits for every
// worker to exit.
func (p *Pool) Close() {
	p.sendMu.Lock()
	if p.closed {
		p.sendMu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.sendMu.Unlock()

	p.wg.Wait()
	p.logger.Info("Pool closed")
}

// WorkerIDs returns the identifiers of all workers in spawn order.
func (p *Pool) WorkerIDs() []string {
	ids := make([]string, len(p.workers))
	for i, w := range p.workers {
		ids[i] = w.ID
	}
	return ids
}

// Partitions returns the partition owned by each worker, in spawn order.
func (p *Pool) Partitions() []types.Partition {
	parts := make([]types.Partition, len(p.workers))
	for i, w := range p.workers {
		parts[i] = w.Partition()
	}
	return parts
}

func (p *Pool) Size() int {
	return len(p.workers)
}

func (p *Pool) Layout() storage.Layout {
	return p.layout
}

func (p *Pool) aborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

func (p *Pool) finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.errs = append(p.errs, err)
		p.failed = true
	}
	p.pending--
	if p.pending == 0 {
		p.idle.Broadcast()
	}
}
