package pool

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"

	"MiniMR/internal/logger"
	"MiniMR/internal/mapreduce"
	"MiniMR/internal/storage"
	"MiniMR/internal/types"
)

// Worker is a long-lived execution unit. Its ID never changes and also
// names the partition that map tasks run on it write to.
type Worker struct {
	ID     string
	pool   *Pool
	logger *logger.Logger
}

func newWorker(p *Pool) *Worker {
	id := uuid.New().String()
	return &Worker{
		ID:     id,
		pool:   p,
		logger: p.logger.Named("worker-" + id[:8]),
	}
}

// Partition is the partition owned by this worker.
func (w *Worker) Partition() types.Partition {
	return types.Partition(w.ID)
}

func (w *Worker) run() {
	defer w.pool.wg.Done()

	for job := range w.pool.jobs {
		w.handle(job)
	}
	w.logger.Debug("Queue closed, worker exiting")
}

func (w *Worker) handle(job Job) {
	if w.pool.aborted() {
		w.logger.Debug("Discarding %s: phase aborted", job.Task)
		w.pool.observer.TaskFinished(w.ID, job.Task, ErrSkipped)
		w.pool.finish(nil)
		return
	}

	w.pool.observer.TaskStarted(w.ID, job.Task)

	err := w.execute(job)
	if err != nil {
		err = &TaskError{Task: job.Task, WorkerID: w.ID, Err: err}
		w.logger.Error("%v", err)
	} else {
		w.logger.Debug("Task completed: %s", job.Task)
	}

	w.pool.observer.TaskFinished(w.ID, job.Task, err)
	w.pool.finish(err)
}

func (w *Worker) execute(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application panicked: %v", r)
		}
	}()

	switch job.Task.Kind {
	case types.MapTask:
		return w.doMap(job)
	case types.ReduceTask:
		return w.doReduce(job)
	default:
		return fmt.Errorf("unknown task kind %v", job.Task.Kind)
	}
}

// doMap maps one input document and appends its records to this worker's
// partition.
func (w *Worker) doMap(job Job) error {
	task := job.Task
	layout := w.pool.layout

	contents, err := storage.ReadFile(task.SourcePath)
	if err != nil {
		return fmt.Errorf("%w: failed to read input %s: %w", mapreduce.ErrIO, task.SourcePath, err)
	}

	kvs := job.App.Map(task.Filename, contents)

	if err := storage.EnsureDir(layout.PartitionDir(w.Partition())); err != nil {
		return fmt.Errorf("%w: %w", mapreduce.ErrIO, err)
	}

	path := layout.IntermediatePath(w.Partition(), task.Filename)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: failed to open partition file %s: %w", mapreduce.ErrIO, path, err)
	}
	if err := mapreduce.WriteRecords(f, kvs); err != nil {
		f.Close()
		return fmt.Errorf("failed to write partition file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: failed to close partition file %s: %w", mapreduce.ErrIO, path, err)
	}

	w.logger.Debug("Map wrote %d records to %s", len(kvs), path)
	return nil
}

// doReduce reduces every record in the addressed partition and writes the
// result to a new output file. A partition whose directory was never
// created holds no records.
func (w *Worker) doReduce(job Job) error {
	part := job.Task.Partition
	layout := w.pool.layout
	dir := layout.PartitionDir(part)

	files, err := storage.ListFiles(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: failed to list partition %s: %w", mapreduce.ErrIO, dir, err)
		}
		w.logger.Debug("Partition %s has no directory, reducing nothing", part)
	}

	var kvs []types.KeyValue
	for _, file := range files {
		data, err := storage.ReadFile(file.Path)
		if err != nil {
			return fmt.Errorf("%w: failed to read partition file %s: %w", mapreduce.ErrIO, file.Path, err)
		}
		records, err := mapreduce.ParseRecords(data, file.Path)
		if err != nil {
			return err
		}
		kvs = append(kvs, records...)
	}

	out, err := mapreduce.Reduce(job.App, kvs)
	if err != nil {
		return fmt.Errorf("partition %s: %w", part, err)
	}

	if err := storage.EnsureDir(layout.OutputDir()); err != nil {
		return fmt.Errorf("%w: %w", mapreduce.ErrIO, err)
	}

	path := layout.OutputPath(part)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: failed to create reduce output %s: %w", mapreduce.ErrIO, path, err)
	}
	if err := mapreduce.WriteOutput(f, out); err != nil {
		f.Close()
		return fmt.Errorf("failed to write reduce output %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: failed to close reduce output %s: %w", mapreduce.ErrIO, path, err)
	}

	w.logger.Debug("Reduce read %d files from %s, wrote %d keys to %s", len(files), dir, len(out), path)
	return nil
}
