package pool

import (
	"fmt"

	"MiniMR/internal/types"
)

// Observer is notified of task lifecycle transitions. Calls may arrive
// concurrently from every worker.
type Observer interface {
	TaskSubmitted(task types.Task)
	TaskStarted(workerID string, task types.Task)
	TaskFinished(workerID string, task types.Task, err error)
}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (o Observers) TaskSubmitted(task types.Task) {
	for _, obs := range o {
		obs.TaskSubmitted(task)
	}
}

func (o Observers) TaskStarted(workerID string, task types.Task) {
	for _, obs := range o {
		obs.TaskStarted(workerID, task)
	}
}

func (o Observers) TaskFinished(workerID string, task types.Task, err error) {
	for _, obs := range o {
		obs.TaskFinished(workerID, task, err)
	}
}

type nopObserver struct{}

func (nopObserver) TaskSubmitted(types.Task) {}
func (nopObserver) TaskStarted(string, types.Task) {}
func (nopObserver) TaskFinished(string, types.Task, error) {}

// TaskError identifies the task and worker behind a failed job.
type TaskError struct {
	Task     types.Task
	WorkerID string
	Err      error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s task %s on %s failed (worker %s): %v", e.Task.Kind, e.Task.ID, e.Task.Target(), e.WorkerID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
