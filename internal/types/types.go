package types

import (
	"fmt"

	"github.com/google/uuid"
)

// KeyValue is the intermediate key-value pair produced by mappers.
type KeyValue struct {
	Key   string
	Value string
}

// TaskKind tags the Task variant.
type TaskKind int

const (
	MapTask TaskKind = iota
	ReduceTask
)

func (k TaskKind) String() string {
	switch k {
	case MapTask:
		return "map"
	case ReduceTask:
		return "reduce"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Partition names the storage location holding the intermediate records of
// one worker. Its value is the owning worker's identifier.
type Partition string

// Task represents a single map or reduce task.
// Map tasks use Filename and SourcePath; reduce tasks use Partition.
type Task struct {
	ID         string
	Kind       TaskKind
	Filename   string
	SourcePath string
	Partition  Partition
}

// NewMapTask builds a map task for one input document.
func NewMapTask(filename, sourcePath string) Task {
	return Task{
		ID:         newTaskID(),
		Kind:       MapTask,
		Filename:   filename,
		SourcePath: sourcePath,
	}
}

// NewReduceTask builds the reduce task addressed to partition p.
func NewReduceTask(p Partition) Task {
	return Task{
		ID:        newTaskID(),
		Kind:      ReduceTask,
		Partition: p,
	}
}

// Target is the file or partition the task operates on.
func (t Task) Target() string {
	if t.Kind == MapTask {
		return t.SourcePath
	}
	return string(t.Partition)
}

func (t Task) String() string {
	return fmt.Sprintf("%s %s (%s)", t.Kind, t.ID, t.Target())
}

func newTaskID() string {
	return "task-" + uuid.New().String()[:8]
}
