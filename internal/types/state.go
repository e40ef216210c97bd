package types

import "time"

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskSubmitted TaskStatus = "submitted"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Phase is the stage a run is in.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseMap     Phase = "map"
	PhaseReduce  Phase = "reduce"
	PhaseCombine Phase = "combine"
	PhaseDone    Phase = "done"
	PhaseFailed  Phase = "failed"
)

// TaskRecord is the journaled view of one task.
type TaskRecord struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Target   string     `json:"target"`
	WorkerID string     `json:"worker_id,omitempty"`
	Status   TaskStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
	Updated  time.Time  `json:"updated"`
}

// WorkerRecord is the journaled view of one pool worker.
type WorkerRecord struct {
	ID             string    `json:"id"`
	Partition      Partition `json:"partition"`
	TasksCompleted int64     `json:"tasks_completed"`
	TasksFailed    int64     `json:"tasks_failed"`
	Registered     time.Time `json:"registered"`
}

// RunState is the state replicated through the run ledger.
type RunState struct {
	Tasks   map[string]*TaskRecord   `json:"tasks"`
	Workers map[string]*WorkerRecord `json:"workers"`
	Phase   Phase                    `json:"phase"`
	Version int64                    `json:"version"`
}

// NewRunState returns an empty state in PhaseIdle.
func NewRunState() *RunState {
	return &RunState{
		Tasks:   make(map[string]*TaskRecord),
		Workers: make(map[string]*WorkerRecord),
		Phase:   PhaseIdle,
	}
}

// Copy returns a deep copy of the state.
func (s *RunState) Copy() *RunState {
	c := &RunState{
		Tasks:   make(map[string]*TaskRecord, len(s.Tasks)),
		Workers: make(map[string]*WorkerRecord, len(s.Workers)),
		Phase:   s.Phase,
		Version: s.Version,
	}
	for k, v := range s.Tasks {
		rec := *v
		c.Tasks[k] = &rec
	}
	for k, v := range s.Workers {
		rec := *v
		c.Workers[k] = &rec
	}
	return c
}

// CountTasks returns how many tasks of the given kind are in status.
func (s *RunState) CountTasks(kind TaskKind, status TaskStatus) int {
	n := 0
	for _, t := range s.Tasks {
		if t.Kind == kind.String() && t.Status == status {
			n++
		}
	}
	return n
}

// LogEntry represents an entry in the ledger log
type LogEntry struct {
	Type      string        `json:"type"`      // "task", "worker", "phase"
	Operation string        `json:"operation"` // "submitted", "started", "completed", "failed", "register", "set"
	Task      *TaskRecord   `json:"task,omitempty"`
	Worker    *WorkerRecord `json:"worker,omitempty"`
	Phase     Phase         `json:"phase,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
