package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"MiniMR/internal/logger"
	"MiniMR/internal/types"
	raft "github.com/hashicorp/raft"
)

// FSM implements raft.FSM over the run state.
type FSM struct {
	mu     sync.RWMutex
	state  *types.RunState
	logger *logger.Logger
}

// NewFSM creates a new FSM with initial state
func NewFSM(lg *logger.Logger) *FSM {
	if lg == nil {
		lg = logger.Discard()
	}
	return &FSM{
		state:  types.NewRunState(),
		logger: lg,
	}
}

// Apply implements raft.FSM - processes a log entry committed by Raft
func (f *FSM) Apply(log *raft.Log) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	var entry types.LogEntry
	if err := json.Unmarshal(log.Data, &entry); err != nil {
		f.logger.Error("Failed to unmarshal log entry: %v", err)
		return fmt.Errorf("failed to unmarshal log entry: %w", err)
	}

	f.logger.Debug("Applying log entry: type=%s operation=%s", entry.Type, entry.Operation)

	switch entry.Type {
	case "task":
		return f.applyTaskOperation(&entry)
	case "worker":
		return f.applyWorkerOperation(&entry)
	case "phase":
		f.state.Phase = entry.Phase
		f.state.Version++
		return nil
	default:
		f.logger.Warn("Unknown log entry type: %s", entry.Type)
		return fmt.Errorf("unknown log entry type: %s", entry.Type)
	}
}

// applyTaskOperation moves a task record to the status named by the
// operation, creating it on first sight.
func (f *FSM) applyTaskOperation(entry *types.LogEntry) interface{} {
	if entry.Task == nil || entry.Task.ID == "" {
		return fmt.Errorf("task entry without task data")
	}

	var status types.TaskStatus
	switch entry.Operation {
	case "submitted":
		status = types.TaskSubmitted
	case "started":
		status = types.TaskRunning
	case "completed":
		status = types.TaskCompleted
	case "failed":
		status = types.TaskFailed
	default:
		f.logger.Warn("Unknown task operation: %s", entry.Operation)
		return fmt.Errorf("unknown task operation: %s", entry.Operation)
	}

	rec, exists := f.state.Tasks[entry.Task.ID]
	if !exists {
		rec = &types.TaskRecord{
			ID:     entry.Task.ID,
			Kind:   entry.Task.Kind,
			Target: entry.Task.Target,
		}
		f.state.Tasks[rec.ID] = rec
	}
	rec.Status = status
	rec.Updated = entry.Timestamp
	if entry.Task.WorkerID != "" {
		rec.WorkerID = entry.Task.WorkerID
	}
	if entry.Task.Error != "" {
		rec.Error = entry.Task.Error
	}

	if w, ok := f.state.Workers[rec.WorkerID]; ok {
		switch status {
		case types.TaskCompleted:
			w.TasksCompleted++
		case types.TaskFailed:
			w.TasksFailed++
		}
	}

	f.state.Version++
	return nil
}

func (f *FSM) applyWorkerOperation(entry *types.LogEntry) interface{} {
	if entry.Operation != "register" {
		f.logger.Warn("Unknown worker operation: %s", entry.Operation)
		return fmt.Errorf("unknown worker operation: %s", entry.Operation)
	}
	if entry.Worker == nil || entry.Worker.ID == "" {
		return fmt.Errorf("worker entry without worker data")
	}

	f.state.Workers[entry.Worker.ID] = &types.WorkerRecord{
		ID:         entry.Worker.ID,
		Partition:  entry.Worker.Partition,
		Registered: entry.Timestamp,
	}
	f.state.Version++
	return nil
}

// Snapshot implements raft.FSM - creates a snapshot of the current state
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &snapshot{state: f.state.Copy()}, nil
}

// Restore implements raft.FSM - restores state from a snapshot
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var state types.RunState
	if err := json.NewDecoder(rc).Decode(&state); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if state.Tasks == nil {
		state.Tasks = make(map[string]*types.TaskRecord)
	}
	if state.Workers == nil {
		state.Workers = make(map[string]*types.WorkerRecord)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = &state
	return nil
}

// GetState returns a copy of the current run state
func (f *FSM) GetState() *types.RunState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state.Copy()
}

// snapshot implements raft.FSMSnapshot
type snapshot struct {
	state *types.RunState
}

// Persist writes the snapshot to a sink
func (s *snapshot) Persist(sink raft.SnapshotSink) error {
	data, err := json.Marshal(s.state)
	if err != nil {
		sink.Cancel()
		return err
	}

	if _, err := sink.Write(data); err != nil {
		sink.Cancel()
		return err
	}

	return sink.Close()
}

func (s *snapshot) Release() {}
