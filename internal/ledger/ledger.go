package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"MiniMR/internal/logger"
	"MiniMR/internal/types"

	raft "github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
)

// Ledger journals the progress of a run through a single-voter Raft log.
// Entries are persisted to bolt stores under Dir and can be replayed or
// inspected after the run, whether it succeeded or not.
type Ledger struct {
	nodeID        string
	raft          *raft.Raft
	fsm           *FSM
	logStore      *raftboltdb.BoltStore
	stableStore   *raftboltdb.BoltStore
	snapshotStore raft.SnapshotStore
	transport     *raft.InmemTransport
	applyTimeout  time.Duration
	logger        *logger.Logger
}

// Config for opening a ledger
type Config struct {
	Dir          string        // Directory for log store and snapshots
	NodeID       string        // Raft server id, also the in-memory transport address
	ApplyTimeout time.Duration // Per-entry commit timeout, default 5s
	Logger       *logger.Logger
}

// Open creates the stores under cfg.Dir, bootstraps a one-node
// configuration and waits until the node leads.
func Open(cfg Config) (*Ledger, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("NodeID cannot be empty")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("Dir cannot be empty")
	}
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = 5 * time.Second
	}

	lg := cfg.Logger
	if lg == nil {
		lg = logger.New("INFO")
	}
	lg = lg.Named("ledger")

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	l := &Ledger{
		nodeID:       cfg.NodeID,
		fsm:          NewFSM(lg),
		applyTimeout: cfg.ApplyTimeout,
		logger:       lg,
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.Dir, "ledger-logs.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create log store: %w", err)
	}
	l.logStore = logStore

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.Dir, "ledger-stable.db"))
	if err != nil {
		logStore.Close()
		return nil, fmt.Errorf("failed to create stable store: %w", err)
	}
	l.stableStore = stableStore

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.Dir, 2, io.Discard)
	if err != nil {
		l.closeStores()
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}
	l.snapshotStore = snapshotStore

	addr, transport := raft.NewInmemTransport(raft.ServerAddress(cfg.NodeID))
	l.transport = transport

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	raftCfg.HeartbeatTimeout = 100 * time.Millisecond
	raftCfg.ElectionTimeout = 100 * time.Millisecond
	raftCfg.LeaderLeaseTimeout = 50 * time.Millisecond
	raftCfg.CommitTimeout = 5 * time.Millisecond
	raftCfg.LogLevel = "ERROR"

	r, err := raft.NewRaft(raftCfg, l.fsm, l.logStore, l.stableStore, l.snapshotStore, transport)
	if err != nil {
		l.closeStores()
		return nil, fmt.Errorf("failed to create raft: %w", err)
	}
	l.raft = r

	configuration := raft.Configuration{
		Servers: []raft.Server{
			{
				Suffrage: raft.Voter,
				ID:       raft.ServerID(cfg.NodeID),
				Address:  addr,
			},
		},
	}
	if err := r.BootstrapCluster(configuration).Error(); err != nil && err != raft.ErrCantBootstrap {
		l.Close()
		return nil, fmt.Errorf("failed to bootstrap ledger: %w", err)
	}

	if err := l.waitForLeader(5 * time.Second); err != nil {
		l.Close()
		return nil, err
	}

	lg.Info("Ledger opened: node_id=%s dir=%s", cfg.NodeID, cfg.Dir)
	return l, nil
}

func (l *Ledger) waitForLeader(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if l.raft.State() == raft.Leader {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}

	return fmt.Errorf("ledger did not become leader within %s", timeout)
}

// apply commits an entry and returns the FSM's error, if any.
func (l *Ledger) apply(entry *types.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	f := l.raft.Apply(data, l.applyTimeout)
	if err := f.Error(); err != nil {
		return fmt.Errorf("failed to apply entry: %w", err)
	}
	if err, ok := f.Response().(error); ok {
		return err
	}
	return nil
}

func (l *Ledger) applyTask(op string, workerID string, task types.Task, taskErr error) {
	rec := &types.TaskRecord{
		ID:       task.ID,
		Kind:     task.Kind.String(),
		Target:   task.Target(),
		WorkerID: workerID,
	}
	if taskErr != nil {
		rec.Error = taskErr.Error()
	}

	entry := &types.LogEntry{
		Type:      "task",
		Operation: op,
		Task:      rec,
		Timestamp: time.Now(),
	}
	if err := l.apply(entry); err != nil {
		l.logger.Warn("Failed to journal task %s %s: %v", task.ID, op, err)
	}
}

// TaskSubmitted implements pool.Observer.
func (l *Ledger) TaskSubmitted(task types.Task) {
	l.applyTask("submitted", "", task, nil)
}

// TaskStarted implements pool.Observer.
func (l *Ledger) TaskStarted(workerID string, task types.Task) {
	l.applyTask("started", workerID, task, nil)
}

// TaskFinished implements pool.Observer.
func (l *Ledger) TaskFinished(workerID string, task types.Task, err error) {
	if err != nil {
		l.applyTask("failed", workerID, task, err)
		return
	}
	l.applyTask("completed", workerID, task, nil)
}

// RecordWorker journals a pool worker and the partition it owns.
func (l *Ledger) RecordWorker(workerID string, partition types.Partition) error {
	return l.apply(&types.LogEntry{
		Type:      "worker",
		Operation: "register",
		Worker: &types.WorkerRecord{
			ID:        workerID,
			Partition: partition,
		},
		Timestamp: time.Now(),
	})
}

// RecordPhase journals a phase change.
func (l *Ledger) RecordPhase(phase types.Phase) error {
	return l.apply(&types.LogEntry{
		Type:      "phase",
		Operation: "set",
		Phase:     phase,
		Timestamp: time.Now(),
	})
}

// State returns a copy of the journaled run state.
func (l *Ledger) State() *types.RunState {
	return l.fsm.GetState()
}

// Snapshot forces a snapshot of the current state into the snapshot store.
func (l *Ledger) Snapshot() error {
	return l.raft.Snapshot().Error()
}

// Stats returns the Raft statistics
func (l *Ledger) Stats() map[string]string {
	return l.raft.Stats()
}

// Close shuts the node down and releases the stores.
func (l *Ledger) Close() error {
	if l.raft != nil {
		if err := l.raft.Shutdown().Error(); err != nil {
			return err
		}
	}
	if err := l.closeStores(); err != nil {
		return err
	}
	if l.transport != nil {
		return l.transport.Close()
	}
	return nil
}

func (l *Ledger) closeStores() error {
	var firstErr error
	for _, s := range []*raftboltdb.BoltStore{l.logStore, l.stableStore} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
