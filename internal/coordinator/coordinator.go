package coordinator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"MiniMR/internal/ledger"
	"MiniMR/internal/logger"
	"MiniMR/internal/mapreduce"
	"MiniMR/internal/pool"
	"MiniMR/internal/storage"
	"MiniMR/internal/types"
)

const defaultWorkDir = "output"

// Config for a single run
type Config struct {
	InputDir   string // Directory of input documents, read non-recursively
	Workers    int    // Pool size, also the number of partitions
	WorkDir    string // Parent of the per-run directory
	ReportPath string // Combined report; defaults to <run>/report.txt
	Ledger     bool   // Journal the run to <run>/ledger
	Logger     *logger.Logger
	Observer   pool.Observer
}

// Result describes a finished (or aborted) run.
type Result struct {
	RunID       string
	RunDir      string
	ReportPath  string
	MapTasks    int
	ReduceTasks int
	Keys        int
	Ledger      *types.RunState
}

// Coordinator drives the map, reduce and combine phases of a run.
type Coordinator struct {
	cfg    Config
	logger *logger.Logger
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Coordinator, error) {
	if cfg.InputDir == "" {
		return nil, fmt.Errorf("input directory cannot be empty")
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", cfg.Workers)
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = defaultWorkDir
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New("INFO")
	}

	return &Coordinator{
		cfg:    cfg,
		logger: cfg.Logger.Named("coordinator"),
	}, nil
}

// Run executes one run of app over inputDir with the default configuration.
func Run(inputDir string, workers int, app mapreduce.App) error {
	c, err := New(Config{InputDir: inputDir, Workers: workers})
	if err != nil {
		return err
	}
	_, err = c.Run(app)
	return err
}

// Run executes the three phases in order. Any task failure aborts the run;
// files written by earlier phases stay on disk.
func (c *Coordinator) Run(app mapreduce.App) (*Result, error) {
	inputs, err := storage.ListFiles(c.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list input directory %s: %w", mapreduce.ErrIO, c.cfg.InputDir, err)
	}

	runID := uuid.New().String()[:8]
	layout := storage.NewLayout(filepath.Join(c.cfg.WorkDir, "run-"+runID))
	if err := storage.EnsureDir(layout.Root); err != nil {
		return nil, fmt.Errorf("%w: %w", mapreduce.ErrIO, err)
	}

	res := &Result{
		RunID:      runID,
		RunDir:     layout.Root,
		ReportPath: c.cfg.ReportPath,
	}
	if res.ReportPath == "" {
		res.ReportPath = layout.ReportPath()
	}

	c.logger.Info("Run started: run_id=%s inputs=%d workers=%d dir=%s", runID, len(inputs), c.cfg.Workers, layout.Root)

	var observers pool.Observers
	if c.cfg.Observer != nil {
		observers = append(observers, c.cfg.Observer)
	}

	var led *ledger.Ledger
	if c.cfg.Ledger {
		led, err = ledger.Open(ledger.Config{
			Dir:    layout.LedgerDir(),
			NodeID: "run-" + runID,
			Logger: c.cfg.Logger,
		})
		if err != nil {
			return res, fmt.Errorf("failed to open run ledger: %w", err)
		}
		defer led.Close()
		observers = append(observers, led)
	}

	p, err := pool.New(pool.Config{
		Size:     c.cfg.Workers,
		Layout:   layout,
		Logger:   c.cfg.Logger,
		Observer: observers,
	}, app)
	if err != nil {
		return res, err
	}
	defer p.Close()

	if led != nil {
		for _, id := range p.WorkerIDs() {
			if err := led.RecordWorker(id, types.Partition(id)); err != nil {
				c.logger.Warn("Failed to journal worker %s: %v", id, err)
			}
		}
		defer func() { res.Ledger = led.State() }()
	}

	c.setPhase(led, types.PhaseMap)
	if err := c.mapPhase(p, inputs, res); err != nil {
		c.setPhase(led, types.PhaseFailed)
		return res, err
	}

	c.setPhase(led, types.PhaseReduce)
	if err := c.reducePhase(p, res); err != nil {
		c.setPhase(led, types.PhaseFailed)
		return res, err
	}

	c.setPhase(led, types.PhaseCombine)
	keys, err := c.combine(layout, mapreduce.MergerFor(app), res.ReportPath)
	if err != nil {
		c.setPhase(led, types.PhaseFailed)
		return res, err
	}
	res.Keys = keys

	c.setPhase(led, types.PhaseDone)
	if led != nil {
		if err := led.Snapshot(); err != nil {
			c.logger.Warn("Failed to snapshot run ledger: %v", err)
		}
	}

	c.logger.Info("Run finished: run_id=%s keys=%d report=%s", runID, keys, res.ReportPath)
	return res, nil
}

// mapPhase submits one map task per input file and waits for all of them.
func (c *Coordinator) mapPhase(p *pool.Pool, inputs []storage.File, res *Result) error {
	for _, in := range inputs {
		if err := p.Submit(types.NewMapTask(in.Name, in.Path)); err != nil {
			p.Wait()
			return fmt.Errorf("map phase aborted: %w", err)
		}
		res.MapTasks++
	}

	if err := p.Wait(); err != nil {
		return fmt.Errorf("map phase failed: %w", err)
	}
	c.logger.Info("Map phase complete: tasks=%d", res.MapTasks)
	return nil
}

// reducePhase submits exactly one reduce task per partition.
func (c *Coordinator) reducePhase(p *pool.Pool, res *Result) error {
	for _, part := range p.Partitions() {
		if err := p.Submit(types.NewReduceTask(part)); err != nil {
			p.Wait()
			return fmt.Errorf("reduce phase aborted: %w", err)
		}
		res.ReduceTasks++
	}

	if err := p.Wait(); err != nil {
		return fmt.Errorf("reduce phase failed: %w", err)
	}
	c.logger.Info("Reduce phase complete: tasks=%d", res.ReduceTasks)
	return nil
}

func (c *Coordinator) setPhase(led *ledger.Ledger, phase types.Phase) {
	c.logger.Debug("Entering phase %s", phase)
	if led == nil {
		return
	}
	if err := led.RecordPhase(phase); err != nil {
		c.logger.Warn("Failed to journal phase %s: %v", phase, err)
	}
}

// combine merges every reduce output of the run into the report and
// returns the number of distinct keys.
func (c *Coordinator) combine(layout storage.Layout, merger mapreduce.Merger, reportPath string) (int, error) {
	files, err := storage.ListFiles(layout.OutputDir())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to list reduce outputs %s: %w", mapreduce.ErrIO, layout.OutputDir(), err)
	}

	outputs := make([][]types.KeyValue, 0, len(files))
	for _, f := range files {
		data, err := storage.ReadFile(f.Path)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to read reduce output %s: %w", mapreduce.ErrIO, f.Path, err)
		}
		pairs, err := mapreduce.ParseOutput(data, f.Path)
		if err != nil {
			return 0, err
		}
		outputs = append(outputs, pairs)
	}

	merged, err := mapreduce.Combine(merger, outputs...)
	if err != nil {
		return 0, fmt.Errorf("combine failed: %w", err)
	}

	if err := writeReport(reportPath, merged); err != nil {
		return 0, err
	}
	c.logger.Info("Combine complete: outputs=%d keys=%d", len(files), len(merged))
	return len(merged), nil
}

// writeReport replaces the report through a temp file and rename, so a
// reader never sees a partial report.
func writeReport(path string, pairs []types.KeyValue) error {
	dir := filepath.Dir(path)
	if err := storage.EnsureDir(dir); err != nil {
		return fmt.Errorf("%w: %w", mapreduce.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create report: %w", mapreduce.ErrIO, err)
	}
	defer os.Remove(tmp.Name())

	if err := mapreduce.WriteOutput(tmp, pairs); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close report: %w", mapreduce.ErrIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: failed to move report into place: %w", mapreduce.ErrIO, err)
	}
	return nil
}
