package coordinator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"MiniMR/internal/grep"
	"MiniMR/internal/logger"
	"MiniMR/internal/mapreduce"
	"MiniMR/internal/types"
	"MiniMR/internal/wordcount"
)

// event is one observer notification, in arrival order.
type event struct {
	kind  types.TaskKind
	stage string
}

type eventLog struct {
	mu     sync.Mutex
	events []event
}

func (l *eventLog) add(kind types.TaskKind, stage string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event{kind: kind, stage: stage})
}

func (l *eventLog) TaskSubmitted(task types.Task) {
	l.add(task.Kind, "submitted")
}

func (l *eventLog) TaskStarted(workerID string, task types.Task) {
	l.add(task.Kind, "started")
}

func (l *eventLog) TaskFinished(workerID string, task types.Task, err error) {
	l.add(task.Kind, "finished")
}

func (l *eventLog) count(kind types.TaskKind, stage string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.kind == kind && e.stage == stage {
			n++
		}
	}
	return n
}

func writeInputDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, contents := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644); err != nil {
			t.Fatalf("Failed to write input %s: %v", name, err)
		}
	}
	return dir
}

func runApp(t *testing.T, cfg Config, app mapreduce.App) (*Result, error) {
	t.Helper()
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	cfg.Logger = logger.Discard()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create coordinator: %v", err)
	}
	return c.Run(app)
}

func readReport(t *testing.T, res *Result) string {
	t.Helper()
	data, err := os.ReadFile(res.ReportPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	return string(data)
}

func TestWordCountSingleWorker(t *testing.T) {
	input := writeInputDir(t, map[string]string{"a.txt": "the cat the dog"})

	res, err := runApp(t, Config{InputDir: input, Workers: 1}, wordcount.App{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := readReport(t, res); got != "the 2\ncat 1\ndog 1\n" {
		t.Fatalf("Unexpected report:\n%s", got)
	}
	if res.MapTasks != 1 || res.ReduceTasks != 1 || res.Keys != 3 {
		t.Fatalf("Unexpected result: %+v", res)
	}
	t.Logf("✓ Report written to %s", res.ReportPath)
}

func TestPhasesRunInOrder(t *testing.T) {
	files := make(map[string]string)
	for i := 0; i < 7; i++ {
		files[fmt.Sprintf("doc%d.txt", i)] = "alpha beta gamma alpha"
	}
	input := writeInputDir(t, files)
	if err := os.Mkdir(filepath.Join(input, "subdir"), 0755); err != nil {
		t.Fatalf("%v", err)
	}

	log := &eventLog{}
	res, err := runApp(t, Config{InputDir: input, Workers: 3, Observer: log}, wordcount.App{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if n := log.count(types.MapTask, "submitted"); n != 7 {
		t.Fatalf("Expected 7 map tasks, got %d", n)
	}
	if n := log.count(types.ReduceTask, "submitted"); n != 3 {
		t.Fatalf("Expected one reduce task per worker (3), got %d", n)
	}

	lastMapFinished, firstReduce := -1, -1
	for i, e := range log.events {
		if e.kind == types.MapTask && e.stage == "finished" {
			lastMapFinished = i
		}
		if e.kind == types.ReduceTask && firstReduce < 0 {
			firstReduce = i
		}
	}
	if lastMapFinished > firstReduce {
		t.Fatalf("Reduce work began (event %d) before the last map finished (event %d)", firstReduce, lastMapFinished)
	}

	if got := readReport(t, res); got != "alpha 14\nbeta 7\ngamma 7\n" {
		t.Fatalf("Unexpected report:\n%s", got)
	}
}

func TestTotalsAreStableAcrossRuns(t *testing.T) {
	files := make(map[string]string)
	for i := 0; i < 20; i++ {
		files[fmt.Sprintf("f%02d.txt", i)] = strings.Repeat("x ", i) + "y z"
	}
	input := writeInputDir(t, files)
	work := t.TempDir()

	first, err := runApp(t, Config{InputDir: input, Workers: 4, WorkDir: work}, wordcount.App{})
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := runApp(t, Config{InputDir: input, Workers: 4, WorkDir: work}, wordcount.App{})
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if first.RunDir == second.RunDir {
		t.Fatalf("Each run should get its own directory")
	}
	a, b := readReport(t, first), readReport(t, second)
	if a != b {
		t.Fatalf("Reports differ:\n%s\n---\n%s", a, b)
	}
	if a != "x 190\ny 20\nz 20\n" {
		t.Fatalf("Unexpected totals:\n%s", a)
	}
}

func TestMissingInputDirAbortsBeforeSubmitting(t *testing.T) {
	log := &eventLog{}
	work := t.TempDir()

	_, err := runApp(t, Config{InputDir: filepath.Join(work, "nope"), Workers: 2, WorkDir: work, Observer: log}, wordcount.App{})
	if !errors.Is(err, mapreduce.ErrIO) {
		t.Fatalf("Expected ErrIO, got %v", err)
	}
	if len(log.events) != 0 {
		t.Fatalf("No task should have been submitted, got %d events", len(log.events))
	}

	entries, _ := os.ReadDir(work)
	if len(entries) != 0 {
		t.Fatalf("No run directory should be created, found %d entries", len(entries))
	}
}

// commaApp emits keys the intermediate format cannot hold.
type commaApp struct{ wordcount.App }

func (commaApp) Map(filename, contents string) []types.KeyValue {
	return []types.KeyValue{{Key: "a,b", Value: "1"}}
}

func TestMapFailureAbortsRun(t *testing.T) {
	input := writeInputDir(t, map[string]string{"a.txt": "x", "b.txt": "y"})
	log := &eventLog{}

	res, err := runApp(t, Config{InputDir: input, Workers: 1, Observer: log}, commaApp{})
	if !errors.Is(err, mapreduce.ErrFormat) {
		t.Fatalf("Expected ErrFormat, got %v", err)
	}
	if !strings.Contains(err.Error(), "map phase") {
		t.Fatalf("Error should name the failing phase: %v", err)
	}
	if n := log.count(types.ReduceTask, "submitted"); n != 0 {
		t.Fatalf("Reduce phase should not start after a map failure, saw %d reduce tasks", n)
	}
	if _, statErr := os.Stat(res.ReportPath); !os.IsNotExist(statErr) {
		t.Fatalf("No report should be written for a failed run")
	}
}

// wordApp reduces to the word itself, which cannot be ordered numerically.
type wordApp struct{ wordcount.App }

func (wordApp) Reduce(key string, values []string) string {
	return key
}

func TestReduceParseErrorAbortsRun(t *testing.T) {
	input := writeInputDir(t, map[string]string{"a.txt": "hello world"})

	_, err := runApp(t, Config{InputDir: input, Workers: 2}, wordApp{})
	if !errors.Is(err, mapreduce.ErrParse) {
		t.Fatalf("Expected ErrParse, got %v", err)
	}
	if !strings.Contains(err.Error(), "reduce phase") {
		t.Fatalf("Error should name the failing phase: %v", err)
	}
}

func TestGrepUsesAppMerge(t *testing.T) {
	input := writeInputDir(t, map[string]string{
		"one.log":   "error: disk\nok\nerror: net\n",
		"two.log":   "ok\nok\n",
		"three.log": "error: cpu\n",
	})
	g, err := grep.New("^error")
	if err != nil {
		t.Fatalf("Failed to create grep: %v", err)
	}

	res, err := runApp(t, Config{InputDir: input, Workers: 2}, g)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := readReport(t, res); got != "one.log 2\nthree.log 1\n" {
		t.Fatalf("Unexpected report:\n%s", got)
	}
}

func TestCustomReportPathAndEmptyInput(t *testing.T) {
	input := t.TempDir()
	report := filepath.Join(t.TempDir(), "reports", "final.txt")

	res, err := runApp(t, Config{InputDir: input, Workers: 2, ReportPath: report}, wordcount.App{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ReportPath != report {
		t.Fatalf("Report path not honoured: %s", res.ReportPath)
	}
	if got := readReport(t, res); got != "" {
		t.Fatalf("Expected an empty report, got %q", got)
	}
	if res.MapTasks != 0 || res.ReduceTasks != 2 {
		t.Fatalf("Unexpected task counts: %+v", res)
	}
}

func TestRunWithLedger(t *testing.T) {
	input := writeInputDir(t, map[string]string{"a.txt": "one two", "b.txt": "two three", "c.txt": "three"})

	res, err := runApp(t, Config{InputDir: input, Workers: 2, Ledger: true}, wordcount.App{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	state := res.Ledger
	if state == nil {
		t.Fatalf("Ledger state missing from result")
	}
	if state.Phase != types.PhaseDone {
		t.Fatalf("Expected phase done, got %s", state.Phase)
	}
	if n := state.CountTasks(types.MapTask, types.TaskCompleted); n != 3 {
		t.Fatalf("Expected 3 completed map tasks, got %d", n)
	}
	if n := state.CountTasks(types.ReduceTask, types.TaskCompleted); n != 2 {
		t.Fatalf("Expected 2 completed reduce tasks, got %d", n)
	}
	if len(state.Workers) != 2 {
		t.Fatalf("Expected 2 journaled workers, got %d", len(state.Workers))
	}
	if _, err := os.Stat(filepath.Join(res.RunDir, "ledger", "ledger-logs.db")); err != nil {
		t.Fatalf("Ledger log store missing: %v", err)
	}
	t.Logf("✓ Ledger journaled %d tasks, version %d", len(state.Tasks), state.Version)
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Workers: 1}); err == nil {
		t.Fatalf("Empty input directory should be rejected")
	}
	if _, err := New(Config{InputDir: "in", Workers: 0}); err == nil {
		t.Fatalf("Zero workers should be rejected")
	}
	c, err := New(Config{InputDir: "in", Workers: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.cfg.WorkDir != defaultWorkDir {
		t.Fatalf("WorkDir default not applied: %q", c.cfg.WorkDir)
	}
}
