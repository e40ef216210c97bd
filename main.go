package main

import (
	"flag"
	"fmt"
	"os"

	"MiniMR/internal/coordinator"
	"MiniMR/internal/grep"
	"MiniMR/internal/logger"
	"MiniMR/internal/mapreduce"
	"MiniMR/internal/wordcount"
)

func main() {
	input := flag.String("input", "", "Directory of input documents (required)")
	workers := flag.Int("workers", 2, "Number of pool workers, one partition each")
	workDir := flag.String("work-dir", "output", "Directory that receives one run-<id> directory per run")
	report := flag.String("report", "", "Path of the combined report (default <run dir>/report.txt)")
	appName := flag.String("app", "wordcount", "Application: 'wordcount' or 'grep'")
	pattern := flag.String("pattern", "", "Regular expression for the grep application")
	journal := flag.Bool("ledger", false, "Journal task progress to <run dir>/ledger")
	logLevel := flag.String("log-level", "INFO", "DEBUG, INFO, WARN or ERROR")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "-input is required")
		flag.Usage()
		os.Exit(2)
	}

	lg := logger.New(*logLevel)

	app, err := selectApp(*appName, *pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	c, err := coordinator.New(coordinator.Config{
		InputDir:   *input,
		Workers:    *workers,
		WorkDir:    *workDir,
		ReportPath: *report,
		Ledger:     *journal,
		Logger:     lg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	res, err := c.Run(app)
	if err != nil {
		if res != nil {
			lg.Error("Run %s failed, partial files kept in %s", res.RunID, res.RunDir)
		}
		lg.Error("%v", err)
		os.Exit(1)
	}

	fmt.Printf("run %s: %d map tasks, %d reduce tasks, %d keys\n", res.RunID, res.MapTasks, res.ReduceTasks, res.Keys)
	fmt.Printf("report: %s\n", res.ReportPath)
}

func selectApp(name, pattern string) (mapreduce.App, error) {
	switch name {
	case "wordcount":
		return wordcount.App{}, nil
	case "grep":
		if pattern == "" {
			return nil, fmt.Errorf("-pattern is required for the grep application")
		}
		g, err := grep.New(pattern)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown application: %s", name)
	}
}
