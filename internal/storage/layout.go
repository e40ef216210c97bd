package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"MiniMR/internal/types"
)

const (
	partitionPrefix = "worker-"
	outputDirName   = "output"
	reportName      = "report.txt"
	ledgerDirName   = "ledger"
)

// Layout maps the pieces of one run onto a directory tree:
//
//	<root>/worker-<id>/<input filename>   intermediate records
//	<root>/output/<id>                    reduce output
//	<root>/report.txt                     combined report
//	<root>/ledger/                        run ledger
type Layout struct {
	Root string
}

func NewLayout(root string) Layout {
	return Layout{Root: root}
}

// PartitionDir is the directory holding partition p.
func (l Layout) PartitionDir(p types.Partition) string {
	return filepath.Join(l.Root, partitionPrefix+string(p))
}

// IntermediatePath is where a map task over filename appends its records
// when it runs on the worker owning p.
func (l Layout) IntermediatePath(p types.Partition, filename string) string {
	return filepath.Join(l.PartitionDir(p), filename)
}

func (l Layout) OutputDir() string {
	return filepath.Join(l.Root, outputDirName)
}

// OutputPath is the reduce output file for partition p.
func (l Layout) OutputPath(p types.Partition) string {
	return filepath.Join(l.OutputDir(), string(p))
}

func (l Layout) ReportPath() string {
	return filepath.Join(l.Root, reportName)
}

func (l Layout) LedgerDir() string {
	return filepath.Join(l.Root, ledgerDirName)
}

// File is a regular file found by ListFiles.
type File struct {
	Name string
	Path string
}

// ListFiles returns the regular files directly under dir, sorted by name.
// Subdirectories and other non-regular entries are skipped.
func ListFiles(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []File
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		files = append(files, File{Name: e.Name(), Path: filepath.Join(dir, e.Name())})
	}
	return files, nil
}

// ReadFile reads the whole file at path as a string.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
