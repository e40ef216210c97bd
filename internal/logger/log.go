package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelPrefix = map[Level]string{
	DEBUG: "[DEBUG] ",
	INFO:  "[INFO] ",
	WARN:  "[WARN] ",
	ERROR: "[ERROR] ",
}

// ParseLevel maps a level name to a Level, defaulting to INFO.
func ParseLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger is a levelled logger. Child loggers created with Named share the
// parent's output and lock.
type Logger struct {
	level Level
	name  string
	mu    *sync.Mutex
	out   *log.Logger
}

func New(level string) *Logger {
	return NewWithWriter(level, os.Stderr)
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(level string, w io.Writer) *Logger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &Logger{
		level: ParseLevel(level),
		mu:    &sync.Mutex{},
		out:   log.New(w, "", flags),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	l := NewWithWriter("ERROR", io.Discard)
	l.level = ERROR + 1
	return l
}

// Named returns a child logger whose lines are tagged with name.
func (l *Logger) Named(name string) *Logger {
	child := *l
	if l.name != "" {
		child.name = l.name + "." + name
	} else {
		child.name = name
	}
	return &child
}

func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(DEBUG, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(INFO, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(WARN, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(ERROR, format, args...)
}

func (l *Logger) logf(lvl Level, format string, args ...interface{}) {
	if lvl < l.level {
		return
	}
	prefix := levelPrefix[lvl]
	if l.name != "" {
		prefix += l.name + ": "
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf(prefix+format, args...)
}
