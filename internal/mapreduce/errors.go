package mapreduce

import "errors"

var (
	// ErrIO marks a missing or unreadable directory or an unreadable or
	// unwritable file.
	ErrIO = errors.New("io error")
	// ErrFormat marks an intermediate or output line that does not have the
	// expected shape.
	ErrFormat = errors.New("format error")
	// ErrParse marks a non-numeric value where a numeric one is required.
	ErrParse = errors.New("parse error")
)
