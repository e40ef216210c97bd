package mapreduce

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"MiniMR/internal/types"
)

// WriteRecords writes kvs as "key,value" lines.
func WriteRecords(w io.Writer, kvs []types.KeyValue) error {
	bw := bufio.NewWriter(w)
	for _, kv := range kvs {
		if strings.ContainsAny(kv.Key, ",\n") {
			return fmt.Errorf("%w: key %q contains a separator", ErrFormat, kv.Key)
		}
		if strings.Contains(kv.Value, "\n") {
			return fmt.Errorf("%w: value for key %q contains a newline", ErrFormat, kv.Key)
		}
		if _, err := fmt.Fprintf(bw, "%s,%s\n", kv.Key, kv.Value); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// ParseRecords splits "key,value" lines at the first comma. source names the
// data in error messages.
func ParseRecords(data, source string) ([]types.KeyValue, error) {
	var kvs []types.KeyValue
	for i, line := range splitLines(data) {
		key, value, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("%w: %s line %d: missing ',' in %q", ErrFormat, source, i+1, line)
		}
		kvs = append(kvs, types.KeyValue{Key: key, Value: value})
	}
	return kvs, nil
}

// WriteOutput writes pairs as "key value" lines.
func WriteOutput(w io.Writer, pairs []types.KeyValue) error {
	bw := bufio.NewWriter(w)
	for _, kv := range pairs {
		if strings.Contains(kv.Key, "\n") || strings.ContainsAny(kv.Value, " \n") {
			return fmt.Errorf("%w: cannot write pair %q=%q", ErrFormat, kv.Key, kv.Value)
		}
		if _, err := fmt.Fprintf(bw, "%s %s\n", kv.Key, kv.Value); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// ParseOutput reads "key value" lines. The value is the text after the last
// space, so keys may themselves contain spaces.
func ParseOutput(data, source string) ([]types.KeyValue, error) {
	var pairs []types.KeyValue
	for i, line := range splitLines(data) {
		idx := strings.LastIndexByte(line, ' ')
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s line %d: expected \"key value\", got %q", ErrFormat, source, i+1, line)
		}
		pairs = append(pairs, types.KeyValue{Key: line[:idx], Value: line[idx+1:]})
	}
	return pairs, nil
}

// splitLines drops the trailing newline and returns nil for empty data.
func splitLines(data string) []string {
	data = strings.TrimSuffix(data, "\n")
	if data == "" {
		return nil
	}
	return strings.Split(data, "\n")
}
