package mapreduce

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"MiniMR/internal/types"
)

// Mapper defines the map function interface.
type Mapper interface {
	Map(filename, contents string) []types.KeyValue
}

// Reducer defines the reduce function interface.
type Reducer interface {
	Reduce(key string, values []string) string
}

// Merger combines the partial reduce results produced for one key by
// different partitions.
type Merger interface {
	Merge(key string, partials []string) (string, error)
}

// App is the application plugged into the engine. Implementations are
// shared by every worker and must be safe for concurrent use.
type App interface {
	Mapper
	Reducer
}

// MergerFor returns the app's own Merger when it has one, Sum otherwise.
func MergerFor(app App) Merger {
	if m, ok := app.(Merger); ok {
		return m
	}
	return Sum{}
}

// Sum merges partials by unsigned integer addition. A total that does not
// fit in 64 bits is an error.
type Sum struct{}

func (Sum) Merge(key string, partials []string) (string, error) {
	var total uint64
	for _, p := range partials {
		n, err := parseCount(key, p)
		if err != nil {
			return "", err
		}
		if n > math.MaxUint64-total {
			return "", fmt.Errorf("%w: total for key %q overflows uint64", ErrParse, key)
		}
		total += n
	}
	return strconv.FormatUint(total, 10), nil
}

// Group collects values by key. Keys are returned in first-seen order and
// values keep their input order.
func Group(kvs []types.KeyValue) ([]string, map[string][]string) {
	var keys []string
	grouped := make(map[string][]string)

	for _, kv := range kvs {
		if _, ok := grouped[kv.Key]; !ok {
			keys = append(keys, kv.Key)
		}
		grouped[kv.Key] = append(grouped[kv.Key], kv.Value)
	}
	return keys, grouped
}

// Reduce groups the records of one partition, calls the reducer once per
// distinct key and returns the results sorted by value, largest first.
func Reduce(reducer Reducer, kvs []types.KeyValue) ([]types.KeyValue, error) {
	keys, grouped := Group(kvs)

	out := make([]types.KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.KeyValue{Key: k, Value: reducer.Reduce(k, grouped[k])})
	}

	if err := SortByValue(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Combine merges the reduce outputs of every partition into one result,
// sorted by merged value, largest first.
func Combine(merger Merger, outputs ...[]types.KeyValue) ([]types.KeyValue, error) {
	var all []types.KeyValue
	for _, o := range outputs {
		all = append(all, o...)
	}
	keys, grouped := Group(all)

	out := make([]types.KeyValue, 0, len(keys))
	for _, k := range keys {
		merged, err := merger.Merge(k, grouped[k])
		if err != nil {
			return nil, err
		}
		out = append(out, types.KeyValue{Key: k, Value: merged})
	}

	if err := SortByValue(out); err != nil {
		return nil, err
	}
	return out, nil
}

// SortByValue orders pairs by value parsed as an unsigned integer,
// descending. Equal values are ordered by key.
func SortByValue(pairs []types.KeyValue) error {
	type counted struct {
		kv types.KeyValue
		n  uint64
	}

	items := make([]counted, len(pairs))
	for i, kv := range pairs {
		n, err := parseCount(kv.Key, kv.Value)
		if err != nil {
			return err
		}
		items[i] = counted{kv: kv, n: n}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].n != items[j].n {
			return items[i].n > items[j].n
		}
		return items[i].kv.Key < items[j].kv.Key
	})
	for i, it := range items {
		pairs[i] = it.kv
	}
	return nil
}

func parseCount(key, value string) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: value %q for key %q is not an unsigned integer", ErrParse, value, key)
	}
	return n, nil
}
