package wordcount

import (
	"regexp"
	"strconv"
	"strings"

	"MiniMR/internal/types"
)

// tokenPattern matches runs of Unicode word characters. A run counts as a
// word only when all of it is ASCII letters and digits, so "foo_bar" and
// "café" yield nothing rather than "foo", "bar" and "caf".
var (
	tokenPattern = regexp.MustCompile(`[\p{L}\p{Nl}\p{M}\p{Nd}\p{Pc}\x{200C}\x{200D}]+`)
	wordPattern  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// App counts word occurrences, compared case-insensitively.
type App struct{}

// Map emits (word, "1") for every word in contents.
func (App) Map(filename, contents string) []types.KeyValue {
	var kvs []types.KeyValue
	for _, tok := range tokenPattern.FindAllString(contents, -1) {
		if !wordPattern.MatchString(tok) {
			continue
		}
		kvs = append(kvs, types.KeyValue{Key: strings.ToLower(tok), Value: "1"})
	}
	return kvs
}

// Reduce returns how many times key was emitted.
func (App) Reduce(key string, values []string) string {
	return strconv.Itoa(len(values))
}
