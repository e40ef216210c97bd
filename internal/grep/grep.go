package grep

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"MiniMR/internal/mapreduce"
	"MiniMR/internal/types"
)

// keyEscaper percent-encodes the filename characters that intermediate
// records cannot hold. '%' is escaped too so DocumentName can reverse it.
var keyEscaper = strings.NewReplacer("%", "%25", ",", "%2C", "\n", "%0A", "\r", "%0D")

// App counts the lines matching a pattern in each input document. Keys are
// filenames with '%', ',' and line breaks percent-encoded.
type App struct {
	pattern string
	regex   *regexp.Regexp
}

// New compiles pattern and returns the grep application.
func New(pattern string) (*App, error) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}

	return &App{
		pattern: pattern,
		regex:   regex,
	}, nil
}

func (a *App) Pattern() string {
	return a.pattern
}

// Key returns the record key for a document.
func Key(filename string) string {
	return keyEscaper.Replace(filename)
}

// DocumentName reverses Key.
func DocumentName(key string) (string, error) {
	return url.PathUnescape(key)
}

// Map emits (Key(filename), "1") for every line of contents matching the
// pattern.
func (a *App) Map(filename, contents string) []types.KeyValue {
	var results []types.KeyValue
	key := Key(filename)

	for line := range strings.Lines(contents) {
		if a.regex.MatchString(strings.TrimRight(line, "\r\n")) {
			results = append(results, types.KeyValue{Key: key, Value: "1"})
		}
	}

	return results
}

// Reduce returns the number of matching lines recorded for a document.
func (a *App) Reduce(key string, values []string) string {
	return strconv.Itoa(len(values))
}

// Merge adds the partial match counts of one document. Each document is
// mapped exactly once, so in practice there is a single partial per key.
func (a *App) Merge(key string, partials []string) (string, error) {
	return mapreduce.Sum{}.Merge(key, partials)
}
