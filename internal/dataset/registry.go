package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// Constructor creates a Source for one file format.
type Constructor func(opts Options) Source

var registry = map[string]Constructor{}

// Register adds a source constructor for a file extension such as ".csv".
func Register(ext string, ctor Constructor) {
	registry[strings.ToLower(ext)] = ctor
}

// Get returns the source constructor for the given extension.
func Get(ext string) (Constructor, error) {
	ctor, ok := registry[strings.ToLower(ext)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownFormat, ext, strings.Join(Formats(), ", "))
	}
	return ctor, nil
}

// Formats returns the registered extensions, sorted.
func Formats() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
