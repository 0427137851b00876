// Package entropy aggregates raw entropy from heterogeneous sources. Local
// sources (OS RNG, scheduler jitter, host statistics) are always available;
// network sources (feeds, imagery) are best-effort diversity inputs and
// never a security boundary.
package entropy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/veridraw/veridraw/config"
)

// Source yields raw bytes from one origin.
type Source interface {
	// Name returns the canonical source identifier.
	Name() string

	// Local reports whether the source is always available and exempt
	// from network timeout policy.
	Local() bool

	// Fetch returns one payload of raw bytes. It must not block beyond
	// the given context.
	Fetch(ctx context.Context) ([]byte, error)
}

// Result describes one settled collection attempt.
type Result struct {
	Source   string
	Local    bool
	Payload  []byte
	OK       bool
	Err      error
	Duration time.Duration
}

// SourceError wraps a per-source failure. Per-source failures are always
// recovered at the collector level and only surface via progress events.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

var (
	sourcesLock sync.RWMutex
	sources     = make(map[string]Source)

	// sourceAliases maps historic request names onto registered sources.
	sourceAliases = map[string]string{
		"time": "tick",
	}

	sourceTimeout config.IntOption
)

func init() {
	err := config.Register(&config.Option{
		Name:            "Network Source Timeout",
		Key:             "entropy/source_timeout_seconds",
		Description:     "Timeout for a single network entropy source fetch, in seconds.",
		OptType:         config.OptTypeInt,
		DefaultValue:    10,
		ValidationRegex: "^[1-9][0-9]{0,2}$",
	})
	if err != nil {
		panic(err)
	}
	sourceTimeout = config.GetAsInt("entropy/source_timeout_seconds", 10)
}

func registerSource(s Source) {
	sourcesLock.Lock()
	defer sourcesLock.Unlock()
	sources[s.Name()] = s
}

// GetSource returns the source with the given name.
func GetSource(name string) (Source, error) {
	sourcesLock.RLock()
	defer sourcesLock.RUnlock()
	if canonical, ok := sourceAliases[name]; ok {
		name = canonical
	}
	s, ok := sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown entropy source: %s", name)
	}
	return s, nil
}

// GetSources resolves a set of source names. Order of the input does not
// matter; the returned slice is sorted by name.
func GetSources(names []string) ([]Source, error) {
	resolved := make([]Source, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		s, err := GetSource(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[s.Name()]; dup {
			continue
		}
		seen[s.Name()] = struct{}{}
		resolved = append(resolved, s)
	}
	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].Name() < resolved[j].Name()
	})
	return resolved, nil
}

// LocalSources returns all registered always-available sources, sorted by
// name.
func LocalSources() []Source {
	sourcesLock.RLock()
	defer sourcesLock.RUnlock()

	local := make([]Source, 0, len(sources))
	for _, s := range sources {
		if s.Local() {
			local = append(local, s)
		}
	}
	sort.Slice(local, func(i, j int) bool {
		return local[i].Name() < local[j].Name()
	})
	return local
}

// SourceNames returns the names of all registered sources, sorted.
func SourceNames() []string {
	sourcesLock.RLock()
	defer sourcesLock.RUnlock()

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
