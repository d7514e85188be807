package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/matthewbaird/probenode/internal/probe"
)

// MemoryStore implements Store using an in-memory slice.
// Used when no database is configured, and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	readings []probe.Reading
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) WriteReadings(_ context.Context, readings []probe.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, readings...)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, opts QueryOptions) ([]probe.Reading, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []probe.Reading
	for _, r := range s.readings {
		if opts.Channel != "" && r.Channel != opts.Channel {
			continue
		}
		if opts.Since != nil && r.At.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && r.At.After(*opts.Until) {
			continue
		}
		matched = append(matched, r)
	}

	// Newest first; stable keeps later writes ahead on equal timestamps.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].At.After(matched[j].At)
	})

	totalCount := len(matched)
	if limit := opts.limit(); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, totalCount, nil
}

func (s *MemoryStore) Summarize(_ context.Context, since, until time.Time) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summarize(s.readings, since, until), nil
}
