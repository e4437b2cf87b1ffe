package seen

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Store. It does not survive restarts and is meant
// for tests and throwaway dry runs.
type Memory struct {
	mu      sync.RWMutex
	records map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]time.Time)}
}

func (m *Memory) IsSeen(_ context.Context, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[url]
	return ok, nil
}

func (m *Memory) MarkSeen(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[url]; !ok {
		m.records[url] = time.Now().UTC()
	}
	return nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := Stats{Entries: len(m.records)}
	for _, at := range m.records {
		if stats.OldestEntry.IsZero() || at.Before(stats.OldestEntry) {
			stats.OldestEntry = at
		}
	}
	return stats, nil
}
