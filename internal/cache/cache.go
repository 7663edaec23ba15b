package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache is a keyed store of derived values that may be dropped at any time.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// DeletePrefix drops every key starting with prefix and returns how many
	// entries were removed.
	DeletePrefix(prefix string) int
	Size() int
}

// Cleaner is implemented by caches whose entries expire.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic expiry for registered caches.
type Manager struct {
	mu       sync.Mutex
	caches   map[string]Cleaner
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  bool
}

func NewManager() *Manager {
	return &Manager{
		caches: make(map[string]Cleaner),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds a named cache to the cleanup cycle.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// CleanAll expires entries in every registered cache once.
func (m *Manager) CleanAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for name, c := range m.caches {
		if n := c.CleanExpired(); n > 0 {
			slog.Debug("Cache entries expired", "cache", name, "removed", n)
			total += n
		}
	}
	return total
}

// StatsReporter is implemented by caches that count hits and misses.
type StatsReporter interface {
	Stats() Stats
}

// Snapshot returns the statistics of every registered cache that reports them.
func (m *Manager) Snapshot() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Stats, len(m.caches))
	for name, c := range m.caches {
		if r, ok := c.(StatsReporter); ok {
			out[name] = r.Stats()
		}
	}
	return out
}

// StartCleanup begins periodic cleanup until Stop is called.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.CleanAll()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends the cleanup goroutine started by StartCleanup and waits for it.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.done
		}
	})
}
