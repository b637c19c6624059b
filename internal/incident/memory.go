package incident

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory, thread-safe Repository. It is primarily
// useful for tests and for runs that do not need the dashboard to outlive the
// process.
type MemoryRepository struct {
	mu        sync.RWMutex
	nextID    int64
	incidents []Incident
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1}
}

// Reset implements Repository.
func (r *MemoryRepository) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incidents = nil
	return nil
}

// Insert implements Repository.
func (r *MemoryRepository) Insert(_ context.Context, inc *Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inc.ID = r.nextID
	r.nextID++
	r.incidents = append(r.incidents, *inc)
	return nil
}

// Get implements Repository.
func (r *MemoryRepository) Get(_ context.Context, id int64) (*Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inc := range r.incidents {
		if inc.ID == id {
			cp := inc
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// List implements Repository.
func (r *MemoryRepository) List(_ context.Context) ([]Incident, error) {
	r.mu.RLock()
	out := make([]Incident, len(r.incidents))
	copy(out, r.incidents)
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RiskScore != out[j].RiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// CountBySeverity implements Repository.
func (r *MemoryRepository) CountBySeverity(_ context.Context) ([]Count, error) {
	return r.countBy(func(inc Incident) string { return inc.Severity }), nil
}

// CountByRegion implements Repository.
func (r *MemoryRepository) CountByRegion(_ context.Context) ([]Count, error) {
	return r.countBy(func(inc Incident) string { return inc.Region }), nil
}

func (r *MemoryRepository) countBy(key func(Incident) string) []Count {
	r.mu.RLock()
	counts := make(map[string]int)
	for _, inc := range r.incidents {
		counts[key(inc)]++
	}
	r.mu.RUnlock()

	out := make([]Count, 0, len(counts))
	for k, n := range counts {
		out = append(out, Count{Key: k, Count: n})
	}
	sortCounts(out)
	return out
}

// Ping implements Repository.
func (r *MemoryRepository) Ping(_ context.Context) error { return nil }

// Close implements Repository.
func (r *MemoryRepository) Close() error { return nil }

// sortCounts orders by count descending, then key ascending.
func sortCounts(counts []Count) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Key < counts[j].Key
	})
}
