package report

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps reports in process. Used when no database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	byPrint map[string]Report
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byPrint: map[string]Report{}}
}

func (s *MemoryStore) Save(_ context.Context, r Report) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byPrint[r.Fingerprint]; ok {
		existing.Occurrences++
		existing.LastSeenAt = r.LastSeenAt
		existing.UserAgent = r.UserAgent
		s.byPrint[r.Fingerprint] = existing
		return existing, nil
	}
	s.byPrint[r.Fingerprint] = r
	return r, nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Report, error) {
	s.mu.Lock()
	out := make([]Report, 0, len(s.byPrint))
	for _, r := range s.byPrint {
		out = append(out, r)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeenAt.Equal(out[j].LastSeenAt) {
			return out[i].Fingerprint < out[j].Fingerprint
		}
		return out[i].LastSeenAt.After(out[j].LastSeenAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
