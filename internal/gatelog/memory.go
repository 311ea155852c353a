package gatelog

import (
	"context"
	"sync"

	"github.com/google/uuid"

	id "gatepass/pkg/domain"
)

// InMemory keeps entries in insertion order. Used in tests and single-node
// deployments without a database.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemory) ListBySociety(_ context.Context, societyID id.SocietyID, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, limit)
	// Newest first.
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].SocietyID != societyID {
			continue
		}
		out = append(out, s.entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
