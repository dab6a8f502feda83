package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/umbra-research/umbra-interface/internal/storage"
	"github.com/umbra-research/umbra-interface/internal/types"
)

type Store struct {
	mu      sync.RWMutex
	records map[string]types.SubmissionRecord
}

func New() *Store {
	return &Store{records: make(map[string]types.SubmissionRecord)}
}

func (s *Store) Save(_ context.Context, rec types.SubmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ReceiptID] = rec
	return nil
}

// List returns the newest records first.
func (s *Store) List(_ context.Context, limit int) ([]types.SubmissionRecord, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	s.mu.RLock()
	out := make([]types.SubmissionRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ReceiptID < out[j].ReceiptID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
