package storage

import (
	"context"

	"github.com/umbra-research/umbra-interface/internal/types"
)

const DefaultListLimit = 50

// ActivityStore keeps every SubmissionRecord the lifecycle produced. Saving a
// record with a known receipt id replaces it; failed records are kept.
type ActivityStore interface {
	Save(ctx context.Context, rec types.SubmissionRecord) error
	List(ctx context.Context, limit int) ([]types.SubmissionRecord, error)
}
