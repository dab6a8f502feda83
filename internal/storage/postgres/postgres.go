package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/umbra-research/umbra-interface/internal/storage"
	"github.com/umbra-research/umbra-interface/internal/types"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS submission_records (
  receipt_id   TEXT PRIMARY KEY,
  direction    TEXT NOT NULL,
  cluster      TEXT NOT NULL,
  signature    TEXT NOT NULL,
  submitted_at TIMESTAMPTZ NOT NULL,
  tier         TEXT NOT NULL,
  timed_out    BOOLEAN NOT NULL DEFAULT FALSE,
  error        TEXT NULL,
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS submission_records_submitted_idx ON submission_records(submitted_at DESC);
CREATE INDEX IF NOT EXISTS submission_records_signature_idx ON submission_records(signature);
`
	_, err := s.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, rec types.SubmissionRecord) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var errText any
	if rec.Error != "" {
		errText = rec.Error
	}

	q := `
INSERT INTO submission_records(
  receipt_id, direction, cluster, signature, submitted_at, tier, timed_out, error
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT(receipt_id) DO UPDATE SET
  tier       = EXCLUDED.tier,
  timed_out  = EXCLUDED.timed_out,
  error      = COALESCE(EXCLUDED.error, submission_records.error),
  updated_at = now()
`
	_, err := s.pool.Exec(cctx, q,
		rec.ReceiptID, string(rec.Direction), string(rec.Cluster), rec.Signature,
		rec.SubmittedAt, rec.Tier.String(), rec.TimedOut, errText,
	)
	if err != nil {
		return fmt.Errorf("failed to save submission record %s: %w", rec.ReceiptID, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]types.SubmissionRecord, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	q := `
SELECT receipt_id, direction, cluster, signature, submitted_at, tier, timed_out, error, updated_at
FROM submission_records
ORDER BY submitted_at DESC, receipt_id
LIMIT $1
`
	rows, err := s.pool.Query(cctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submission records: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission records: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.CollectableRow) (types.SubmissionRecord, error) {
	var (
		rec       types.SubmissionRecord
		direction string
		cluster   string
		tier      string
		errText   *string
	)
	err := row.Scan(
		&rec.ReceiptID, &direction, &cluster, &rec.Signature,
		&rec.SubmittedAt, &tier, &rec.TimedOut, &errText, &rec.UpdatedAt,
	)
	if err != nil {
		return types.SubmissionRecord{}, err
	}

	rec.Direction = types.Direction(direction)
	rec.Cluster = types.Cluster(cluster)
	if rec.Tier, err = types.ParseTier(tier); err != nil {
		return types.SubmissionRecord{}, err
	}
	if errText != nil {
		rec.Error = *errText
	}
	return rec, nil
}
