package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var errNoPartition = errors.New("partition key is required")

// SequenceRepository numbers the events of each partition 1, 2, 3, ...
type SequenceRepository interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
	LastSequence(ctx context.Context, partitionKey string) (int64, error)
}

type sequenceRepository struct {
	db *sql.DB
}

func NewSequenceRepository(db *sql.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

// The upsert takes the row lock itself, so concurrent callers on one
// partition serialize without an explicit transaction.
const nextSequenceQuery = `
INSERT INTO event_sequences (partition_key, last_sequence, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (partition_key) DO UPDATE
SET last_sequence = event_sequences.last_sequence + 1,
    updated_at = NOW()
RETURNING last_sequence`

func (r *sequenceRepository) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, errNoPartition
	}

	var next int64
	if err := r.db.QueryRowContext(ctx, nextSequenceQuery, partitionKey).Scan(&next); err != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", partitionKey, err)
	}
	return next, nil
}

// LastSequence returns the highest number handed out, or 0 for an unused
// partition.
func (r *sequenceRepository) LastSequence(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, errNoPartition
	}

	var last int64
	err := r.db.QueryRowContext(ctx,
		`SELECT last_sequence FROM event_sequences WHERE partition_key = $1`, partitionKey).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read sequence %s: %w", partitionKey, err)
	}
	return last, nil
}
