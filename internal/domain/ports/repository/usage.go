package repository

import (
	"context"

	"creator-ai-platform/internal/domain/model"
)

type UsageRepository interface {
	// Insert appends a ledger entry. Entries are immutable after insert.
	Insert(ctx context.Context, tx Tx, entry *model.UsageEntry) error

	// SumSinceUTCMidnight aggregates today's spend for a purpose tag. This is
	// the only read the budget gate performs.
	SumSinceUTCMidnight(ctx context.Context, tx Tx, purpose model.JobPurpose) (float64, error)
}
