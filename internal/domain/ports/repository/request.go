package repository

import (
	"context"

	"creator-ai-platform/internal/domain/model"
)

type RequestRepository interface {
	Create(ctx context.Context, tx Tx, req *model.GenerationRequest) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.GenerationRequest, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.RequestStatus, adminNotes *string) error

	// UpdateProgress persists progress counters and accumulated outputs.
	// ProgressDone is clamped to ProgressTotal at the storage layer so the
	// monotonicity invariant holds even against a buggy caller.
	UpdateProgress(ctx context.Context, tx Tx, id string, done, retries int, outputPaths []string) error

	// ResetRetries zeroes retry_count; only the explicit operator reset path
	// calls this.
	ResetRetries(ctx context.Context, tx Tx, id string) error
}
