package repository

import (
	"context"

	"creator-ai-platform/internal/domain/model"
)

// EventLogRepository records automation events for observability only; nothing
// in the pipeline reads them back.
type EventLogRepository interface {
	Record(ctx context.Context, tx Tx, event *model.AutomationEvent) error
}
