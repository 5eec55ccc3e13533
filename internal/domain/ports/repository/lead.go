package repository

import (
	"context"

	"creator-ai-platform/internal/domain/model"
)

type LeadRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Lead, error)

	// ListCandidates returns leads eligible for sample admission (qualified or
	// imported), oldest-updated first so repeated cycles are fair.
	ListCandidates(ctx context.Context, tx Tx, limit int) ([]*model.Lead, error)

	UpdateStatus(ctx context.Context, tx Tx, id string, status model.LeadStatus) error
}
