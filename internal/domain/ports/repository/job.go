package repository

import (
	"context"

	"creator-ai-platform/internal/domain/model"
)

type JobRepository interface {
	Create(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	FindByExternalID(ctx context.Context, tx Tx, externalID string) (*model.Job, error)

	// SetExternalID persists the worker handle onto a job row and moves the
	// status to running. The handle is written only when the column is still
	// NULL; a second write is a no-op so the handle can never be overwritten.
	SetExternalID(ctx context.Context, tx Tx, id, externalID string) error

	// MarkTerminal writes a terminal status (and output path on success) only
	// if the job is not already terminal. Returns whether the row changed, so
	// duplicate webhook deliveries surface as updated=false rather than errors.
	MarkTerminal(ctx context.Context, tx Tx, id string, status model.JobStatus, outputPath *string, lastError string) (bool, error)

	// LatestForLead returns the most recent job for a lead and purpose, used
	// by the admission controller to decide whether a stale claim is
	// retry-eligible.
	LatestForLead(ctx context.Context, tx Tx, leadID string, purpose model.JobPurpose) (*model.Job, error)

	// HasActiveTraining reports whether a pending or running training job
	// exists for the subject.
	HasActiveTraining(ctx context.Context, tx Tx, subjectID string) (bool, error)
}
