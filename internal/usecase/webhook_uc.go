package usecase

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/model"
	"creator-ai-platform/internal/domain/ports/repository"
	"creator-ai-platform/internal/infra/logging"
	"creator-ai-platform/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// EventClaim is the outcome of the insert-as-claim dedup. LockUnavailable
// means the dedup table is missing; the caller proceeds without protection.
type EventClaim struct {
	Duplicate       bool
	LockUnavailable bool
}

// WorkerEvent is the worker's callback payload after normalization.
type WorkerEvent struct {
	ExternalID string
	Status     string // IN_QUEUE | IN_PROGRESS | COMPLETED | FAILED | TIMED_OUT | CANCELLED
	OutputPath string
	Error      string
}

// JobCosts is the flat per-kind price recorded in the usage ledger when a job
// completes.
type JobCosts struct {
	GenerationUSD float64
	TrainingUSD   float64
}

type WebhookUseCase interface {
	// ClaimEvent deduplicates a delivery. Duplicate and LockUnavailable are
	// outcomes, not errors.
	ClaimEvent(ctx context.Context, provider, eventID, eventType string) (EventClaim, error)

	// MarkProcessed is best-effort bookkeeping after a handled event.
	MarkProcessed(ctx context.Context, provider, eventID string)

	// ResolveWorkerEvent applies a worker callback to the owning job row and
	// fans out: usage ledger, lead advancement, request progress, subject
	// training state. Non-terminal statuses are ignored.
	ResolveWorkerEvent(ctx context.Context, ev WorkerEvent) (*model.Job, error)

	// RecordBillingEvent captures a billing-provider event in the audit trail
	// and advances the lead on a conversion. Unknown event types are recorded
	// and otherwise ignored.
	RecordBillingEvent(ctx context.Context, eventType, leadID string) error
}

type webhookUC struct {
	events   repository.WebhookEventRepository
	jobs     repository.JobRepository
	leads    repository.LeadRepository
	usage    repository.UsageRepository
	requests repository.RequestRepository
	subjects repository.SubjectModelRepository
	audit    repository.EventLogRepository
	tm       repository.TransactionManager
	costs    JobCosts
	log      zerolog.Logger
}

func NewWebhookUseCase(
	events repository.WebhookEventRepository,
	jobs repository.JobRepository,
	leads repository.LeadRepository,
	usage repository.UsageRepository,
	requests repository.RequestRepository,
	subjects repository.SubjectModelRepository,
	audit repository.EventLogRepository,
	tm repository.TransactionManager,
	costs JobCosts,
	log zerolog.Logger,
) *webhookUC {
	return &webhookUC{
		events:   events,
		jobs:     jobs,
		leads:    leads,
		usage:    usage,
		requests: requests,
		subjects: subjects,
		audit:    audit,
		tm:       tm,
		costs:    costs,
		log:      log.With().Str("component", "webhook_uc").Logger(),
	}
}

func (u *webhookUC) ClaimEvent(ctx context.Context, provider, eventID, eventType string) (EventClaim, error) {
	err := u.events.Claim(ctx, nil, provider, eventID, eventType)
	switch {
	case err == nil:
		metrics.IncWebhookEvent(provider, "claimed")
		return EventClaim{}, nil
	case errors.Is(err, domain.ErrDuplicateEvent):
		metrics.IncWebhookEvent(provider, "duplicate")
		return EventClaim{Duplicate: true}, nil
	case errors.Is(err, domain.ErrLockUnavailable):
		metrics.IncWebhookEvent(provider, "lock_unavailable")
		u.log.Warn().Str("provider", provider).Str("event_id", eventID).
			Msg("event lock table missing, proceeding without dedup")
		return EventClaim{LockUnavailable: true}, nil
	default:
		metrics.IncWebhookEvent(provider, "error")
		return EventClaim{}, err
	}
}

func (u *webhookUC) MarkProcessed(ctx context.Context, provider, eventID string) {
	if err := u.events.MarkProcessed(ctx, nil, provider, eventID); err != nil {
		u.log.Warn().Err(err).Str("provider", provider).Str("event_id", eventID).
			Msg("failed to mark event processed")
	}
}

func (u *webhookUC) ResolveWorkerEvent(ctx context.Context, ev WorkerEvent) (*model.Job, error) {
	job, err := u.jobs.FindByExternalID(ctx, nil, ev.ExternalID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithJobID(ctx, job.ID)

	switch ev.Status {
	case "FAILED", "TIMED_OUT", "CANCELLED":
		return u.resolveFailed(ctx, job, ev)
	case "COMPLETED":
		return u.resolveCompleted(ctx, job, ev)
	default:
		// IN_QUEUE / IN_PROGRESS progress pings carry nothing actionable.
		return job, nil
	}
}

func (u *webhookUC) resolveFailed(ctx context.Context, job *model.Job, ev WorkerEvent) (*model.Job, error) {
	reason := ev.Error
	if reason == "" {
		reason = "worker reported " + ev.Status
	}
	updated, err := u.jobs.MarkTerminal(ctx, nil, job.ID, model.JobStatusFailed, nil, reason)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Late delivery for an already-terminal row.
		return job, nil
	}
	job.Status = model.JobStatusFailed
	job.LastError = reason
	metrics.IncJobResolved(string(job.Kind), string(model.JobStatusFailed))

	if job.Kind == model.JobKindTraining && job.SubjectID != nil {
		if err := u.subjects.UpsertState(ctx, nil, *job.SubjectID, model.TrainingStateFailed, nil); err != nil {
			logging.With(ctx, &u.log).Warn().Err(err).Msg("failed to record training state")
		}
	}
	u.bumpRequest(ctx, job, false, "")
	return job, nil
}

func (u *webhookUC) resolveCompleted(ctx context.Context, job *model.Job, ev WorkerEvent) (*model.Job, error) {
	if ev.OutputPath == "" {
		// A completion with no artifact is useless downstream; treat as failed.
		return u.resolveFailed(ctx, job, WorkerEvent{
			ExternalID: ev.ExternalID,
			Status:     "FAILED",
			Error:      "worker completed without an output path",
		})
	}

	// The terminal write and the ledger entry land together or not at all:
	// billing must never see a cost for a job that is still running.
	var updated bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var txErr error
		updated, txErr = u.jobs.MarkTerminal(ctx, tx, job.ID, model.JobStatusCompleted, &ev.OutputPath, "")
		if txErr != nil || !updated {
			return txErr
		}
		return u.recordUsage(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	if !updated {
		return job, nil
	}
	job.Status = model.JobStatusCompleted
	job.OutputPath = &ev.OutputPath
	metrics.IncJobResolved(string(job.Kind), string(model.JobStatusCompleted))

	if job.Kind == model.JobKindTraining && job.SubjectID != nil {
		if err := u.subjects.UpsertState(ctx, nil, *job.SubjectID, model.TrainingStateCompleted, &ev.OutputPath); err != nil {
			logging.With(ctx, &u.log).Warn().Err(err).Msg("failed to record training state")
		}
	}

	if job.Purpose == model.JobPurposeLeadSample && job.LeadID != nil {
		if err := u.leads.UpdateStatus(ctx, nil, *job.LeadID, model.LeadStatusSampleReady); err != nil {
			u.log.Warn().Err(err).Str("lead_id", *job.LeadID).Msg("failed to advance lead status")
		} else if err := u.audit.Record(ctx, nil, &model.AutomationEvent{
			EventType:  "sample_ready",
			EntityType: "lead",
			EntityID:   *job.LeadID,
			Payload:    map[string]interface{}{"job_id": job.ID, "output_path": ev.OutputPath},
		}); err != nil {
			u.log.Warn().Err(err).Str("lead_id", *job.LeadID).Msg("failed to record audit event")
		}
	}

	u.bumpRequest(ctx, job, true, ev.OutputPath)
	return job, nil
}

func (u *webhookUC) RecordBillingEvent(ctx context.Context, eventType, leadID string) error {
	if eventType == "lead.converted" && leadID != "" {
		if err := u.leads.UpdateStatus(ctx, nil, leadID, model.LeadStatusConverted); err != nil {
			u.log.Warn().Err(err).Str("lead_id", leadID).Msg("failed to mark lead converted")
		}
	}
	return u.audit.Record(ctx, nil, &model.AutomationEvent{
		EventType:  eventType,
		EntityType: "lead",
		EntityID:   leadID,
		Payload:    map[string]interface{}{"source": "billing"},
	})
}

func (u *webhookUC) recordUsage(ctx context.Context, tx repository.Tx, job *model.Job) error {
	cost := u.costs.GenerationUSD
	if job.Kind == model.JobKindTraining {
		cost = u.costs.TrainingUSD
	}
	return u.usage.Insert(ctx, tx, &model.UsageEntry{
		JobID:   job.ID,
		Purpose: job.Purpose,
		Kind:    job.Kind,
		CostUSD: cost,
	})
}

// bumpRequest propagates a constituent job outcome into the owning aggregate:
// completion advances progress_done, failure advances retry_count.
func (u *webhookUC) bumpRequest(ctx context.Context, job *model.Job, completed bool, outputPath string) {
	if job.RequestID == nil {
		return
	}
	req, err := u.requests.FindByID(ctx, nil, *job.RequestID)
	if err != nil {
		u.log.Warn().Err(err).Str("request_id", *job.RequestID).Msg("failed to load owning request")
		return
	}
	done, retries := req.ProgressDone, req.RetryCount
	outputs := req.OutputPaths
	if completed {
		done++
		if outputPath != "" {
			outputs = append(outputs, outputPath)
		}
	} else {
		retries++
	}
	if err := u.requests.UpdateProgress(ctx, nil, req.ID, done, retries, outputs); err != nil {
		u.log.Warn().Err(err).Str("request_id", req.ID).Msg("failed to update request progress")
	}
}
