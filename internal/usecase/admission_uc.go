package usecase

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/model"
	"creator-ai-platform/internal/domain/ports/repository"
	"creator-ai-platform/internal/infra/logging"
	"creator-ai-platform/internal/infra/metrics"
)

// Compile-time check
var _ AdmissionUseCase = (*admissionUC)(nil)

// AdmissionResult summarizes one cycle. Reason is set when the cycle stopped
// before looking at candidates (budget) or explains an empty run.
type AdmissionResult struct {
	Admitted int
	Skipped  int
	Reason   string
}

type AdmissionUseCase interface {
	// AdmitBatch runs one admission cycle: budget gate, candidate selection,
	// idempotency claims, job creation and dispatch. Safe to trigger from
	// several places at once; the claim table arbitrates overlap.
	AdmitBatch(ctx context.Context) (AdmissionResult, error)
}

type admissionUC struct {
	settings repository.SettingsRepository
	usage    repository.UsageRepository
	leads    repository.LeadRepository
	claims   repository.IdempotencyRepository
	jobs     repository.JobRepository
	events   repository.EventLogRepository
	creator  JobUseCase
	log      zerolog.Logger
}

func NewAdmissionUseCase(
	settings repository.SettingsRepository,
	usage repository.UsageRepository,
	leads repository.LeadRepository,
	claims repository.IdempotencyRepository,
	jobs repository.JobRepository,
	events repository.EventLogRepository,
	creator JobUseCase,
	log zerolog.Logger,
) *admissionUC {
	return &admissionUC{
		settings: settings,
		usage:    usage,
		leads:    leads,
		claims:   claims,
		jobs:     jobs,
		events:   events,
		creator:  creator,
		log:      log.With().Str("component", "admission_uc").Logger(),
	}
}

func (u *admissionUC) AdmitBatch(ctx context.Context) (AdmissionResult, error) {
	// Settings are read fresh every cycle so operator changes apply on the
	// next run without a restart.
	budget := u.floatSetting(ctx, model.SettingLeadSampleDailyBudgetUSD, 0)
	maxPerRun := u.intSetting(ctx, model.SettingLeadSampleMaxPerRun, model.DefaultMaxPerRun)

	// Budget gate runs before any candidate work. Spend is summed from UTC
	// midnight; a budget of zero disables the gate.
	if budget > 0 {
		spent, err := u.usage.SumSinceUTCMidnight(ctx, nil, model.JobPurposeLeadSample)
		if err != nil {
			metrics.IncAdmissionCycle("error")
			return AdmissionResult{}, err
		}
		if spent >= budget {
			metrics.IncBudgetStop()
			metrics.IncAdmissionCycle("budget")
			u.log.Info().Float64("spent_usd", spent).Float64("budget_usd", budget).
				Msg("daily budget reached, admission skipped")
			return AdmissionResult{Reason: "daily budget reached"}, nil
		}
	}

	// Oversample the candidate pool so unready or claimed leads do not starve
	// the cycle.
	candidates, err := u.leads.ListCandidates(ctx, nil, 3*maxPerRun)
	if err != nil {
		metrics.IncAdmissionCycle("error")
		return AdmissionResult{}, err
	}

	var result AdmissionResult
	for _, lead := range candidates {
		if result.Admitted >= maxPerRun {
			break
		}
		if !lead.Ready() {
			result.Skipped++
			continue
		}

		cctx := logging.WithLeadID(ctx, lead.ID)

		key := lead.IdempotencyKey()
		exists, err := u.claims.Exists(cctx, nil, key)
		if err != nil {
			return result, err
		}
		if exists {
			// A stale claim whose job failed is released so the lead gets
			// another attempt. Any other state means work is done or in flight.
			if !u.releaseIfRetryable(cctx, lead.ID, key) {
				result.Skipped++
				continue
			}
		}

		if err := u.claims.Insert(cctx, nil, key); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				// Another cycle claimed it between our check and insert.
				result.Skipped++
				continue
			}
			return result, err
		}

		ref := lead.ReferenceInput()
		if ref == "" {
			// Nothing to hand the worker. Release the claim so a future
			// upload makes the lead admittable again; no capacity consumed.
			u.releaseClaim(cctx, key)
			continue
		}

		leadID := lead.ID
		job, err := u.creator.CreateGeneration(cctx, GenerationSpec{
			Purpose:            model.JobPurposeLeadSample,
			LeadID:             &leadID,
			ReferenceImagePath: ref,
		})
		if err != nil {
			u.releaseClaim(cctx, key)
			logging.With(cctx, &u.log).Error().Err(err).Msg("failed to create sample job")
			result.Skipped++
			continue
		}

		if err := u.leads.UpdateStatus(cctx, nil, lead.ID, model.LeadStatusSampleQueued); err != nil {
			logging.With(cctx, &u.log).Warn().Err(err).Msg("failed to advance lead status")
		}
		u.audit(cctx, lead.ID, job.ID, job.Dispatched())
		result.Admitted++
	}

	metrics.AddAdmitted(result.Admitted)
	metrics.IncAdmissionCycle("ok")
	u.log.Info().Int("admitted", result.Admitted).Int("skipped", result.Skipped).
		Int("max_per_run", maxPerRun).Msg("admission cycle finished")
	return result, nil
}

// releaseIfRetryable deletes the claim when the lead's latest sample job
// failed (or vanished), reporting whether the caller may re-claim.
func (u *admissionUC) releaseIfRetryable(ctx context.Context, leadID, key string) bool {
	last, err := u.jobs.LatestForLead(ctx, nil, leadID, model.JobPurposeLeadSample)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Claim without a job: a previous cycle died between claim and
			// create. Release and retry.
			u.releaseClaim(ctx, key)
			return true
		}
		logging.With(ctx, &u.log).Warn().Err(err).Msg("failed to inspect latest sample job")
		return false
	}
	if last.Status != model.JobStatusFailed {
		return false
	}
	u.releaseClaim(ctx, key)
	return true
}

func (u *admissionUC) releaseClaim(ctx context.Context, key string) {
	if err := u.claims.Delete(ctx, nil, key); err != nil {
		u.log.Warn().Err(err).Str("key", key).Msg("failed to release claim")
	}
}

func (u *admissionUC) audit(ctx context.Context, leadID, jobID string, dispatched bool) {
	err := u.events.Record(ctx, nil, &model.AutomationEvent{
		EventType:  "job_enqueued",
		EntityType: "lead",
		EntityID:   leadID,
		Payload:    map[string]interface{}{"job_id": jobID, "dispatched": dispatched},
	})
	if err != nil {
		logging.With(ctx, &u.log).Warn().Err(err).Msg("failed to record audit event")
	}
}

func (u *admissionUC) intSetting(ctx context.Context, key string, def int) int {
	raw, err := u.settings.Get(ctx, nil, key)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (u *admissionUC) floatSetting(ctx context.Context, key string, def float64) float64 {
	raw, err := u.settings.Get(ctx, nil, key)
	if err != nil {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}
