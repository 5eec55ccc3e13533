package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/model"
	"creator-ai-platform/internal/domain/ports/adapter"
	"creator-ai-platform/internal/domain/ports/repository"
	"creator-ai-platform/internal/infra/metrics"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

// GenerationSpec is everything needed to run one generation unit of work.
type GenerationSpec struct {
	Purpose            model.JobPurpose
	SubjectID          *string
	LeadID             *string
	RequestID          *string
	PresetKey          string
	ReferenceImagePath string
	LoraModelRef       *string
}

// WorkerSettings carries the callback contract and per-kind execution
// timeouts, resolved once from config at wiring time.
type WorkerSettings struct {
	WebhookURL        string
	GenerationTimeout time.Duration
	TrainingTimeout   time.Duration
}

type JobUseCase interface {
	// CreateGeneration inserts a pending job row and dispatches it. A dispatch
	// rejection is NOT an error: the row stays pending without an external
	// handle and the caller inspects Dispatched() if it cares.
	CreateGeneration(ctx context.Context, spec GenerationSpec) (*model.Job, error)

	// CreateTraining refuses when a training job is already in flight for the
	// subject, and requires 30 to 60 sample photos.
	CreateTraining(ctx context.Context, subjectID string, samplePaths []string) (*model.Job, error)

	Status(ctx context.Context, jobID string) (*model.Job, error)
}

type jobUC struct {
	jobs     repository.JobRepository
	subjects repository.SubjectModelRepository
	worker   adapter.GPUWorkerAdapter
	settings WorkerSettings
	log      zerolog.Logger
}

func NewJobUseCase(jobs repository.JobRepository, subjects repository.SubjectModelRepository, worker adapter.GPUWorkerAdapter, settings WorkerSettings, log zerolog.Logger) *jobUC {
	return &jobUC{
		jobs:     jobs,
		subjects: subjects,
		worker:   worker,
		settings: settings,
		log:      log.With().Str("component", "job_uc").Logger(),
	}
}

func (u *jobUC) CreateGeneration(ctx context.Context, spec GenerationSpec) (*model.Job, error) {
	if spec.ReferenceImagePath == "" {
		return nil, domain.ErrInvalidArgument
	}
	if spec.Purpose == "" {
		spec.Purpose = model.JobPurposeUser
	}

	job := &model.Job{
		Kind:               model.JobKindGeneration,
		Purpose:            spec.Purpose,
		SubjectID:          spec.SubjectID,
		LeadID:             spec.LeadID,
		RequestID:          spec.RequestID,
		PresetKey:          spec.PresetKey,
		ReferenceImagePath: spec.ReferenceImagePath,
		LoraModelRef:       spec.LoraModelRef,
	}
	if err := u.jobs.Create(ctx, nil, job); err != nil {
		return nil, err
	}

	u.dispatch(ctx, job)
	return job, nil
}

func (u *jobUC) CreateTraining(ctx context.Context, subjectID string, samplePaths []string) (*model.Job, error) {
	if subjectID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if len(samplePaths) < model.MinTrainingPhotos || len(samplePaths) > model.MaxTrainingPhotos {
		return nil, domain.ErrNotEnoughSamples
	}

	active, err := u.jobs.HasActiveTraining(ctx, nil, subjectID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, domain.ErrTrainingInFlight
	}

	job := &model.Job{
		Kind:        model.JobKindTraining,
		Purpose:     model.JobPurposeUser,
		SubjectID:   &subjectID,
		SamplePaths: samplePaths,
	}
	if err := u.jobs.Create(ctx, nil, job); err != nil {
		return nil, err
	}
	if err := u.subjects.UpsertState(ctx, nil, subjectID, model.TrainingStatePending, nil); err != nil {
		u.log.Warn().Err(err).Str("subject_id", subjectID).Msg("failed to record training state")
	}

	if u.dispatch(ctx, job) {
		if err := u.subjects.UpsertState(ctx, nil, subjectID, model.TrainingStateRunning, nil); err != nil {
			u.log.Warn().Err(err).Str("subject_id", subjectID).Msg("failed to record training state")
		}
	}
	return job, nil
}

func (u *jobUC) Status(ctx context.Context, jobID string) (*model.Job, error) {
	return u.jobs.FindByID(ctx, nil, jobID)
}

// dispatch submits the row to the worker and persists the returned handle.
// Rejections leave the row pending; reporting true means the worker accepted.
func (u *jobUC) dispatch(ctx context.Context, job *model.Job) bool {
	input := buildWorkerInput(job)
	timeout := u.settings.GenerationTimeout
	if job.Kind == model.JobKindTraining {
		timeout = u.settings.TrainingTimeout
	}

	externalID, err := u.worker.Submit(ctx, input, adapter.SubmitOptions{
		WebhookURL:       u.settings.WebhookURL,
		ExecutionTimeout: timeout,
	})
	if err != nil {
		metrics.IncDispatchRejected(string(job.Kind))
		u.log.Warn().Err(err).
			Str("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Msg("worker rejected dispatch, job left pending")
		return false
	}

	if err := u.jobs.SetExternalID(ctx, nil, job.ID, externalID); err != nil {
		u.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist external id")
		return false
	}
	job.ExternalID = &externalID
	job.Status = model.JobStatusRunning
	metrics.IncJobDispatched(string(job.Kind), string(job.Purpose))
	return true
}

func buildWorkerInput(job *model.Job) adapter.WorkerInput {
	switch job.Kind {
	case model.JobKindTraining:
		var subjectID string
		if job.SubjectID != nil {
			subjectID = *job.SubjectID
		}
		return adapter.WorkerInput{
			Type: string(model.JobKindTraining),
			Training: &adapter.TrainingInput{
				JobID:       job.ID,
				SubjectID:   subjectID,
				SamplePaths: job.SamplePaths,
			},
		}
	default:
		return adapter.WorkerInput{
			Type: string(model.JobKindGeneration),
			Generation: &adapter.GenerationInput{
				JobID:              job.ID,
				SubjectID:          job.SubjectID,
				LeadID:             job.LeadID,
				Purpose:            string(job.Purpose),
				PresetKey:          job.PresetKey,
				ReferenceImagePath: job.ReferenceImagePath,
				LoraModelRef:       job.LoraModelRef,
			},
		}
	}
}
