package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/model"
	"creator-ai-platform/internal/domain/ports/repository"
)

// Compile-time check
var _ RequestUseCase = (*requestUC)(nil)

// SubmitRequest is the user-facing order: N images + M videos rendered from
// the uploaded sample set.
type SubmitRequest struct {
	UserID      string
	SubjectID   *string
	SamplePaths []string
	ScenePreset string
	ImageCount  int
	VideoCount  int
}

type RequestUseCase interface {
	Submit(ctx context.Context, in SubmitRequest) (*model.GenerationRequest, error)

	// Approve and Reject are operator actions on a pending request.
	Approve(ctx context.Context, id string, notes *string) error
	Reject(ctx context.Context, id string, notes *string) error

	// RunApproved executes an approved (or failed, for retries) request
	// synchronously: one generation job per ordered unit, awaited in turn.
	RunApproved(ctx context.Context, id string) (*model.GenerationRequest, error)

	// ResetRetries is the explicit operator reset that precedes a fresh
	// attempt; nothing else may lower retry_count.
	ResetRetries(ctx context.Context, id string) error
}

type requestUC struct {
	requests repository.RequestRepository
	subjects repository.SubjectModelRepository
	creator  JobUseCase
	poller   PollUseCase
	poll     PollOptions
	log      zerolog.Logger
}

func NewRequestUseCase(
	requests repository.RequestRepository,
	subjects repository.SubjectModelRepository,
	creator JobUseCase,
	poller PollUseCase,
	poll PollOptions,
	log zerolog.Logger,
) *requestUC {
	return &requestUC{
		requests: requests,
		subjects: subjects,
		creator:  creator,
		poller:   poller,
		poll:     poll,
		log:      log.With().Str("component", "request_uc").Logger(),
	}
}

func (u *requestUC) Submit(ctx context.Context, in SubmitRequest) (*model.GenerationRequest, error) {
	if in.UserID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if len(in.SamplePaths) < model.MinRequestSamples || len(in.SamplePaths) > model.MaxRequestSamples {
		return nil, domain.ErrNotEnoughSamples
	}
	images := clamp(in.ImageCount, 1, model.MaxRequestImages)
	videos := clamp(in.VideoCount, 0, model.MaxRequestVideos)

	req := &model.GenerationRequest{
		UserID:        in.UserID,
		SubjectID:     in.SubjectID,
		SamplePaths:   in.SamplePaths,
		ScenePreset:   in.ScenePreset,
		ImageCount:    images,
		VideoCount:    videos,
		Status:        model.RequestStatusPending,
		ProgressTotal: images + videos,
	}
	if err := u.requests.Create(ctx, nil, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (u *requestUC) Approve(ctx context.Context, id string, notes *string) error {
	return u.transition(ctx, id, model.RequestStatusPending, model.RequestStatusApproved, notes)
}

func (u *requestUC) Reject(ctx context.Context, id string, notes *string) error {
	return u.transition(ctx, id, model.RequestStatusPending, model.RequestStatusRejected, notes)
}

func (u *requestUC) transition(ctx context.Context, id string, from, to model.RequestStatus, notes *string) error {
	req, err := u.requests.FindByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if req.Status != from {
		return domain.ErrRequestNotRunnable
	}
	return u.requests.UpdateStatus(ctx, nil, id, to, notes)
}

func (u *requestUC) RunApproved(ctx context.Context, id string) (*model.GenerationRequest, error) {
	req, err := u.requests.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !req.Runnable() {
		return nil, domain.ErrRequestNotRunnable
	}

	if err := u.requests.UpdateStatus(ctx, nil, req.ID, model.RequestStatusGenerating, nil); err != nil {
		return nil, err
	}
	// Fresh attempt starts from zero progress; retry_count carries over.
	if err := u.requests.UpdateProgress(ctx, nil, req.ID, 0, req.RetryCount, nil); err != nil {
		return nil, err
	}

	loraRef := u.loraRef(ctx, req.SubjectID)
	total := req.ImageCount + req.VideoCount

	var jobIDs []string
	dispatchFailures := 0
	for i := 0; i < total; i++ {
		// Round-robin over the sample set so every upload contributes.
		ref := req.SamplePaths[i%len(req.SamplePaths)]
		reqID := req.ID
		job, err := u.creator.CreateGeneration(ctx, GenerationSpec{
			Purpose:            model.JobPurposeUser,
			SubjectID:          req.SubjectID,
			RequestID:          &reqID,
			PresetKey:          req.ScenePreset,
			ReferenceImagePath: ref,
			LoraModelRef:       loraRef,
		})
		if err != nil {
			return nil, err
		}
		if !job.Dispatched() {
			// Never accepted by the worker; counts against this attempt
			// without waiting the full poll timeout on a row that cannot move.
			dispatchFailures++
			continue
		}
		jobIDs = append(jobIDs, job.ID)
	}

	batch, err := u.poller.AwaitAll(ctx, jobIDs, u.poll)
	if err != nil {
		return nil, err
	}

	successes := len(batch.Outputs)
	failures := total - successes
	if err := u.requests.UpdateProgress(ctx, nil, req.ID, successes, req.RetryCount+failures, batch.Outputs); err != nil {
		return nil, err
	}

	final := model.RequestStatusCompleted
	if failures > 0 {
		final = model.RequestStatusFailed
	}
	if err := u.requests.UpdateStatus(ctx, nil, req.ID, final, nil); err != nil {
		return nil, err
	}
	if failures > 0 {
		u.log.Warn().Str("request_id", req.ID).Int("failures", failures).
			Int("dispatch_failures", dispatchFailures).Str("first_failure", batch.FirstFailure).
			Msg("generation batch finished with failures")
	}

	return u.requests.FindByID(ctx, nil, req.ID)
}

func (u *requestUC) ResetRetries(ctx context.Context, id string) error {
	if _, err := u.requests.FindByID(ctx, nil, id); err != nil {
		return err
	}
	return u.requests.ResetRetries(ctx, nil, id)
}

// loraRef returns the subject's trained model reference when training has
// completed; generation falls back to the base model otherwise.
func (u *requestUC) loraRef(ctx context.Context, subjectID *string) *string {
	if subjectID == nil {
		return nil
	}
	sm, err := u.subjects.FindBySubject(ctx, nil, *subjectID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Err(err).Str("subject_id", *subjectID).Msg("failed to load subject model")
		}
		return nil
	}
	if sm.TrainingState != model.TrainingStateCompleted {
		return nil
	}
	return sm.LoraModelRef
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
