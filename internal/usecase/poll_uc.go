package usecase

import (
	"context"
	"errors"
	"time"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/model"
	"creator-ai-platform/internal/domain/ports/repository"
	"creator-ai-platform/internal/infra/metrics"
)

// Compile-time check
var _ PollUseCase = (*pollUC)(nil)

type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 5 * time.Minute
)

// AwaitResult is the outcome of waiting on a single job. A timeout is an
// outcome, not an error: the job row is left exactly as the waiter found it.
type AwaitResult struct {
	JobID      string
	OK         bool
	OutputPath string
	Reason     string // "timeout", "job failed: ...", "job not found" when !OK
}

// BatchResult aggregates sequential waits. Outputs holds paths from completed
// jobs only, in submission order.
type BatchResult struct {
	Results      []AwaitResult
	Outputs      []string
	AllOK        bool
	FirstFailure string
}

type PollUseCase interface {
	AwaitJob(ctx context.Context, jobID string, opts PollOptions) (AwaitResult, error)

	// AwaitAll waits on each job in turn. Sequential on purpose: total wall
	// clock is bounded by len(jobIDs) * Timeout and the DB sees one reader.
	AwaitAll(ctx context.Context, jobIDs []string, opts PollOptions) (BatchResult, error)
}

type pollUC struct {
	jobs repository.JobRepository
}

func NewPollUseCase(jobs repository.JobRepository) *pollUC {
	return &pollUC{jobs: jobs}
}

func (u *pollUC) AwaitJob(ctx context.Context, jobID string, opts PollOptions) (AwaitResult, error) {
	if opts.Interval <= 0 {
		opts.Interval = defaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultPollTimeout
	}
	deadline := time.Now().Add(opts.Timeout)

	for {
		job, err := u.jobs.FindByID(ctx, nil, jobID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return AwaitResult{JobID: jobID, Reason: "job not found"}, nil
			}
			return AwaitResult{JobID: jobID}, err
		}

		switch job.Status {
		case model.JobStatusCompleted:
			var out string
			if job.OutputPath != nil {
				out = *job.OutputPath
			}
			return AwaitResult{JobID: jobID, OK: true, OutputPath: out}, nil
		case model.JobStatusFailed:
			reason := "job failed"
			if job.LastError != "" {
				reason += ": " + job.LastError
			}
			return AwaitResult{JobID: jobID, Reason: reason}, nil
		}

		if time.Now().After(deadline) {
			metrics.IncAwaitTimeout()
			return AwaitResult{JobID: jobID, Reason: "timeout"}, nil
		}

		select {
		case <-ctx.Done():
			return AwaitResult{JobID: jobID}, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

func (u *pollUC) AwaitAll(ctx context.Context, jobIDs []string, opts PollOptions) (BatchResult, error) {
	batch := BatchResult{AllOK: true}
	for _, id := range jobIDs {
		res, err := u.AwaitJob(ctx, id, opts)
		if err != nil {
			return batch, err
		}
		batch.Results = append(batch.Results, res)
		if res.OK {
			if res.OutputPath != "" {
				batch.Outputs = append(batch.Outputs, res.OutputPath)
			}
			continue
		}
		batch.AllOK = false
		if batch.FirstFailure == "" {
			batch.FirstFailure = res.Reason
		}
	}
	return batch, nil
}
