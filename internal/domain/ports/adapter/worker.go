package adapter

import (
	"context"
	"time"
)

// GenerationInput is the payload for an image generation unit of work.
type GenerationInput struct {
	JobID              string
	SubjectID          *string
	LeadID             *string
	Purpose            string
	PresetKey          string
	ReferenceImagePath string
	LoraModelRef       *string
}

// TrainingInput is the payload for a LoRA training unit of work.
type TrainingInput struct {
	JobID       string
	SubjectID   string
	SamplePaths []string
}

// WorkerInput is the tagged variant submitted to the worker. Exactly one of
// Generation/Training is set, matching Type.
type WorkerInput struct {
	Type       string // "generation" | "training"
	Generation *GenerationInput
	Training   *TrainingInput
}

// SubmitOptions carries the callback registration and the advisory execution
// timeout. The timeout is enforced by the worker, not locally.
type SubmitOptions struct {
	WebhookURL       string
	ExecutionTimeout time.Duration
}

// HealthStatus mirrors the worker endpoint's queue counters.
type HealthStatus struct {
	OK   bool
	Jobs map[string]int
}

// GPUWorkerAdapter is the capability surface of the external GPU worker.
//
// There is deliberately no Cancel: once submitted, work runs to the worker's
// own completion or timeout. Callers can stop waiting but cannot stop the
// remote execution.
type GPUWorkerAdapter interface {
	// Submit sends an asynchronous job to the worker and returns its external
	// handle. A non-2xx response or transport failure is an error; the caller
	// decides whether that is fatal (it is not, for admission cycles).
	Submit(ctx context.Context, input WorkerInput, opts SubmitOptions) (string, error)

	Health(ctx context.Context) (HealthStatus, error)
}
