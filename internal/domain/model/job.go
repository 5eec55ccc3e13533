package model

import "time"

type JobKind string

const (
	JobKindGeneration JobKind = "generation"
	JobKindTraining   JobKind = "training"
)

type JobPurpose string

const (
	JobPurposeUser       JobPurpose = "user"
	JobPurposeLeadSample JobPurpose = "lead_sample"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions may occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one dispatched unit of GPU work. ExternalID is the worker's own job
// handle; it is set at most once (when dispatch succeeds) and never cleared.
// OutputPath is set only together with a completed status.
type Job struct {
	ID      string
	Kind    JobKind
	Purpose JobPurpose
	Status  JobStatus

	ExternalID *string
	OutputPath *string
	LastError  string

	// Owning context. SubjectID is set for user work, LeadID for lead samples;
	// RequestID links generation jobs back to their aggregate request.
	SubjectID *string
	LeadID    *string
	RequestID *string

	// Generation inputs
	PresetKey          string
	ReferenceImagePath string
	LoraModelRef       *string

	// Training inputs
	SamplePaths []string

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Dispatched reports whether the worker has accepted this job. A pending row
// without an external handle was never dispatched (or dispatch was rejected),
// which is a distinct operational state from "failed during execution".
func (j *Job) Dispatched() bool {
	return j.ExternalID != nil && *j.ExternalID != ""
}
