package model

import "time"

type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusApproved   RequestStatus = "approved"
	RequestStatusGenerating RequestStatus = "generating"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusFailed     RequestStatus = "failed"
	RequestStatusRejected   RequestStatus = "rejected"
)

// GenerationRequest is the user-facing aggregate: "N images + M videos from
// these samples". Constituent jobs report into ProgressDone / RetryCount.
//
// Invariants: ProgressDone <= ProgressTotal at all times; RetryCount only
// grows, except through an explicit operator reset before a new attempt.
type GenerationRequest struct {
	ID         string
	UserID     string
	SubjectID  *string
	SamplePaths []string
	ScenePreset string
	ImageCount  int
	VideoCount  int

	Status        RequestStatus
	ProgressDone  int
	ProgressTotal int
	RetryCount    int
	OutputPaths   []string
	AdminNotes    *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	MinRequestSamples = 10
	MaxRequestSamples = 20
	MaxRequestImages  = 250
	MaxRequestVideos  = 20
)

// Runnable reports whether an operator may (re)start generation for this
// request. Failed requests stay runnable so partial batches can be retried.
func (r *GenerationRequest) Runnable() bool {
	return r.Status == RequestStatusApproved || r.Status == RequestStatusFailed
}
