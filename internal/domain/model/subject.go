package model

import "time"

type TrainingState string

const (
	TrainingStatePending   TrainingState = "pending"
	TrainingStateRunning   TrainingState = "running"
	TrainingStateCompleted TrainingState = "completed"
	TrainingStateFailed    TrainingState = "failed"
)

// SubjectModel tracks the per-subject LoRA model produced by training jobs.
// LoraModelRef is filled in once a training job completes.
type SubjectModel struct {
	ID            string
	SubjectID     string
	TrainingState TrainingState
	LoraModelRef  *string
	UpdatedAt     time.Time
}

const (
	MinTrainingPhotos = 30
	MaxTrainingPhotos = 60
)
