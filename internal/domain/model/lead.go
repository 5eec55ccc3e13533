package model

import (
	"strings"
	"time"
)

type LeadStatus string

const (
	LeadStatusImported     LeadStatus = "imported"
	LeadStatusQualified    LeadStatus = "qualified"
	LeadStatusSampleQueued LeadStatus = "sample_queued"
	LeadStatusSampleReady  LeadStatus = "sample_ready"
	LeadStatusContacted    LeadStatus = "contacted"
	LeadStatusConverted    LeadStatus = "converted"
)

// Lead is a prospect discovered by the scraping pipeline (an external
// collaborator). The orchestration core only reads leads as admission
// candidates and advances their status as sample jobs move through the
// pipeline.
type Lead struct {
	ID          string
	Handle      string
	Status      LeadStatus
	ImageURLs   []string // scraped, may be empty or stale
	SamplePaths []string // locally stored uploads
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MinSamplePaths is the readiness bar for sample generation: with fewer
// reference uploads the generated sample is not representative.
const MinSamplePaths = 3

// Ready reports whether the lead qualifies as an admission candidate.
func (l *Lead) Ready() bool {
	return len(l.SamplePaths) >= MinSamplePaths
}

// ReferenceInput picks the image handed to the worker: the first scraped http
// URL wins, otherwise the first stored sample path. Empty means the lead is
// skipped this cycle without consuming admission capacity.
func (l *Lead) ReferenceInput() string {
	for _, u := range l.ImageURLs {
		if strings.HasPrefix(u, "http") {
			return u
		}
	}
	if len(l.SamplePaths) > 0 {
		return l.SamplePaths[0]
	}
	return ""
}

// IdempotencyKey is the deterministic claim key for lead-sample admission.
func (l *Lead) IdempotencyKey() string {
	return "lead_sample:" + l.ID
}
