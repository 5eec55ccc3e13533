package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"creator-ai-platform/internal/domain/ports/adapter"
)

var _ adapter.GPUWorkerAdapter = (*RunPodAdapter)(nil)

// RunPodAdapter implements adapter.GPUWorkerAdapter against a RunPod-style
// serverless endpoint: POST {base}/{endpoint}/run enqueues, the worker calls
// back on the registered webhook when done.
type RunPodAdapter struct {
	baseURL    string
	endpointID string
	apiKey     string
	client     *http.Client
}

func NewRunPodAdapter(baseURL, endpointID, apiKey string) (*RunPodAdapter, error) {
	if endpointID == "" {
		return nil, errors.New("runpod endpoint id empty")
	}
	if baseURL == "" {
		baseURL = "https://api.runpod.ai/v2"
	}
	return &RunPodAdapter{
		baseURL:    baseURL,
		endpointID: endpointID,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *RunPodAdapter) url(path string) string {
	return fmt.Sprintf("%s/%s%s", a.baseURL, a.endpointID, path)
}

// Submit enqueues an asynchronous run and returns the worker's job id. The
// execution timeout is advisory and enforced remotely, in milliseconds.
func (a *RunPodAdapter) Submit(ctx context.Context, input adapter.WorkerInput, opts adapter.SubmitOptions) (string, error) {
	payload := map[string]any{
		"input": buildInput(input),
	}
	if opts.WebhookURL != "" {
		payload["webhook"] = opts.WebhookURL
	}
	if opts.ExecutionTimeout > 0 {
		payload["policy"] = map[string]any{
			"executionTimeout": opts.ExecutionTimeout.Milliseconds(),
		}
	}

	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url("/run"), bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("worker submit failed: status %d", resp.StatusCode)
	}

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("worker submit failed: empty job id")
	}
	return out.ID, nil
}

func (a *RunPodAdapter) Health(ctx context.Context) (adapter.HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url("/health"), nil)
	if err != nil {
		return adapter.HealthStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return adapter.HealthStatus{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return adapter.HealthStatus{OK: false}, nil
	}

	var out struct {
		Jobs map[string]int `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return adapter.HealthStatus{}, err
	}
	return adapter.HealthStatus{OK: true, Jobs: out.Jobs}, nil
}

// buildInput flattens the tagged variant into the JSON shape the handler
// script expects. job_id travels with the payload so webhook callbacks can be
// correlated even if the external id is lost.
func buildInput(in adapter.WorkerInput) map[string]any {
	m := map[string]any{"type": in.Type}
	switch {
	case in.Generation != nil:
		g := in.Generation
		m["job_id"] = g.JobID
		m["purpose"] = g.Purpose
		m["preset"] = g.PresetKey
		m["reference_image"] = g.ReferenceImagePath
		if g.LoraModelRef != nil {
			m["lora_model"] = *g.LoraModelRef
		}
		if g.SubjectID != nil {
			m["subject_id"] = *g.SubjectID
		}
		if g.LeadID != nil {
			m["lead_id"] = *g.LeadID
		}
	case in.Training != nil:
		t := in.Training
		m["job_id"] = t.JobID
		m["subject_id"] = t.SubjectID
		m["sample_paths"] = t.SamplePaths
	}
	return m
}
