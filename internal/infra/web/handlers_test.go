//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/model"
	"creator-ai-platform/internal/domain/ports/adapter"
	"creator-ai-platform/internal/usecase"
)

// --- Mock use cases ---

type mockWebhookUC struct {
	claims     map[string]bool
	resolved   []usecase.WorkerEvent
	billing    []string
	resolveErr error
}

func newMockWebhookUC() *mockWebhookUC {
	return &mockWebhookUC{claims: make(map[string]bool)}
}

func (m *mockWebhookUC) ClaimEvent(ctx context.Context, provider, eventID, eventType string) (usecase.EventClaim, error) {
	k := provider + ":" + eventID
	if m.claims[k] {
		return usecase.EventClaim{Duplicate: true}, nil
	}
	m.claims[k] = true
	return usecase.EventClaim{}, nil
}

func (m *mockWebhookUC) MarkProcessed(ctx context.Context, provider, eventID string) {}

func (m *mockWebhookUC) ResolveWorkerEvent(ctx context.Context, ev usecase.WorkerEvent) (*model.Job, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	m.resolved = append(m.resolved, ev)
	return &model.Job{ID: "job-1", Status: model.JobStatusCompleted}, nil
}

func (m *mockWebhookUC) RecordBillingEvent(ctx context.Context, eventType, leadID string) error {
	m.billing = append(m.billing, eventType)
	return nil
}

type mockAdmissionUC struct {
	result usecase.AdmissionResult
	err    error
	runs   int
}

func (m *mockAdmissionUC) AdmitBatch(ctx context.Context) (usecase.AdmissionResult, error) {
	m.runs++
	return m.result, m.err
}

type mockRequestUC struct {
	runErr     error
	submitErr  error
	approveErr error
}

func (m *mockRequestUC) Submit(ctx context.Context, in usecase.SubmitRequest) (*model.GenerationRequest, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &model.GenerationRequest{ID: "req-1", Status: model.RequestStatusPending}, nil
}

func (m *mockRequestUC) Approve(ctx context.Context, id string, notes *string) error { return m.approveErr }
func (m *mockRequestUC) Reject(ctx context.Context, id string, notes *string) error  { return m.approveErr }

func (m *mockRequestUC) RunApproved(ctx context.Context, id string) (*model.GenerationRequest, error) {
	if m.runErr != nil {
		return nil, m.runErr
	}
	return &model.GenerationRequest{ID: id, Status: model.RequestStatusCompleted}, nil
}

func (m *mockRequestUC) ResetRetries(ctx context.Context, id string) error { return nil }

type mockJobUC struct {
	trainErr error
}

func (m *mockJobUC) CreateGeneration(ctx context.Context, spec usecase.GenerationSpec) (*model.Job, error) {
	return &model.Job{ID: "job-1"}, nil
}

func (m *mockJobUC) CreateTraining(ctx context.Context, subjectID string, samplePaths []string) (*model.Job, error) {
	if m.trainErr != nil {
		return nil, m.trainErr
	}
	return &model.Job{ID: "job-1", Kind: model.JobKindTraining}, nil
}

func (m *mockJobUC) Status(ctx context.Context, jobID string) (*model.Job, error) {
	if jobID == "missing" {
		return nil, domain.ErrNotFound
	}
	return &model.Job{ID: jobID, Status: model.JobStatusRunning}, nil
}

type stubWorker struct{}

func (stubWorker) Submit(ctx context.Context, input adapter.WorkerInput, opts adapter.SubmitOptions) (string, error) {
	return "ext-1", nil
}
func (stubWorker) Health(ctx context.Context) (adapter.HealthStatus, error) {
	return adapter.HealthStatus{OK: true}, nil
}

type serverFixture struct {
	srv       *Server
	webhookUC *mockWebhookUC
	admission *mockAdmissionUC
	requests  *mockRequestUC
	jobs      *mockJobUC
}

func newServerFixture() *serverFixture {
	f := &serverFixture{
		webhookUC: newMockWebhookUC(),
		admission: &mockAdmissionUC{result: usecase.AdmissionResult{Admitted: 2}},
		requests:  &mockRequestUC{},
		jobs:      &mockJobUC{},
	}
	f.srv = NewServer(f.webhookUC, f.admission, f.requests, f.jobs, stubWorker{}, nil,
		"worker-secret", "cron-secret", "admin-key", zerolog.Nop())
	return f
}

func (f *serverFixture) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestWorkerWebhook(t *testing.T) {
	secret := map[string]string{"X-Worker-Secret": "worker-secret"}

	t.Run("should reject a wrong shared secret", func(t *testing.T) {
		f := newServerFixture()
		rec := f.do(t, http.MethodPost, "/webhooks/worker",
			map[string]any{"id": "ext-1", "status": "COMPLETED"},
			map[string]string{"X-Worker-Secret": "nope"})
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
		if len(f.webhookUC.resolved) != 0 {
			t.Error("expected no resolution on auth failure")
		}
	})

	t.Run("should resolve a callback", func(t *testing.T) {
		f := newServerFixture()
		rec := f.do(t, http.MethodPost, "/webhooks/worker", map[string]any{
			"id": "ext-1", "status": "COMPLETED",
			"output": map[string]string{"output_path": "/out/a.png"},
		}, secret)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(f.webhookUC.resolved) != 1 || f.webhookUC.resolved[0].OutputPath != "/out/a.png" {
			t.Errorf("unexpected resolution: %+v", f.webhookUC.resolved)
		}
	})

	t.Run("should answer duplicates with 200 and skip resolution", func(t *testing.T) {
		f := newServerFixture()
		body := map[string]any{"id": "ext-1", "status": "COMPLETED", "delivery_id": "d-1"}
		f.do(t, http.MethodPost, "/webhooks/worker", body, secret)
		rec := f.do(t, http.MethodPost, "/webhooks/worker", body, secret)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var out map[string]any
		json.Unmarshal(rec.Body.Bytes(), &out)
		if out["duplicate"] != true {
			t.Errorf("expected duplicate flag, got %v", out)
		}
		if len(f.webhookUC.resolved) != 1 {
			t.Errorf("expected one resolution, got %d", len(f.webhookUC.resolved))
		}
	})

	t.Run("should answer unknown jobs with 200 to stop retries", func(t *testing.T) {
		f := newServerFixture()
		f.webhookUC.resolveErr = domain.ErrNotFound
		rec := f.do(t, http.MethodPost, "/webhooks/worker",
			map[string]any{"id": "ghost", "status": "COMPLETED"}, secret)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

func TestBillingWebhook(t *testing.T) {
	signed := map[string]string{"X-Signature": "sig"}

	t.Run("should require a signature header", func(t *testing.T) {
		f := newServerFixture()
		rec := f.do(t, http.MethodPost, "/webhooks/billing", map[string]any{"id": "evt-1"}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("should record the event once across duplicate deliveries", func(t *testing.T) {
		f := newServerFixture()
		body := map[string]any{"id": "evt-1", "type": "lead.converted", "lead_id": "lead-1"}
		f.do(t, http.MethodPost, "/webhooks/billing", body, signed)
		rec := f.do(t, http.MethodPost, "/webhooks/billing", body, signed)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(f.webhookUC.billing) != 1 {
			t.Errorf("expected one recorded event, got %d", len(f.webhookUC.billing))
		}
	})
}

func TestCronAndAdminEndpoints(t *testing.T) {
	t.Run("should guard the cron route with the cron secret", func(t *testing.T) {
		f := newServerFixture()
		if rec := f.do(t, http.MethodGet, "/cron/enqueue-lead-samples", nil, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 without token, got %d", rec.Code)
		}
		if rec := f.do(t, http.MethodGet, "/cron/enqueue-lead-samples", nil,
			map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 with wrong token, got %d", rec.Code)
		}

		rec := f.do(t, http.MethodGet, "/cron/enqueue-lead-samples", nil,
			map[string]string{"Authorization": "Bearer cron-secret"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var out map[string]any
		json.Unmarshal(rec.Body.Bytes(), &out)
		if out["admitted"] != float64(2) {
			t.Errorf("expected admitted=2, got %v", out)
		}
		if f.admission.runs != 1 {
			t.Errorf("expected one admission run, got %d", f.admission.runs)
		}
	})

	t.Run("should run the same cycle from the admin trigger", func(t *testing.T) {
		f := newServerFixture()
		rec := f.do(t, http.MethodPost, "/admin/automation/run-enqueue-samples", nil,
			map[string]string{"Authorization": "Bearer admin-key"})
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if f.admission.runs != 1 {
			t.Errorf("expected one admission run, got %d", f.admission.runs)
		}
	})

	t.Run("should map not-runnable to 409 on generate", func(t *testing.T) {
		f := newServerFixture()
		f.requests.runErr = domain.ErrRequestNotRunnable
		rec := f.do(t, http.MethodPost, "/admin/generation-requests/req-1/generate", nil,
			map[string]string{"Authorization": "Bearer admin-key"})
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("should map an in-flight training to 409", func(t *testing.T) {
		f := newServerFixture()
		f.jobs.trainErr = domain.ErrTrainingInFlight
		rec := f.do(t, http.MethodPost, "/admin/subjects/s-1/train",
			map[string]any{"sample_paths": []string{"/p/a.jpg"}},
			map[string]string{"Authorization": "Bearer admin-key"})
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("should return job status", func(t *testing.T) {
		f := newServerFixture()
		rec := f.do(t, http.MethodGet, "/admin/jobs/job-1", nil,
			map[string]string{"Authorization": "Bearer admin-key"})
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		rec = f.do(t, http.MethodGet, "/admin/jobs/missing", nil,
			map[string]string{"Authorization": "Bearer admin-key"})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out map[string]any
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out["status"] != "ok" || out["worker"] != true {
		t.Errorf("unexpected health body: %v", out)
	}
}
