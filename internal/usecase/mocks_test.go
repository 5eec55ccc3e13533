//go:build !integration

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/model"
	"creator-ai-platform/internal/domain/ports/adapter"
	"creator-ai-platform/internal/domain/ports/repository"
)

// memJobRepo is a small in-memory implementation used by unit tests.
type memJobRepo struct {
	mu    sync.RWMutex
	seq   int
	store map[string]*model.Job
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.Job)}
}

func (m *memJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", m.seq)
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		// Strictly increasing so LatestForLead is deterministic.
		job.CreatedAt = time.Unix(int64(m.seq), 0)
	}
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalID string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.store {
		if j.ExternalID != nil && *j.ExternalID == externalID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memJobRepo) SetExternalID(ctx context.Context, tx repository.Tx, id, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return domain.ErrOperationFailed
	}
	if j.ExternalID != nil {
		return nil
	}
	now := time.Now()
	j.ExternalID = &externalID
	j.Status = model.JobStatusRunning
	j.StartedAt = &now
	return nil
}

func (m *memJobRepo) MarkTerminal(ctx context.Context, tx repository.Tx, id string, status model.JobStatus, outputPath *string, lastError string) (bool, error) {
	if !status.IsTerminal() {
		return false, domain.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if j.Status.IsTerminal() {
		return false, nil
	}
	now := time.Now()
	j.Status = status
	j.LastError = lastError
	j.FinishedAt = &now
	if status == model.JobStatusCompleted && outputPath != nil {
		j.OutputPath = outputPath
	}
	return true, nil
}

func (m *memJobRepo) LatestForLead(ctx context.Context, tx repository.Tx, leadID string, purpose model.JobPurpose) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *model.Job
	for _, j := range m.store {
		if j.LeadID == nil || *j.LeadID != leadID || j.Purpose != purpose {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memJobRepo) HasActiveTraining(ctx context.Context, tx repository.Tx, subjectID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.store {
		if j.Kind == model.JobKindTraining && j.SubjectID != nil && *j.SubjectID == subjectID && !j.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memJobRepo) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// memLeadRepo holds leads keyed by id, ordered for ListCandidates by UpdatedAt.
type memLeadRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Lead
}

func newMemLeadRepo() *memLeadRepo {
	return &memLeadRepo{store: make(map[string]*model.Lead)}
}

func (m *memLeadRepo) add(l *model.Lead) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.store[l.ID] = &cp
}

func (m *memLeadRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLeadRepo) ListCandidates(ctx context.Context, tx repository.Tx, limit int) ([]*model.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Lead
	for _, l := range m.store {
		if l.Status == model.LeadStatusQualified || l.Status == model.LeadStatusImported {
			cp := *l
			out = append(out, &cp)
		}
	}
	// oldest updated first
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].UpdatedAt.Before(out[i].UpdatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLeadRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.LeadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = time.Now()
	return nil
}

// memUsageRepo records entries and serves the budget sum.
type memUsageRepo struct {
	mu      sync.RWMutex
	entries []*model.UsageEntry
	sumErr  error
}

func newMemUsageRepo() *memUsageRepo { return &memUsageRepo{} }

func (m *memUsageRepo) Insert(ctx context.Context, tx repository.Tx, entry *model.UsageEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memUsageRepo) SumSinceUTCMidnight(ctx context.Context, tx repository.Tx, purpose model.JobPurpose) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sumErr != nil {
		return 0, m.sumErr
	}
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	var sum float64
	for _, e := range m.entries {
		if e.Purpose == purpose && !e.CreatedAt.UTC().Before(midnight) {
			sum += e.CostUSD
		}
	}
	return sum, nil
}

// memIdempotencyRepo is the claim set used by admission tests.
type memIdempotencyRepo struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemIdempotencyRepo() *memIdempotencyRepo {
	return &memIdempotencyRepo{keys: make(map[string]bool)}
}

func (m *memIdempotencyRepo) Insert(ctx context.Context, tx repository.Tx, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return domain.ErrAlreadyExists
	}
	m.keys[key] = true
	return nil
}

func (m *memIdempotencyRepo) Exists(ctx context.Context, tx repository.Tx, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memIdempotencyRepo) Delete(ctx context.Context, tx repository.Tx, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// memSettingsRepo backs operator settings; tests mutate it between cycles.
type memSettingsRepo struct {
	mu     sync.RWMutex
	values map[string]string
}

func newMemSettingsRepo() *memSettingsRepo {
	return &memSettingsRepo{values: make(map[string]string)}
}

func (m *memSettingsRepo) Get(ctx context.Context, tx repository.Tx, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *memSettingsRepo) Set(ctx context.Context, tx repository.Tx, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// memEventLogRepo captures audit events for assertions.
type memEventLogRepo struct {
	mu     sync.Mutex
	events []*model.AutomationEvent
}

func newMemEventLogRepo() *memEventLogRepo { return &memEventLogRepo{} }

func (m *memEventLogRepo) Record(ctx context.Context, tx repository.Tx, event *model.AutomationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.events = append(m.events, &cp)
	return nil
}

// memRequestRepo enforces the same clamping as the real store so monotonicity
// tests exercise the contract, not the mock.
type memRequestRepo struct {
	mu    sync.RWMutex
	seq   int
	store map[string]*model.GenerationRequest
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{store: make(map[string]*model.GenerationRequest)}
}

func (m *memRequestRepo) Create(ctx context.Context, tx repository.Tx, req *model.GenerationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if req.ID == "" {
		req.ID = fmt.Sprintf("req-%d", m.seq)
	}
	cp := *req
	m.store[req.ID] = &cp
	return nil
}

func (m *memRequestRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRequestRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.RequestStatus, adminNotes *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	if adminNotes != nil {
		r.AdminNotes = adminNotes
	}
	r.UpdatedAt = time.Now()
	return nil
}

func (m *memRequestRepo) UpdateProgress(ctx context.Context, tx repository.Tx, id string, done, retries int, outputPaths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if done > r.ProgressTotal {
		done = r.ProgressTotal
	}
	r.ProgressDone = done
	if retries > r.RetryCount {
		r.RetryCount = retries
	}
	r.OutputPaths = outputPaths
	r.UpdatedAt = time.Now()
	return nil
}

func (m *memRequestRepo) ResetRetries(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.RetryCount = 0
	return nil
}

// memSubjectModelRepo tracks per-subject training state.
type memSubjectModelRepo struct {
	mu    sync.RWMutex
	store map[string]*model.SubjectModel
}

func newMemSubjectModelRepo() *memSubjectModelRepo {
	return &memSubjectModelRepo{store: make(map[string]*model.SubjectModel)}
}

func (m *memSubjectModelRepo) FindBySubject(ctx context.Context, tx repository.Tx, subjectID string) (*model.SubjectModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sm, ok := m.store[subjectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sm
	return &cp, nil
}

func (m *memSubjectModelRepo) UpsertState(ctx context.Context, tx repository.Tx, subjectID string, state model.TrainingState, loraModelRef *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sm, ok := m.store[subjectID]
	if !ok {
		sm = &model.SubjectModel{ID: "sm-" + subjectID, SubjectID: subjectID}
		m.store[subjectID] = sm
	}
	sm.TrainingState = state
	if loraModelRef != nil {
		sm.LoraModelRef = loraModelRef
	}
	sm.UpdatedAt = time.Now()
	return nil
}

// memWebhookEventRepo mimics the insert-as-claim semantics, including the
// lock-unavailable mode.
type memWebhookEventRepo struct {
	mu          sync.Mutex
	claimed     map[string]bool
	processed   map[string]bool
	unavailable bool
}

func newMemWebhookEventRepo() *memWebhookEventRepo {
	return &memWebhookEventRepo{claimed: make(map[string]bool), processed: make(map[string]bool)}
}

func (m *memWebhookEventRepo) Claim(ctx context.Context, tx repository.Tx, provider, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return domain.ErrLockUnavailable
	}
	k := provider + ":" + eventID
	if m.claimed[k] {
		return domain.ErrDuplicateEvent
	}
	m.claimed[k] = true
	return nil
}

func (m *memWebhookEventRepo) MarkProcessed(ctx context.Context, tx repository.Tx, provider, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return domain.ErrLockUnavailable
	}
	m.processed[provider+":"+eventID] = true
	return nil
}

// mockWorker records every call made on the adapter. The interface exposes no
// Cancel; the call log lets tests assert nothing beyond Submit/Health is ever
// attempted against the worker.
type mockWorker struct {
	mu        sync.Mutex
	seq       int
	submitErr error
	calls     []string
	submitted []adapter.WorkerInput
}

func newMockWorker() *mockWorker { return &mockWorker{} }

func (w *mockWorker) Submit(ctx context.Context, input adapter.WorkerInput, opts adapter.SubmitOptions) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, "Submit")
	if w.submitErr != nil {
		return "", w.submitErr
	}
	w.seq++
	w.submitted = append(w.submitted, input)
	return fmt.Sprintf("ext-%d", w.seq), nil
}

func (w *mockWorker) Health(ctx context.Context) (adapter.HealthStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, "Health")
	return adapter.HealthStatus{OK: true}, nil
}

func (w *mockWorker) submitCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.submitted)
}

// memTxManager runs the callback without a real transaction; the in-memory
// repos ignore the tx handle anyway.
type memTxManager struct{}

func (memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

var _ repository.TransactionManager = memTxManager{}
