package worker

import (
	"context"
	"fmt"
	"sync"

	"creator-ai-platform/internal/domain/ports/adapter"
)

var _ adapter.GPUWorkerAdapter = (*NoopWorkerAdapter)(nil)

// NoopWorkerAdapter is an in-memory worker for dev mode and tests. It accepts
// every submission and never calls back.
type NoopWorkerAdapter struct {
	mu        sync.Mutex
	seq       int64
	Submitted []adapter.WorkerInput
}

func NewNoopWorkerAdapter() *NoopWorkerAdapter {
	return &NoopWorkerAdapter{}
}

func (a *NoopWorkerAdapter) Submit(ctx context.Context, input adapter.WorkerInput, opts adapter.SubmitOptions) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	a.Submitted = append(a.Submitted, input)
	return fmt.Sprintf("noop-%d", a.seq), nil
}

func (a *NoopWorkerAdapter) Health(ctx context.Context) (adapter.HealthStatus, error) {
	return adapter.HealthStatus{OK: true}, nil
}
