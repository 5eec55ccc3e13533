//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"creator-ai-platform/internal/domain"
)

func TestWebhookEventRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewWebhookEventRepo(testPool)

	t.Run("should detect a duplicate delivery", func(t *testing.T) {
		cleanup(t)

		if err := repo.Claim(ctx, nil, "billing", "evt-1", "payment.succeeded"); err != nil {
			t.Fatalf("first claim failed: %v", err)
		}
		err := repo.Claim(ctx, nil, "billing", "evt-1", "payment.succeeded")
		if !errors.Is(err, domain.ErrDuplicateEvent) {
			t.Errorf("expected ErrDuplicateEvent, got %v", err)
		}
	})

	t.Run("should scope event ids per provider", func(t *testing.T) {
		cleanup(t)

		if err := repo.Claim(ctx, nil, "billing", "evt-1", "payment.succeeded"); err != nil {
			t.Fatalf("billing claim failed: %v", err)
		}
		// Same id from a different provider is a different event.
		if err := repo.Claim(ctx, nil, "worker", "evt-1", "job.completed"); err != nil {
			t.Errorf("expected worker claim to succeed, got %v", err)
		}
	})

	t.Run("should report lock unavailable when the table is missing", func(t *testing.T) {
		cleanup(t)

		if _, err := testPool.Exec(ctx, "ALTER TABLE webhook_events RENAME TO webhook_events_gone"); err != nil {
			t.Fatalf("failed to hide table: %v", err)
		}
		defer func() {
			if _, err := testPool.Exec(ctx, "ALTER TABLE webhook_events_gone RENAME TO webhook_events"); err != nil {
				t.Fatalf("failed to restore table: %v", err)
			}
		}()

		err := repo.Claim(ctx, nil, "billing", "evt-2", "payment.succeeded")
		if !errors.Is(err, domain.ErrLockUnavailable) {
			t.Errorf("expected ErrLockUnavailable, got %v", err)
		}
	})

	t.Run("should mark an event processed", func(t *testing.T) {
		cleanup(t)

		if err := repo.Claim(ctx, nil, "worker", "evt-3", "job.completed"); err != nil {
			t.Fatalf("claim failed: %v", err)
		}
		if err := repo.MarkProcessed(ctx, nil, "worker", "evt-3"); err != nil {
			t.Fatalf("mark processed failed: %v", err)
		}

		var processed bool
		err := testPool.QueryRow(ctx,
			"SELECT processed_at IS NOT NULL FROM webhook_events WHERE provider = 'worker' AND event_id = 'evt-3'").Scan(&processed)
		if err != nil {
			t.Fatalf("failed to query event: %v", err)
		}
		if !processed {
			t.Error("expected processed_at to be set")
		}
	})
}
