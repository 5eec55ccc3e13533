package web

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/infra/logging"
	"creator-ai-platform/internal/infra/redis"
	"creator-ai-platform/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// workerCallback is the payload the GPU worker posts back after a run.
type workerCallback struct {
	ID         string `json:"id"`
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
	Output     struct {
		OutputPath string `json:"output_path"`
	} `json:"output"`
	Error string `json:"error"`
}

func (s *Server) workerWebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if s.workerSecret != "" && r.Header.Get("X-Worker-Secret") != s.workerSecret {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		var cb workerCallback
		if err := json.NewDecoder(r.Body).Decode(&cb); err != nil || cb.ID == "" {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		// The delivery id dedups retried webhook posts; without one, a given
		// (job, status) pair is still delivered at most once.
		eventID := cb.DeliveryID
		if eventID == "" {
			eventID = cb.ID + ":" + cb.Status
		}
		claim, err := s.webhookUC.ClaimEvent(ctx, "worker", eventID, cb.Status)
		if err != nil {
			http.Error(w, "Failed to process event", http.StatusInternalServerError)
			return
		}
		if claim.Duplicate {
			writeJSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
			return
		}

		_, err = s.webhookUC.ResolveWorkerEvent(ctx, usecase.WorkerEvent{
			ExternalID: cb.ID,
			Status:     cb.Status,
			OutputPath: cb.Output.OutputPath,
			Error:      cb.Error,
		})
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Respond 200 so the worker stops retrying a job we will
				// never recognize.
				logging.With(ctx, &s.log).Warn().Str("external_id", cb.ID).Msg("callback for unknown job")
				writeJSON(w, http.StatusOK, map[string]any{"received": true, "ignored": true})
				return
			}
			http.Error(w, "Failed to process event", http.StatusInternalServerError)
			return
		}

		if !claim.LockUnavailable {
			s.webhookUC.MarkProcessed(ctx, "worker", eventID)
		}
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
	}
}

// billingEvent is the minimal shape shared by billing-provider webhooks.
type billingEvent struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	LeadID string `json:"lead_id"`
}

func (s *Server) billingWebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if s.limiter != nil {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			allowed, err := s.limiter.Allow(ctx, redis.WebhookKey("billing", host), webhookRateLimit, webhookRateWindow)
			if err != nil {
				s.log.Warn().Err(err).Msg("rate limiter unavailable, letting request through")
			} else if !allowed {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
		}

		if r.Header.Get("X-Signature") == "" {
			http.Error(w, "Missing signature", http.StatusBadRequest)
			return
		}

		var ev billingEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.ID == "" {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		claim, err := s.webhookUC.ClaimEvent(ctx, "billing", ev.ID, ev.Type)
		if err != nil {
			http.Error(w, "Failed to process event", http.StatusInternalServerError)
			return
		}
		if claim.Duplicate {
			writeJSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
			return
		}

		if err := s.webhookUC.RecordBillingEvent(ctx, ev.Type, ev.LeadID); err != nil {
			s.log.Warn().Err(err).Str("event_id", ev.ID).Msg("failed to record billing event")
		}
		if !claim.LockUnavailable {
			s.webhookUC.MarkProcessed(ctx, "billing", ev.ID)
		}
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
	}
}

func (s *Server) enqueueSamplesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.admissionUC.AdmitBatch(r.Context())
		if err != nil {
			http.Error(w, "Admission cycle failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"admitted": res.Admitted,
			"skipped":  res.Skipped,
			"reason":   res.Reason,
		})
	}
}

type submitRequestBody struct {
	UserID      string   `json:"user_id"`
	SubjectID   *string  `json:"subject_id"`
	SamplePaths []string `json:"sample_paths"`
	ScenePreset string   `json:"scene_preset"`
	ImageCount  int      `json:"image_count"`
	VideoCount  int      `json:"video_count"`
}

func submitRequestHandler(uc usecase.RequestUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body submitRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		req, err := uc.Submit(r.Context(), usecase.SubmitRequest{
			UserID:      body.UserID,
			SubjectID:   body.SubjectID,
			SamplePaths: body.SamplePaths,
			ScenePreset: body.ScenePreset,
			ImageCount:  body.ImageCount,
			VideoCount:  body.VideoCount,
		})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrNotEnoughSamples) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to create request", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, req)
	}
}

type reviewBody struct {
	Notes *string `json:"notes"`
}

func reviewRequestHandler(uc usecase.RequestUseCase, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var body reviewBody
		// Body is optional for approvals.
		_ = json.NewDecoder(r.Body).Decode(&body)

		var err error
		if approve {
			err = uc.Approve(r.Context(), id, body.Notes)
		} else {
			err = uc.Reject(r.Context(), id, body.Notes)
		}
		if err != nil {
			writeRequestError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func generateHandler(uc usecase.RequestUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := uc.RunApproved(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeRequestError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

func resetRetriesHandler(uc usecase.RequestUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := uc.ResetRetries(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeRequestError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

type trainBody struct {
	SamplePaths []string `json:"sample_paths"`
}

func trainHandler(uc usecase.JobUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body trainBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		job, err := uc.CreateTraining(r.Context(), chi.URLParam(r, "subjectID"), body.SamplePaths)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotEnoughSamples), errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrTrainingInFlight):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "Failed to start training", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusCreated, job)
	}
}

func jobStatusHandler(uc usecase.JobUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := uc.Status(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to load job", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func writeRequestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrRequestNotRunnable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
