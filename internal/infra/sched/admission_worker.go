package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"creator-ai-platform/internal/usecase"
)

// AdmissionWorker periodically runs a lead-sample admission cycle via the use
// case, mirroring what the cron endpoint does on demand.
type AdmissionWorker struct {
	interval time.Duration
	admUC    usecase.AdmissionUseCase
	log      *zerolog.Logger
}

func NewAdmissionWorker(interval time.Duration, admUC usecase.AdmissionUseCase, logger *zerolog.Logger) *AdmissionWorker {
	admLog := logger.With().Str("component", "AdmissionWorker").Logger()
	return &AdmissionWorker{
		interval: interval,
		admUC:    admUC,
		log:      &admLog,
	}
}

func (w *AdmissionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting admission worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping admission worker")
			return ctx.Err()
		case <-ticker.C:
			// A cycle must not outlive the interval that scheduled it.
			cycleCtx, cancel := context.WithTimeout(ctx, w.interval)
			res, err := w.admUC.AdmitBatch(cycleCtx)
			cancel()
			if err != nil {
				w.log.Error().Err(err).Msg("admission cycle error")
				continue
			}
			if res.Admitted > 0 || res.Skipped > 0 {
				w.log.Info().Int("admitted", res.Admitted).Int("skipped", res.Skipped).
					Str("reason", res.Reason).Msg("admission cycle finished")
			}
		}
	}
}
