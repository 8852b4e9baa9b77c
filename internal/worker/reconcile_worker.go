package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/service"
)

// ReconcileWorker periodically refetches the authoritative collections of
// authenticated sessions so that optimistic quantities the server corrected
// converge locally.
type ReconcileWorker struct {
	sessions *service.SessionService
	interval time.Duration
}

// NewReconcileWorker constructs a ReconcileWorker.
func NewReconcileWorker(sessions *service.SessionService, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{
		sessions: sessions,
		interval: interval,
	}
}

// Start begins the reconcile loop and listens for context cancellation.
func (w *ReconcileWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting reconcile worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Reconcile worker stopped")
			return
		}
	}
}

func (w *ReconcileWorker) run(ctx context.Context) {
	sessionIDs := w.sessions.AuthenticatedSessions()
	if len(sessionIDs) == 0 {
		return
	}
	log.Debug().Int("count", len(sessionIDs)).Msg("Reconciling authenticated sessions")

	for _, id := range sessionIDs {
		select {
		case <-ctx.Done():
			return
		default:
			w.reconcileSession(ctx, id)
		}
	}
}

func (w *ReconcileWorker) reconcileSession(ctx context.Context, sessionID string) {
	for _, kind := range models.Kinds {
		svc, err := w.sessions.Get(ctx, sessionID, kind)
		if err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Str("kind", string(kind)).Msg("Failed to load collection")
			continue
		}
		if !svc.Synchronized() {
			continue
		}

		corrections, err := svc.Fetch(ctx)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Str("kind", string(kind)).Msg("Reconcile fetch failed")
			continue
		}
		for _, c := range corrections {
			log.Info().
				Str("session_id", sessionID).
				Str("kind", string(kind)).
				Str("key", c.Key.String()).
				Int("local", c.Local).
				Int("authoritative", c.Authoritative).
				Msg("[RECONCILE] Quantity corrected")
		}
	}
}
