package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_storefront/internal/service"
)

// SessionSweepWorker evicts in-memory sessions that have been idle for longer
// than the configured TTL.
type SessionSweepWorker struct {
	sessions *service.SessionService
	interval time.Duration
	idle     time.Duration
}

// NewSessionSweepWorker constructs a SessionSweepWorker.
func NewSessionSweepWorker(sessions *service.SessionService, interval, idle time.Duration) *SessionSweepWorker {
	return &SessionSweepWorker{
		sessions: sessions,
		interval: interval,
		idle:     idle,
	}
}

// Start begins the sweep loop and listens for context cancellation.
func (w *SessionSweepWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Dur("idle_ttl", w.idle).Msg("Starting session sweep worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run()
		case <-ctx.Done():
			log.Info().Msg("Session sweep worker stopped")
			return
		}
	}
}

func (w *SessionSweepWorker) run() {
	if evicted := w.sessions.EvictIdle(w.idle); evicted > 0 {
		log.Debug().Int("evicted", evicted).Int("remaining", w.sessions.Len()).Msg("Evicted idle sessions")
	}
}
