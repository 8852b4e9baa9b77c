package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_storefront/internal/cache"
	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/sse"
	"github.com/GTDGit/gtd_storefront/pkg/storefront"
)

// RemoteFactory returns the remote collection of kind for the bearer of
// token, or nil when the kind has no remote counterpart.
type RemoteFactory func(kind models.CollectionKind, token string) RemoteCollection

// StorefrontRemotes builds a RemoteFactory on top of the storefront client.
// Cart and wishlist are synchronized; every other kind stays local.
func StorefrontRemotes(client *storefront.Client) RemoteFactory {
	return func(kind models.CollectionKind, token string) RemoteCollection {
		if client == nil {
			return nil
		}
		authed := client.WithToken(token)
		switch kind {
		case models.KindCart:
			return authed.Cart()
		case models.KindWishlist:
			return authed.Wishlist()
		}
		return nil
	}
}

type sessionEntry struct {
	collections map[models.CollectionKind]*collectionSlot
	account     *models.Account
	token       string
	lastSeen    time.Time
}

// collectionSlot is published before its collection finishes loading. ready
// is closed once Load returns; callers must not use svc before that.
type collectionSlot struct {
	svc   *CollectionService
	ready chan struct{}
	err   error
}

// SessionService owns one CollectionService per session and kind.
type SessionService struct {
	catalog  ProductCatalog
	stock    *StockResolver
	prices   *PriceResolver
	store    cache.Store
	notifier sse.CollectionNotifier
	remotes  RemoteFactory

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

// NewSessionService constructs a SessionService. remotes may be nil, in which
// case every collection is local-only even for authenticated sessions.
func NewSessionService(
	catalog ProductCatalog,
	stock *StockResolver,
	prices *PriceResolver,
	store cache.Store,
	notifier sse.CollectionNotifier,
	remotes RemoteFactory,
) *SessionService {
	return &SessionService{
		catalog:  catalog,
		stock:    stock,
		prices:   prices,
		store:    store,
		notifier: notifier,
		remotes:  remotes,
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// Prices exposes the price resolver used by every collection.
func (s *SessionService) Prices() *PriceResolver { return s.prices }

// Catalog exposes the product catalog collections validate against.
func (s *SessionService) Catalog() ProductCatalog { return s.catalog }

// Stock exposes the stock resolver used by every collection.
func (s *SessionService) Stock() *StockResolver { return s.stock }

// Get returns the collection of kind for the session, loading it from the
// store on first access. Concurrent callers wait for the load; a failed load
// is not cached, so the next call retries it.
func (s *SessionService) Get(ctx context.Context, sessionID string, kind models.CollectionKind) (*CollectionService, error) {
	s.mu.Lock()
	entry := s.entryLocked(sessionID)
	slot, ok := entry.collections[kind]
	if ok {
		s.mu.Unlock()
		select {
		case <-slot.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if slot.err != nil {
			return nil, slot.err
		}
		return slot.svc, nil
	}

	slot = &collectionSlot{
		svc:   NewCollectionService(kind, sessionID, s.catalog, s.stock, s.prices, s.store, s.notifier),
		ready: make(chan struct{}),
	}
	entry.collections[kind] = slot
	s.mu.Unlock()

	slot.err = slot.svc.Load(ctx)
	if slot.err != nil {
		s.mu.Lock()
		if entry.collections[kind] == slot {
			delete(entry.collections, kind)
		}
		s.mu.Unlock()
	}
	close(slot.ready)

	if slot.err != nil {
		return nil, slot.err
	}
	return slot.svc, nil
}

// Account returns the account attached to the session, or nil for guests.
func (s *SessionService) Account(sessionID string) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok {
		return e.account
	}
	return nil
}

// Login attaches account to every collection of the session. Synchronized
// kinds are replaced with the authoritative remote state; the first fetch
// failure is returned after every kind has been attempted.
func (s *SessionService) Login(ctx context.Context, sessionID string, account *models.Account, token string) error {
	s.mu.Lock()
	entry := s.entryLocked(sessionID)
	entry.account = account
	entry.token = token
	s.mu.Unlock()

	var firstErr error
	for _, kind := range models.Kinds {
		svc, err := s.Get(ctx, sessionID, kind)
		if err != nil {
			return err
		}
		var remote RemoteCollection
		if s.remotes != nil {
			remote = s.remotes(kind, token)
		}
		if err := svc.Login(ctx, account, remote); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Str("kind", string(kind)).Msg("Login fetch failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to fetch %s: %w", kind, err)
			}
		}
	}

	log.Info().Str("session_id", sessionID).Str("account_id", account.ID).Msg("Session authenticated")
	return firstErr
}

// Logout detaches the account and clears every collection of the session.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	for _, kind := range models.Kinds {
		svc, err := s.Get(ctx, sessionID, kind)
		if err != nil {
			return err
		}
		svc.Logout(ctx)
	}

	s.mu.Lock()
	if e, ok := s.sessions[sessionID]; ok {
		e.account = nil
		e.token = ""
	}
	s.mu.Unlock()

	log.Info().Str("session_id", sessionID).Msg("Session logged out")
	return nil
}

// AuthenticatedSessions lists the sessions that currently hold an account.
func (s *SessionService) AuthenticatedSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for id, e := range s.sessions {
		if e.account != nil {
			out = append(out, id)
		}
	}
	return out
}

// EvictIdle drops sessions not seen for longer than idle and returns how many
// were removed. Their collections stay in the store and are reloaded on the
// next request of the session.
func (s *SessionService) EvictIdle(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	evicted := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of sessions held in memory.
func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionService) entryLocked(sessionID string) *sessionEntry {
	e, ok := s.sessions[sessionID]
	if !ok {
		e = &sessionEntry{collections: make(map[models.CollectionKind]*collectionSlot)}
		s.sessions[sessionID] = e
	}
	e.lastSeen = s.now()
	return e
}
