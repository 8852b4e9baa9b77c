package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_storefront/internal/cache"
	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/sse"
	"github.com/GTDGit/gtd_storefront/internal/utils"
	"github.com/GTDGit/gtd_storefront/pkg/storefront"
)

// ProductCatalog looks up the product records lines are validated against.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// ProductBatchCatalog is implemented by catalogs that load many products in
// one round trip. Missing or inactive ids are absent from the result.
type ProductBatchCatalog interface {
	GetProducts(ctx context.Context, ids []string) (map[string]*models.Product, error)
}

// RemoteCollection is the authoritative server-side copy of a collection.
// *storefront.Resource implements it.
type RemoteCollection interface {
	Fetch(ctx context.Context) (*storefront.CollectionResponse, error)
	Add(ctx context.Context, productID, size string, quantity int) (*storefront.AddResponse, error)
	Update(ctx context.Context, productID, size string, quantity int) error
	Remove(ctx context.Context, productID, size string) error
	Clear(ctx context.Context) error
}

// OpStatus is the state of the most recent asynchronous operation.
type OpStatus string

const (
	StatusIdle      OpStatus = "idle"
	StatusPending   OpStatus = "pending"
	StatusFulfilled OpStatus = "fulfilled"
	StatusRejected  OpStatus = "rejected"
)

// CollectionState is a snapshot read of a collection. UI reads never touch storage.
type CollectionState struct {
	Kind          models.CollectionKind `json:"kind"`
	Lines         []models.Line         `json:"items"`
	TotalItems    int                   `json:"totalItems"`
	TotalAmount   decimal.Decimal       `json:"totalAmount"`
	Authenticated bool                  `json:"authenticated"`
	Status        OpStatus              `json:"status"`
	Error         string                `json:"error,omitempty"`
	Pending       []models.LineKey      `json:"pending,omitempty"`
}

// Correction records a line whose authoritative quantity differs from the
// optimistic local one.
type Correction struct {
	Key           models.LineKey `json:"key"`
	Local         int            `json:"local"`
	Authoritative int            `json:"authoritative"`
}

// CollectionService is the synchronization controller of one collection of
// one session. It owns the line state, is the only writer of its storage key,
// and runs every operation as an optimistic local mutation followed by the
// authoritative remote call when the session is authenticated.
type CollectionService struct {
	kind      models.CollectionKind
	sessionID string
	catalog   ProductCatalog
	stock     *StockResolver
	prices    *PriceResolver
	store     cache.Store
	notifier  sse.CollectionNotifier
	keys      *keyLocks

	mu      sync.Mutex
	lines   []models.Line
	totals  models.Totals
	account *models.Account
	remote  RemoteCollection

	seq     uint64
	lineSeq map[models.LineKey]uint64
	epoch   uint64

	pending map[models.LineKey]int
	status  OpStatus
	lastErr string
}

// NewCollectionService constructs an empty controller. Call Load to
// initialize it from storage.
func NewCollectionService(
	kind models.CollectionKind,
	sessionID string,
	catalog ProductCatalog,
	stock *StockResolver,
	prices *PriceResolver,
	store cache.Store,
	notifier sse.CollectionNotifier,
) *CollectionService {
	if notifier == nil {
		notifier = &sse.NopNotifier{}
	}
	return &CollectionService{
		kind:      kind,
		sessionID: sessionID,
		catalog:   catalog,
		stock:     stock,
		prices:    prices,
		store:     store,
		notifier:  notifier,
		keys:      newKeyLocks(),
		totals:    Aggregate(nil),
		lineSeq:   make(map[models.LineKey]uint64),
		pending:   make(map[models.LineKey]int),
		status:    StatusIdle,
	}
}

// Kind returns the collection kind.
func (s *CollectionService) Kind() models.CollectionKind { return s.kind }

func (s *CollectionService) storageKey() string {
	return s.kind.StorageKey(s.sessionID)
}

// Load initializes the collection from the persistent store. A missing or
// unreadable entry starts the collection empty.
func (s *CollectionService) Load(ctx context.Context) error {
	data, err := s.store.Get(ctx, s.storageKey())
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", s.kind, err)
	}

	lines, err := models.DecodeLines(data)
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.sessionID).Str("kind", string(s.kind)).
			Msg("Discarding unreadable persisted collection")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = lines
	s.totals = Aggregate(s.lines)
	return nil
}

// Snapshot returns a copy of the current state.
func (s *CollectionService) Snapshot() CollectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *CollectionService) snapshotLocked() CollectionState {
	lines := make([]models.Line, len(s.lines))
	copy(lines, s.lines)
	st := CollectionState{
		Kind:          s.kind,
		Lines:         lines,
		TotalItems:    s.totals.TotalItems,
		TotalAmount:   s.totals.TotalAmount,
		Authenticated: s.remote != nil || s.account != nil,
		Status:        s.status,
		Error:         s.lastErr,
	}
	for k := range s.pending {
		st.Pending = append(st.Pending, k)
	}
	return st
}

// Synchronized reports whether a remote collection is attached.
func (s *CollectionService) Synchronized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote != nil
}

// Account returns the account the collection is priced for, if any.
func (s *CollectionService) Account() *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Add inserts or increments the line for (productID, variant). The cumulative
// quantity is checked against available stock before anything changes. When
// authenticated, the remote add follows; a corrected quantity in its response
// overwrites the optimistic one, and a failure leaves the local line in place.
func (s *CollectionService) Add(ctx context.Context, productID, variant string, quantity int) (*models.Line, error) {
	if productID == "" {
		return nil, s.reject(utils.ErrProductIDRequired)
	}
	if quantity <= 0 {
		return nil, s.reject(utils.ErrQuantityNotPositive)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, s.reject(fmt.Errorf("failed to load product %s: %w", productID, err))
	}
	key := s.stock.NormalizeKey(product, models.LineKey{ProductID: productID, Variant: variant})
	available, err := s.stock.Resolve(product, key.Variant)
	if err != nil {
		return nil, s.reject(err)
	}

	unlock := s.keys.Lock(key)
	defer unlock()

	s.mu.Lock()
	existing := 0
	if i := s.indexLocked(key); i >= 0 {
		existing = s.lines[i].Quantity
	}
	candidate := existing + quantity
	if candidate > available {
		s.mu.Unlock()
		return nil, s.reject(&utils.StockExceededError{
			ProductID: key.ProductID,
			Variant:   key.Variant,
			Limit:     available,
			Requested: candidate,
		})
	}

	line := s.setLineLocked(key, candidate, product)
	token := s.touchLocked(key)
	epoch := s.epoch
	remote := s.remote
	s.beginLocked(key)
	s.commitLocked(ctx, &line, false)
	s.mu.Unlock()

	if remote == nil {
		s.finish(key, nil)
		return &line, nil
	}

	resp, err := remote.Add(ctx, key.ProductID, key.Variant, quantity)
	if err != nil {
		err = remoteError(err)
		s.logRemoteFailure(err, "add", key)
		s.finish(key, err)
		return &line, err
	}

	if q, ok := resp.QuantityFor(key.ProductID, key.Variant); ok && q != line.Quantity {
		s.mu.Lock()
		if s.currentLocked(key, token, epoch) {
			log.Info().Str("session_id", s.sessionID).Str("kind", string(s.kind)).Str("key", key.String()).
				Int("optimistic", line.Quantity).Int("authoritative", q).Msg("Applying server-corrected quantity")
			if q <= 0 {
				s.removeLocked(key)
				s.commitLocked(ctx, &line, true)
				line.Quantity = 0
			} else {
				line = s.setLineLocked(key, q, product)
				s.commitLocked(ctx, &line, false)
			}
		}
		s.mu.Unlock()
	}

	s.finish(key, nil)
	return &line, nil
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line; a quantity above available stock is rejected and
// leaves the line unchanged.
func (s *CollectionService) UpdateQuantity(ctx context.Context, key models.LineKey, quantity int) (*models.Line, error) {
	if key.ProductID == "" {
		return nil, s.reject(utils.ErrProductIDRequired)
	}
	if quantity <= 0 {
		return nil, s.Remove(ctx, key)
	}

	product, err := s.catalog.GetProduct(ctx, key.ProductID)
	if err != nil {
		return nil, s.reject(fmt.Errorf("failed to load product %s: %w", key.ProductID, err))
	}
	key = s.stock.NormalizeKey(product, key)
	available, err := s.stock.Resolve(product, key.Variant)
	if err != nil {
		return nil, s.reject(err)
	}

	unlock := s.keys.Lock(key)
	defer unlock()

	s.mu.Lock()
	if s.indexLocked(key) < 0 {
		s.mu.Unlock()
		return nil, s.reject(utils.ErrLineNotFound)
	}
	if quantity > available {
		s.mu.Unlock()
		return nil, s.reject(&utils.StockExceededError{
			ProductID: key.ProductID,
			Variant:   key.Variant,
			Limit:     available,
			Requested: quantity,
		})
	}

	line := s.setLineLocked(key, quantity, product)
	s.touchLocked(key)
	remote := s.remote
	s.beginLocked(key)
	s.commitLocked(ctx, &line, false)
	s.mu.Unlock()

	if remote == nil {
		s.finish(key, nil)
		return &line, nil
	}

	if err := remote.Update(ctx, key.ProductID, key.Variant, quantity); err != nil {
		if errors.Is(err, storefront.ErrUnsupported) {
			s.finish(key, nil)
			return &line, nil
		}
		err = remoteError(err)
		s.logRemoteFailure(err, "update", key)
		s.finish(key, err)
		return &line, err
	}
	s.finish(key, nil)
	return &line, nil
}

// Remove deletes the line unconditionally. A remote failure is reported but
// the local removal stands.
func (s *CollectionService) Remove(ctx context.Context, key models.LineKey) error {
	if key.ProductID == "" {
		return s.reject(utils.ErrProductIDRequired)
	}
	key = s.resolveKey(key)

	unlock := s.keys.Lock(key)
	defer unlock()

	s.mu.Lock()
	removed := models.Line{Key: key}
	if i := s.indexLocked(key); i >= 0 {
		removed = s.lines[i]
	}
	s.removeLocked(key)
	s.touchLocked(key)
	remote := s.remote
	s.beginLocked(key)
	s.commitLocked(ctx, &removed, true)
	s.mu.Unlock()

	if remote == nil {
		s.finish(key, nil)
		return nil
	}

	if err := remote.Remove(ctx, key.ProductID, key.Variant); err != nil {
		err = remoteError(err)
		s.logRemoteFailure(err, "remove", key)
		s.finish(key, err)
		return err
	}
	s.finish(key, nil)
	return nil
}

// Clear empties the collection and deletes it from storage. A cleared
// collection never reappears locally, even when the remote clear fails.
func (s *CollectionService) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.lines = nil
	s.epoch++
	s.lineSeq = make(map[models.LineKey]uint64)
	s.totals = Aggregate(s.lines)
	remote := s.remote
	s.status = StatusPending
	s.lastErr = ""
	if err := s.store.Delete(ctx, s.storageKey()); err != nil {
		log.Error().Err(err).Str("session_id", s.sessionID).Str("kind", string(s.kind)).Msg("Failed to delete persisted collection")
	}
	s.notifier.NotifyCollectionChanged(s.sessionID, s.kind, nil, true, s.totals)
	s.mu.Unlock()

	var err error
	if remote != nil {
		if err = remote.Clear(ctx); err != nil {
			err = remoteError(err)
			log.Warn().Err(err).Str("session_id", s.sessionID).Str("kind", string(s.kind)).
				Msg("Remote clear failed; local collection stays cleared")
		}
	}
	s.settle(err)
	return err
}

// Fetch replaces local state wholesale with the authoritative remote
// collection and persists it. It returns the lines whose quantity differed.
func (s *CollectionService) Fetch(ctx context.Context) ([]Correction, error) {
	s.mu.Lock()
	remote := s.remote
	account := s.account
	if remote == nil {
		s.mu.Unlock()
		return nil, utils.ErrAuthRequired
	}
	s.status = StatusPending
	s.mu.Unlock()

	resp, err := remote.Fetch(ctx)
	if err != nil {
		err = remoteError(err)
		log.Warn().Err(err).Str("session_id", s.sessionID).Str("kind", string(s.kind)).Msg("Remote fetch failed")
		s.settle(err)
		return nil, err
	}

	lines := s.linesFromRemote(ctx, resp.Items, account)

	s.mu.Lock()
	if s.remote != remote {
		// Logged out or re-authenticated while the fetch was in flight.
		s.mu.Unlock()
		s.settle(nil)
		return nil, nil
	}
	corrections := diffLines(s.lines, lines)
	s.lines = lines
	s.epoch++
	s.lineSeq = make(map[models.LineKey]uint64)
	s.commitLocked(ctx, nil, false)
	s.mu.Unlock()

	s.settle(nil)
	return corrections, nil
}

// Login attaches the authenticated account and, when remote is non-nil, the
// remote collection, then fetches. Guest lines are kept only until the fetch
// replaces them. Local-only collections are repriced for the account instead.
func (s *CollectionService) Login(ctx context.Context, account *models.Account, remote RemoteCollection) error {
	s.mu.Lock()
	s.account = account
	s.remote = remote
	s.mu.Unlock()

	if remote == nil {
		return s.Reprice(ctx)
	}
	_, err := s.Fetch(ctx)
	return err
}

// Logout detaches the account and remote and clears the local collection.
// The empty collection is persisted; the storage key itself is kept.
func (s *CollectionService) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.account = nil
	s.remote = nil
	s.lines = nil
	s.epoch++
	s.lineSeq = make(map[models.LineKey]uint64)
	s.status = StatusIdle
	s.lastErr = ""
	s.commitLocked(ctx, nil, true)
}

// Reprice refreshes every unit price snapshot for the current account.
// Lines whose product can no longer be loaded keep their snapshot.
func (s *CollectionService) Reprice(ctx context.Context) error {
	s.mu.Lock()
	keys := make([]models.LineKey, len(s.lines))
	for i, l := range s.lines {
		keys[i] = l.Key
	}
	s.mu.Unlock()

	products := s.products(ctx, keys)
	for _, key := range keys {
		product, ok := products[key.ProductID]
		if !ok {
			log.Warn().Str("product_id", key.ProductID).Msg("Skipping reprice of line")
			continue
		}
		unlock := s.keys.Lock(key)
		s.mu.Lock()
		if i := s.indexLocked(key); i >= 0 {
			s.setLineLocked(key, s.lines[i].Quantity, product)
		}
		s.mu.Unlock()
		unlock()
	}

	s.mu.Lock()
	s.commitLocked(ctx, nil, false)
	s.mu.Unlock()
	return nil
}

// products loads the products of keys, in one batch when the catalog
// supports it.
func (s *CollectionService) products(ctx context.Context, keys []models.LineKey) map[string]*models.Product {
	ids := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k.ProductID] {
			seen[k.ProductID] = true
			ids = append(ids, k.ProductID)
		}
	}

	if batch, ok := s.catalog.(ProductBatchCatalog); ok && len(ids) > 0 {
		products, err := batch.GetProducts(ctx, ids)
		if err == nil {
			return products
		}
		log.Warn().Err(err).Int("count", len(ids)).Msg("Batch product load failed; loading one by one")
	}

	out := make(map[string]*models.Product, len(ids))
	for _, id := range ids {
		product, err := s.catalog.GetProduct(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("product_id", id).Msg("Product lookup failed")
			continue
		}
		out[id] = product
	}
	return out
}

func (s *CollectionService) linesFromRemote(ctx context.Context, items []storefront.RemoteLine, account *models.Account) []models.Line {
	lines := make([]models.Line, 0, len(items))
	index := make(map[models.LineKey]int, len(items))

	for _, it := range items {
		if it.ProductID == "" || it.Quantity <= 0 {
			continue
		}
		key := models.LineKey{ProductID: it.ProductID, Variant: it.Size}
		if i, ok := index[key]; ok {
			lines[i].Quantity += it.Quantity
			continue
		}

		line := models.Line{Key: key, Quantity: it.Quantity}
		if it.Product != nil {
			line.Product = models.ProductSnapshot{ID: it.ProductID, Name: it.Product.Name, Image: it.Product.Image, Price: it.Product.Price}
			line.UnitPrice = it.Product.Price
			line.PriceLabel = TierLabelStandard
		}
		if it.Price != nil {
			line.UnitPrice = *it.Price
			line.PriceLabel = ""
		} else if product, err := s.catalog.GetProduct(ctx, it.ProductID); err == nil {
			quote := s.prices.Resolve(product, account, it.Quantity)
			line.UnitPrice = quote.UnitPrice
			line.PriceLabel = quote.TierLabel
			line.Product = product.Snapshot()
		} else {
			log.Warn().Err(err).Str("product_id", it.ProductID).Msg("Remote line has no price and product lookup failed")
		}

		index[key] = len(lines)
		lines = append(lines, line)
	}

	for i := range lines {
		lines[i].Product.ID = lines[i].Key.ProductID
	}
	return lines
}

// setLineLocked inserts or replaces the line for key at quantity, pricing it
// for the current account. Quantity must be positive.
func (s *CollectionService) setLineLocked(key models.LineKey, quantity int, product *models.Product) models.Line {
	quote := s.prices.Resolve(product, s.account, quantity)
	line := models.Line{
		Key:        key,
		Quantity:   quantity,
		UnitPrice:  quote.UnitPrice,
		PriceLabel: quote.TierLabel,
		Product:    product.Snapshot(),
	}
	if i := s.indexLocked(key); i >= 0 {
		s.lines[i] = line
	} else {
		s.lines = append(s.lines, line)
	}
	return line
}

// resolveKey maps a key carrying a size to the plain line of the same
// product when only the latter exists. Add stores sizes of products without
// variants under the plain key.
func (s *CollectionService) resolveKey(key models.LineKey) models.LineKey {
	if key.Variant == "" {
		return key
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(key) >= 0 {
		return key
	}
	plain := models.LineKey{ProductID: key.ProductID}
	if s.indexLocked(plain) >= 0 {
		return plain
	}
	return key
}

func (s *CollectionService) removeLocked(key models.LineKey) {
	if i := s.indexLocked(key); i >= 0 {
		s.lines = append(s.lines[:i:i], s.lines[i+1:]...)
	}
}

func (s *CollectionService) indexLocked(key models.LineKey) int {
	for i := range s.lines {
		if s.lines[i].Key == key {
			return i
		}
	}
	return -1
}

// touchLocked stamps key with a fresh sequence token.
func (s *CollectionService) touchLocked(key models.LineKey) uint64 {
	s.seq++
	s.lineSeq[key] = s.seq
	return s.seq
}

// currentLocked reports whether a response issued under token and epoch may
// still be applied to key.
func (s *CollectionService) currentLocked(key models.LineKey, token, epoch uint64) bool {
	return s.epoch == epoch && s.lineSeq[key] == token && s.indexLocked(key) >= 0
}

// commitLocked is the final local step of every mutation: recompute totals,
// persist, and signal the change.
func (s *CollectionService) commitLocked(ctx context.Context, changed *models.Line, removed bool) {
	s.totals = Aggregate(s.lines)

	data, err := models.EncodeLines(s.lines)
	if err == nil {
		err = s.store.Set(ctx, s.storageKey(), data)
	}
	if err != nil {
		log.Error().Err(err).Str("session_id", s.sessionID).Str("kind", string(s.kind)).Msg("Failed to persist collection")
	}

	s.notifier.NotifyCollectionChanged(s.sessionID, s.kind, changed, removed, s.totals)
}

func (s *CollectionService) beginLocked(key models.LineKey) {
	s.pending[key]++
	s.status = StatusPending
	s.lastErr = ""
}

// finish settles an operation that went through beginLocked.
func (s *CollectionService) finish(key models.LineKey, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[key]--; s.pending[key] <= 0 {
		delete(s.pending, key)
	}
	s.settleLocked(err)
}

func (s *CollectionService) settle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked(err)
}

func (s *CollectionService) settleLocked(err error) {
	if err != nil {
		s.status = StatusRejected
		s.lastErr = err.Error()
		return
	}
	if len(s.pending) > 0 {
		s.status = StatusPending
		return
	}
	s.status = StatusFulfilled
	s.lastErr = ""
}

// reject records a synchronous rejection without touching the lines.
func (s *CollectionService) reject(err error) error {
	s.settle(err)
	return err
}

func (s *CollectionService) logRemoteFailure(err error, op string, key models.LineKey) {
	log.Warn().Err(err).
		Str("session_id", s.sessionID).
		Str("kind", string(s.kind)).
		Str("op", op).
		Str("key", key.String()).
		Msg("Remote call failed; keeping local state")
}

// remoteError maps client errors onto the application taxonomy.
func remoteError(err error) error {
	switch {
	case errors.Is(err, storefront.ErrAuthRequired):
		return utils.ErrAuthRequired
	case errors.Is(err, storefront.ErrRejected):
		return fmt.Errorf("%w: %v", utils.ErrRemoteRejected, err)
	default:
		return fmt.Errorf("%w: %v", utils.ErrRemoteUnavailable, err)
	}
}

func diffLines(before, after []models.Line) []Correction {
	prev := make(map[models.LineKey]int, len(before))
	for _, l := range before {
		prev[l.Key] = l.Quantity
	}
	var out []Correction
	for _, l := range after {
		if q, ok := prev[l.Key]; !ok || q != l.Quantity {
			out = append(out, Correction{Key: l.Key, Local: q, Authoritative: l.Quantity})
		}
		delete(prev, l.Key)
	}
	for k, q := range prev {
		out = append(out, Correction{Key: k, Local: q, Authoritative: 0})
	}
	return out
}
