package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_storefront/internal/cache"
	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/pkg/storefront"
)

func newTestSessions(remotes map[models.CollectionKind]*fakeRemote) *SessionService {
	return newTestSessionsWithStore(cache.NewMemoryStore(), remotes)
}

func newTestSessionsWithStore(store cache.Store, remotes map[models.CollectionKind]*fakeRemote) *SessionService {
	factory := func(kind models.CollectionKind, token string) RemoteCollection {
		if r, ok := remotes[kind]; ok {
			return r
		}
		return nil
	}
	return NewSessionService(newFakeCatalog(mug(), shoe()), NewStockResolver(), NewPriceResolver(false),
		store, nil, factory)
}

func seedCart(t *testing.T, store cache.Store, sessionID string, quantity int) {
	t.Helper()
	data, err := models.EncodeLines([]models.Line{{
		Key:       models.LineKey{ProductID: "mug"},
		Quantity:  quantity,
		UnitPrice: dec("10"),
	}})
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), models.KindCart.StorageKey(sessionID), data))
}

func TestSessionService_GetIsStablePerSessionAndKind(t *testing.T) {
	ctx := context.Background()
	s := newTestSessions(nil)

	a, err := s.Get(ctx, "s1", models.KindCart)
	require.NoError(t, err)
	b, err := s.Get(ctx, "s1", models.KindCart)
	require.NoError(t, err)
	c, err := s.Get(ctx, "s2", models.KindCart)
	require.NoError(t, err)
	w, err := s.Get(ctx, "s1", models.KindWishlist)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, models.KindWishlist, w.Kind())
}

func TestSessionService_LoginAttachesRemotes(t *testing.T) {
	ctx := context.Background()
	cart := &fakeRemote{items: []storefront.RemoteLine{{ProductID: "mug", Quantity: 2, Price: decPtr("10")}}}
	wishlist := &fakeRemote{}
	s := newTestSessions(map[models.CollectionKind]*fakeRemote{
		models.KindCart:     cart,
		models.KindWishlist: wishlist,
	})

	account := &models.Account{ID: "a1", Status: models.AccountActive}
	require.NoError(t, s.Login(ctx, "s1", account, "tok"))

	assert.Equal(t, []string{"fetch"}, cart.Calls())
	assert.Equal(t, []string{"fetch"}, wishlist.Calls())
	assert.Equal(t, []string{"s1"}, s.AuthenticatedSessions())
	assert.Equal(t, account, s.Account("s1"))

	svc, err := s.Get(ctx, "s1", models.KindCart)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.Snapshot().TotalItems)
	assert.True(t, svc.Synchronized())

	rfq, err := s.Get(ctx, "s1", models.KindRFQ)
	require.NoError(t, err)
	assert.False(t, rfq.Synchronized())
	assert.True(t, rfq.Snapshot().Authenticated)
}

func TestSessionService_LoginReportsFetchFailure(t *testing.T) {
	ctx := context.Background()
	cart := &fakeRemote{fetchErr: storefront.ErrUnavailable}
	s := newTestSessions(map[models.CollectionKind]*fakeRemote{models.KindCart: cart})

	err := s.Login(ctx, "s1", &models.Account{ID: "a1", Status: models.AccountActive}, "tok")
	assert.Error(t, err)
	assert.Equal(t, []string{"s1"}, s.AuthenticatedSessions(), "account stays attached")
}

func TestSessionService_LogoutClearsEveryKind(t *testing.T) {
	ctx := context.Background()
	s := newTestSessions(map[models.CollectionKind]*fakeRemote{models.KindCart: {}})

	cart, err := s.Get(ctx, "s1", models.KindCart)
	require.NoError(t, err)
	_, err = cart.Add(ctx, "mug", "", 1)
	require.NoError(t, err)
	rfq, err := s.Get(ctx, "s1", models.KindRFQ)
	require.NoError(t, err)
	_, err = rfq.Add(ctx, "shoe", "7", 1)
	require.NoError(t, err)

	require.NoError(t, s.Login(ctx, "s1", &models.Account{ID: "a1", Status: models.AccountActive}, "tok"))
	require.NoError(t, s.Logout(ctx, "s1"))

	for _, kind := range models.Kinds {
		svc, err := s.Get(ctx, "s1", kind)
		require.NoError(t, err)
		assert.Empty(t, svc.Snapshot().Lines, kind)
	}
	assert.Empty(t, s.AuthenticatedSessions())
	assert.Nil(t, s.Account("s1"))
}

func TestSessionService_ConcurrentGetWaitsForLoad(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	seedCart(t, store, "s1", 2)
	release := store.holdNextGet()
	s := newTestSessionsWithStore(store, nil)

	first := make(chan *CollectionService, 1)
	go func() {
		svc, err := s.Get(ctx, "s1", models.KindCart)
		assert.NoError(t, err)
		first <- svc
	}()
	<-store.entered

	second := make(chan error, 1)
	go func() {
		svc, err := s.Get(ctx, "s1", models.KindCart)
		if err == nil {
			_, err = svc.Add(ctx, "shoe", "7", 1)
		}
		second <- err
	}()

	select {
	case err := <-second:
		t.Fatalf("second caller finished before the stored cart loaded: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-second)
	svc := <-first
	require.NotNil(t, svc)

	st := svc.Snapshot()
	assert.Equal(t, 3, st.TotalItems, "stored mug line survives the concurrent add")
	assert.Len(t, st.Lines, 2)
}

func TestSessionService_FailedLoadIsRetried(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	seedCart(t, store, "s1", 2)
	store.failGets = 1
	s := newTestSessionsWithStore(store, nil)

	_, err := s.Get(ctx, "s1", models.KindCart)
	require.Error(t, err)

	svc, err := s.Get(ctx, "s1", models.KindCart)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.Snapshot().TotalItems)

	_, err = svc.Add(ctx, "mug", "", 1)
	require.NoError(t, err)

	data, err := store.Get(ctx, models.KindCart.StorageKey("s1"))
	require.NoError(t, err)
	lines, err := models.DecodeLines(data)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestSessionService_EvictIdle(t *testing.T) {
	ctx := context.Background()
	s := newTestSessions(nil)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.Get(ctx, "old", models.KindCart)
	require.NoError(t, err)
	now = now.Add(40 * time.Minute)
	_, err = s.Get(ctx, "fresh", models.KindCart)
	require.NoError(t, err)

	assert.Equal(t, 1, s.EvictIdle(30*time.Minute))
	assert.Equal(t, 1, s.Len())

	now = now.Add(40 * time.Minute)
	assert.Equal(t, 1, s.EvictIdle(30*time.Minute))
	assert.Equal(t, 0, s.Len())
}
