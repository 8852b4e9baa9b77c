package sse

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_storefront/internal/models"
)

func TestHub_BroadcastIsScopedToSession(t *testing.T) {
	hub := NewHub()
	mine := hub.Register("c1", "s1")
	other := hub.Register("c2", "s2")
	defer hub.Unregister("c1")
	defer hub.Unregister("c2")

	n := NewHubNotifier(hub)
	line := &models.Line{Key: models.LineKey{ProductID: "p1", Variant: "7"}, Quantity: 2}
	n.NotifyCollectionChanged("s1", models.KindCart, line, false, models.Totals{TotalItems: 2, TotalAmount: decimal.Zero})

	require.Len(t, mine.Events, 1)
	assert.Len(t, other.Events, 0)

	msg := <-mine.Events
	assert.Equal(t, "cartUpdated", msg.Event)

	var ev CollectionEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "s1", ev.SessionID)
	assert.Equal(t, models.KindCart, ev.Kind)
	assert.Equal(t, 2, ev.TotalItems)
	require.NotNil(t, ev.Line)
	assert.Equal(t, "7", ev.Line.Key.Variant)
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	c := hub.Register("c1", "s1")
	defer hub.Unregister("c1")

	for i := 0; i < cap(c.Events)+10; i++ {
		hub.Broadcast(&CollectionEvent{Event: "wishlistUpdated", SessionID: "s1"})
	}
	assert.Equal(t, cap(c.Events), len(c.Events))
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub()
	c := hub.Register("c1", "s1")
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister("c1")
	hub.Unregister("c1")
	assert.Equal(t, 0, hub.ClientCount())

	_, ok := <-c.Events
	assert.False(t, ok)
}

func TestNopNotifier(t *testing.T) {
	var n CollectionNotifier = &NopNotifier{}
	n.NotifyCollectionChanged("s1", models.KindRFQ, nil, true, models.Totals{})
}
