package sse

import (
	"time"

	"github.com/GTDGit/gtd_storefront/internal/models"
)

// CollectionNotifier is the interface the sync controller uses to emit change signals.
type CollectionNotifier interface {
	NotifyCollectionChanged(sessionID string, kind models.CollectionKind, line *models.Line, removed bool, totals models.Totals)
}

// HubNotifier implements CollectionNotifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyCollectionChanged(sessionID string, kind models.CollectionKind, line *models.Line, removed bool, totals models.Totals) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&CollectionEvent{
		Event:      kind.EventName(),
		SessionID:  sessionID,
		Kind:       kind,
		Line:       line,
		Removed:    removed,
		TotalItems: totals.TotalItems,
		Timestamp:  time.Now(),
	})
}

// NopNotifier is a no-op implementation for when SSE is not needed.
type NopNotifier struct{}

func (n *NopNotifier) NotifyCollectionChanged(string, models.CollectionKind, *models.Line, bool, models.Totals) {
}
