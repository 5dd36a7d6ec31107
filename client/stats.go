package client

import (
	"context"

	"opsboard/domain"
)

// Aggregator derives status and priority counts for dashboard badges and
// column counters. Local counts come from the store's current collection
// and are recomputed on every call; Server counts come from the service
// and may briefly differ from the local ones while a load is in flight.
type Aggregator struct {
	store *Store
	svc   TaskService
}

// NewAggregator creates an aggregator over the given store and service.
func NewAggregator(store *Store, svc TaskService) *Aggregator {
	if store == nil {
		panic("client.NewAggregator: store is nil")
	}
	return &Aggregator{store: store, svc: svc}
}

// Local recomputes counts from the store's collection.
func (a *Aggregator) Local() domain.Stats {
	return domain.AggregateStats(a.store.Tasks())
}

// Server fetches server-computed counts for the store's active filter,
// unaffected by client-side filtering lag.
func (a *Aggregator) Server(ctx context.Context) (domain.Stats, error) {
	if a.svc == nil {
		return domain.Stats{}, serverErr(0, "no stats service configured")
	}
	return a.svc.Stats(ctx, a.store.Filter())
}
