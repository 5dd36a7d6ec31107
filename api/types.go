package api

import (
	"context"

	"opsboard/storage"
)

// Deduper prevents reprocessing of duplicate mutation requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, key string) (bool, error)
	// Remove deletes a previously added key, used when the mutation fails
	// so the caller may retry with the same key.
	Remove(ctx context.Context, key string) error
}

// Publisher receives change events for committed mutations.
type Publisher interface {
	Publish(ev storage.TaskChange)
}

// NopPublisher discards change events; used when no queue is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(storage.TaskChange) {}
