package client

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"

	"opsboard/domain"
)

func TestAggregatorLocalCountsStoreCollection(t *testing.T) {
	svc := &serviceStub{
		listFn: func(ctx context.Context, f domain.Filter) ([]domain.Task, error) {
			return []domain.Task{
				testTask(1, "a", domain.StatusTodo),
				testTask(2, "b", domain.StatusTodo),
				testTask(3, "c", domain.StatusDone),
			}, nil
		},
	}
	store := NewStore(svc, log.New())
	if err := store.Load(context.Background(), domain.Filter{}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	agg := NewAggregator(store, svc)

	stats := agg.Local()
	if stats.Total != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total)
	}
	if stats.ByStatus[domain.StatusTodo] != 2 || stats.ByStatus[domain.StatusDone] != 1 {
		t.Fatalf("unexpected status buckets: %+v", stats.ByStatus)
	}
	if stats.ByStatus[domain.StatusBacklog] != 0 {
		t.Fatalf("expected a zero backlog bucket, got %d", stats.ByStatus[domain.StatusBacklog])
	}
}

func TestAggregatorServerUsesStoreFilter(t *testing.T) {
	var gotFilter domain.Filter
	svc := &serviceStub{
		statsFn: func(ctx context.Context, f domain.Filter) (domain.Stats, error) {
			gotFilter = f
			return domain.Stats{Total: 7}, nil
		},
	}
	store := NewStore(svc, log.New())
	if err := store.Load(context.Background(), domain.Filter{Search: "campaign"}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	agg := NewAggregator(store, svc)

	stats, err := agg.Server(context.Background())
	if err != nil {
		t.Fatalf("Server stats failed: %v", err)
	}
	if stats.Total != 7 {
		t.Fatalf("expected total 7, got %d", stats.Total)
	}
	if gotFilter.Search != "campaign" {
		t.Fatalf("expected the store's active filter, got %+v", gotFilter)
	}
}
