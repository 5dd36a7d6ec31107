package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"opsboard/domain"
)

func seedRecord(id int64, title, status string, createdAt time.Time) TaskRecord {
	return TaskRecord{
		ID:        id,
		Title:     title,
		Status:    status,
		Priority:  "Medium",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemoryListNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		rec := seedRecord(i, "task", "To Do", base.Add(time.Duration(i)*time.Minute))
		if err := m.InsertTask(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	recs, err := m.ListTasks(ctx, domain.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, want := range []int64{3, 2, 1} {
		if recs[i].ID != want {
			t.Fatalf("position %d: got id %d, want %d", i, recs[i].ID, want)
		}
	}
}

func TestMemoryListFilterAndPagination(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	proj := int64(7)
	for i := int64(1); i <= 5; i++ {
		rec := seedRecord(i, "task", "To Do", base.Add(time.Duration(i)*time.Minute))
		if i%2 == 1 {
			rec.ProjectID = &proj
		}
		if err := m.InsertTask(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	recs, err := m.ListTasks(ctx, domain.Filter{ProjectID: &proj})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 project records, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.ProjectID == nil || *rec.ProjectID != proj {
			t.Fatalf("record %d escaped the project filter", rec.ID)
		}
	}

	pageRecs, err := m.ListTasks(ctx, domain.Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(pageRecs) != 2 {
		t.Fatalf("expected 2 records on page, got %d", len(pageRecs))
	}
	if pageRecs[0].ID != 4 || pageRecs[1].ID != 3 {
		t.Fatalf("unexpected page: %d, %d", pageRecs[0].ID, pageRecs[1].ID)
	}
}

func TestMemoryUpdateAndDeleteMissing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.UpdateTask(ctx, seedRecord(99, "x", "To Do", time.Now())); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: got %v", err)
	}
	if err := m.DeleteTask(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing: got %v", err)
	}
}

func TestMemoryDeleteNotIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.InsertTask(ctx, seedRecord(1, "x", "To Do", time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.DeleteTask(ctx, 1); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := m.DeleteTask(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestMemoryReorderAssignsColumnAndPositions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		if err := m.InsertTask(ctx, seedRecord(i, "task", "Backlog", base)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	if err := m.ReorderTasks(ctx, "In Progress", []int64{3, 1, 2}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	for i, id := range []int64{3, 1, 2} {
		rec, err := m.GetTask(ctx, id)
		if err != nil {
			t.Fatalf("get %d: %v", id, err)
		}
		if rec.Status != "In Progress" {
			t.Fatalf("task %d status = %q", id, rec.Status)
		}
		if rec.OrderPosition == nil || *rec.OrderPosition != i {
			t.Fatalf("task %d position = %v, want %d", id, rec.OrderPosition, i)
		}
	}
}

func TestMemoryReorderUnknownIDFails(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.InsertTask(ctx, seedRecord(1, "x", "To Do", time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := m.ReorderTasks(ctx, "Done", []int64{1, 42})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	rec, err := m.GetTask(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != "To Do" {
		t.Fatalf("partial reorder leaked: status %q", rec.Status)
	}
}

func TestNextIDMonotonic(t *testing.T) {
	prev := NextID()
	for i := 0; i < 1000; i++ {
		id := NextID()
		if id <= prev {
			t.Fatalf("ids not increasing: %d after %d", id, prev)
		}
		prev = id
	}
}
