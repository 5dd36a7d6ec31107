package storage

import (
	"context"
	"sync"

	"opsboard/domain"
)

// Memory is an in-process Backend used for demo mode and tests. Each
// instance owns its own collection; nothing is shared between instances.
type Memory struct {
	mu    sync.RWMutex
	tasks map[int64]TaskRecord
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{tasks: make(map[int64]TaskRecord)}
}

func (m *Memory) ListTasks(_ context.Context, f domain.Filter) ([]TaskRecord, error) {
	m.mu.RLock()
	recs := make([]TaskRecord, 0, len(m.tasks))
	for _, rec := range m.tasks {
		if f.Matches(rec.Task()) {
			recs = append(recs, rec)
		}
	}
	m.mu.RUnlock()
	sortNewestFirst(recs)
	return page(recs, f.Limit, f.Offset), nil
}

func (m *Memory) GetTask(_ context.Context, id int64) (TaskRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.tasks[id]
	if !ok {
		return TaskRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) InsertTask(_ context.Context, rec TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[rec.ID] = rec
	return nil
}

func (m *Memory) UpdateTask(_ context.Context, rec TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[rec.ID]; !ok {
		return ErrNotFound
	}
	m.tasks[rec.ID] = rec
	return nil
}

func (m *Memory) DeleteTask(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *Memory) ReorderTasks(_ context.Context, statusLabel string, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if _, ok := m.tasks[id]; !ok {
			return ErrNotFound
		}
	}
	now := nowUTC()
	for i, id := range ids {
		rec := m.tasks[id]
		pos := i
		rec.Status = statusLabel
		rec.OrderPosition = &pos
		rec.UpdatedAt = now
		m.tasks[id] = rec
	}
	return nil
}
