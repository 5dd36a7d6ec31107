package storage

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"opsboard/domain"
)

// ErrNotFound indicates the referenced task id does not exist.
var ErrNotFound = errors.New("task not found")

// TaskRecord is the persisted shape of a task. Status and Priority hold the
// storage vocabulary labels, not the UI enum values; translation happens on
// the client side of the wire.
type TaskRecord struct {
	ID             int64                  `json:"id"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description,omitempty"`
	Status         string                 `json:"status"`
	Priority       string                 `json:"priority"`
	ProjectID      *int64                 `json:"projectId,omitempty"`
	AssignedTo     *int64                 `json:"assignedTo,omitempty"`
	DueDate        *time.Time             `json:"dueDate,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
	EstimatedHours *float64               `json:"estimatedHours,omitempty"`
	ActualHours    *float64               `json:"actualHours,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	OrderPosition  *int                   `json:"orderPosition,omitempty"`
	Subtasks       sonic.NoCopyRawMessage `json:"subtasks,omitempty"`
}

// Task converts the record to the UI-facing model via the vocabulary mapper.
func (r TaskRecord) Task() domain.Task {
	return domain.Task{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Status:         domain.StatusFromStorage(r.Status),
		Priority:       domain.PriorityFromStorage(r.Priority),
		ProjectID:      r.ProjectID,
		AssignedTo:     r.AssignedTo,
		DueDate:        r.DueDate,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		EstimatedHours: r.EstimatedHours,
		ActualHours:    r.ActualHours,
		Tags:           r.Tags,
		OrderPosition:  r.OrderPosition,
		Subtasks:       r.Subtasks,
	}
}

// Backend abstracts the persistence mechanism behind the task service.
type Backend interface {
	// ListTasks returns records matching f, newest-created first, with
	// f.Limit and f.Offset applied after ordering.
	ListTasks(ctx context.Context, f domain.Filter) ([]TaskRecord, error)
	// GetTask returns the record for id, or ErrNotFound.
	GetTask(ctx context.Context, id int64) (TaskRecord, error)
	InsertTask(ctx context.Context, rec TaskRecord) error
	// UpdateTask replaces the stored record for rec.ID, or ErrNotFound.
	UpdateTask(ctx context.Context, rec TaskRecord) error
	DeleteTask(ctx context.Context, id int64) error
	// ReorderTasks assigns every id in order to the given status label,
	// with its order position set to its index. The call is authoritative
	// for that column's stored order.
	ReorderTasks(ctx context.Context, statusLabel string, ids []int64) error
}

func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

var lastID int64

// NextID allocates a server-assigned task id. IDs are monotonically
// increasing across the process even when the clock does not advance.
func NextID() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastID)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastID, last, now) {
			return now
		}
	}
}

// sortNewestFirst orders records by creation time descending, ties broken
// by id descending so the order is stable across calls.
func sortNewestFirst(recs []TaskRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
}

// page applies limit/offset to an already ordered slice.
func page(recs []TaskRecord, limit, offset int) []TaskRecord {
	if offset > 0 {
		if offset >= len(recs) {
			return []TaskRecord{}
		}
		recs = recs[offset:]
	}
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs
}
