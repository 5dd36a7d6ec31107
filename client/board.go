package client

import (
	"context"
	"fmt"
	"sort"

	"opsboard/domain"
)

// DragState is the board's interaction state.
type DragState int

const (
	StateIdle DragState = iota
	StateDragging
)

// Column is one ordered bucket of the board projection.
type Column struct {
	Status domain.Status
	Tasks  []domain.Task
}

// Board projects the store's flat collection into ordered per-status
// columns and implements the drag-and-drop move protocol. The projection
// is derived and disposable: it is rebuilt from a store snapshot on every
// change and never mutated except through store operations.
//
// Board methods are driven by the single UI event loop and are not safe
// for concurrent use; the store underneath is.
type Board struct {
	store      *Store
	columns    []Column
	state      DragState
	draggingID int64
}

// NewBoard creates a board over the given store with an empty projection.
func NewBoard(store *Store) *Board {
	if store == nil {
		panic("client.NewBoard: store is nil")
	}
	b := &Board{store: store}
	b.Refresh()
	return b
}

// Refresh rebuilds the column projection from the store's current
// collection. Within a column, tasks order by their stored position;
// tasks without one keep their collection order after the positioned ones.
func (b *Board) Refresh() {
	tasks := b.store.Tasks()
	buckets := make(map[domain.Status][]domain.Task, len(domain.ColumnOrder))
	for _, t := range tasks {
		buckets[t.Status] = append(buckets[t.Status], t)
	}
	columns := make([]Column, len(domain.ColumnOrder))
	for i, status := range domain.ColumnOrder {
		col := buckets[status]
		sort.SliceStable(col, func(x, y int) bool {
			px, py := col[x].OrderPosition, col[y].OrderPosition
			switch {
			case px != nil && py != nil:
				return *px < *py
			case px != nil:
				return true
			default:
				return false
			}
		})
		columns[i] = Column{Status: status, Tasks: col}
	}
	b.columns = columns
}

// Columns returns the current projection in fixed column order.
func (b *Board) Columns() []Column {
	return b.columns
}

// Column returns the ordered tasks of one status bucket.
func (b *Board) Column(status domain.Status) []domain.Task {
	for _, col := range b.columns {
		if col.Status == status {
			return col.Tasks
		}
	}
	return nil
}

// State reports whether a drag is in progress.
func (b *Board) State() DragState {
	return b.state
}

// StartDrag transitions the board to the dragging state.
func (b *Board) StartDrag(taskID int64) {
	b.state = StateDragging
	b.draggingID = taskID
}

// Drop completes a drag from the source column/index to the destination
// column/index. The projection is spliced optimistically, then a single
// move operation persists the destination status and the destination
// column's full order; the source column's post-removal order is not
// separately persisted. On failure the store reloads to server truth.
// The board returns to idle regardless of outcome.
func (b *Board) Drop(ctx context.Context, src domain.Status, srcIdx int, dst domain.Status, dstIdx int) error {
	defer func() {
		b.state = StateIdle
		b.draggingID = 0
	}()

	if src == dst && srcIdx == dstIdx {
		return nil
	}

	srcCol := b.Column(src)
	if srcIdx < 0 || srcIdx >= len(srcCol) {
		return fmt.Errorf("drop: source index %d out of range for column %s", srcIdx, src)
	}
	task := srcCol[srcIdx]

	// Optimistic splice so the projection reflects the move immediately.
	srcTasks := append([]domain.Task(nil), srcCol...)
	srcTasks = append(srcTasks[:srcIdx], srcTasks[srcIdx+1:]...)
	b.setColumn(src, srcTasks)

	dstTasks := srcTasks
	if dst != src {
		task.Status = dst
		dstTasks = append([]domain.Task(nil), b.Column(dst)...)
	}
	if dstIdx < 0 {
		dstIdx = 0
	}
	if dstIdx > len(dstTasks) {
		dstIdx = len(dstTasks)
	}
	dstTasks = append(dstTasks[:dstIdx], append([]domain.Task{task}, dstTasks[dstIdx:]...)...)
	b.setColumn(dst, dstTasks)

	orderedIDs := make([]int64, len(dstTasks))
	for i, t := range dstTasks {
		orderedIDs[i] = t.ID
	}

	if err := b.store.Move(ctx, task.ID, dst, orderedIDs); err != nil {
		// The store has already reloaded to server truth; rebuild from it.
		b.Refresh()
		return err
	}
	b.Refresh()
	return nil
}

func (b *Board) setColumn(status domain.Status, tasks []domain.Task) {
	for i := range b.columns {
		if b.columns[i].Status == status {
			b.columns[i].Tasks = tasks
			return
		}
	}
}
