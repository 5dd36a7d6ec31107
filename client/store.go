package client

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"opsboard/domain"
)

// Store owns the authoritative client-side task collection for the active
// filter and implements optimistic mutation with reconciliation. Every
// read and write funnels through its methods; optimistic state becomes
// visible to readers before the network round trip completes.
type Store struct {
	svc    TaskService
	logger *log.Logger

	mu         sync.Mutex
	tasks      []domain.Task
	filter     domain.Filter
	generation uint64
	errMsg     string
}

// NewStore creates a store bound to the given service. Each store owns an
// independent collection; nothing is shared between instances.
func NewStore(svc TaskService, logger *log.Logger) *Store {
	if svc == nil {
		panic("client.NewStore: service is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{svc: svc, logger: logger}
}

// Load fetches the collection for f and replaces the local one entirely.
// Loads are guarded by a generation counter: a response superseded by a
// newer Load before it resolved is discarded on arrival, so the visible
// state always reflects the most recently issued Load.
func (s *Store) Load(ctx context.Context, f domain.Filter) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.filter = f
	s.mu.Unlock()

	tasks, err := s.svc.List(ctx, f)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		// Superseded by a newer Load; drop the stale response.
		s.logger.WithField("generation", gen).Debug("discarding stale load response")
		return nil
	}
	if err != nil {
		s.errMsg = err.Error()
		return err
	}
	s.tasks = tasks
	s.errMsg = ""
	return nil
}

// Reload re-runs Load with the current filter, restoring the collection
// to server truth.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	f := s.filter
	s.mu.Unlock()
	return s.Load(ctx, f)
}

// Create inserts into the local collection only after the server confirms,
// since the server-assigned id is required for every later operation.
func (s *Store) Create(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	task, err := s.svc.Create(ctx, in)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errMsg = err.Error()
		return domain.Task{}, err
	}
	// The collection is ordered newest-created first.
	s.tasks = append([]domain.Task{task}, s.tasks...)
	s.errMsg = ""
	return task, nil
}

// Update applies the server's returned entity after confirmation; there is
// no optimistic apply on this path.
func (s *Store) Update(ctx context.Context, id int64, patch domain.TaskPatch) (domain.Task, error) {
	task, err := s.svc.Update(ctx, id, patch)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errMsg = err.Error()
		return domain.Task{}, err
	}
	s.replaceLocked(task)
	s.errMsg = ""
	return task, nil
}

// UpdateStatus is the performance-critical drag path: the local copy takes
// the new status immediately, then the server round trip either confirms
// (the returned entity overwrites the optimistic guess) or fails, in which
// case the whole collection is reloaded to server truth.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.tasks[i].Status = status
	}
	s.mu.Unlock()

	task, err := s.svc.UpdateStatus(ctx, id, status)
	if err != nil {
		if rerr := s.Reload(ctx); rerr != nil {
			s.logger.Warnf("reload after failed status update: %v", rerr)
		}
		// Set after the reload so the failure stays visible.
		s.mu.Lock()
		s.errMsg = err.Error()
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.replaceLocked(task)
	s.errMsg = ""
	s.mu.Unlock()
	return nil
}

// Move is the consolidated drag operation: the task takes the destination
// status and every task in orderedIDs takes its index as order position,
// optimistically; one service call persists both. Failure recovery is a
// full reload, never an incremental undo.
func (s *Store) Move(ctx context.Context, id int64, dest domain.Status, orderedIDs []int64) error {
	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.tasks[i].Status = dest
	}
	for pos, orderedID := range orderedIDs {
		if i := s.indexLocked(orderedID); i >= 0 {
			p := pos
			s.tasks[i].Status = dest
			s.tasks[i].OrderPosition = &p
		}
	}
	s.mu.Unlock()

	task, err := s.svc.Move(ctx, id, dest, orderedIDs)
	if err != nil {
		if rerr := s.Reload(ctx); rerr != nil {
			s.logger.Warnf("reload after failed move: %v", rerr)
		}
		s.mu.Lock()
		s.errMsg = err.Error()
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.replaceLocked(task)
	s.errMsg = ""
	s.mu.Unlock()
	return nil
}

// Delete removes from the local collection only after server confirmation.
// Delete is not idempotent; a second call on the same id fails.
func (s *Store) Delete(ctx context.Context, id int64) error {
	err := s.svc.Delete(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errMsg = err.Error()
		return err
	}
	if i := s.indexLocked(id); i >= 0 {
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	}
	s.errMsg = ""
	return nil
}

// Tasks returns a snapshot copy of the current collection.
func (s *Store) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Get returns the local copy of a task, if present.
func (s *Store) Get(id int64) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i], true
	}
	return domain.Task{}, false
}

// Filter returns the filter of the most recently issued Load.
func (s *Store) Filter() domain.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Err returns the message of the most recent failed operation; it is
// empty after a successful one.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *Store) indexLocked(id int64) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) replaceLocked(task domain.Task) {
	if i := s.indexLocked(task.ID); i >= 0 {
		s.tasks[i] = task
	}
}
