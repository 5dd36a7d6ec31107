package domain

// Status is the UI-facing workflow stage of a task. It is one of the five
// fixed values below; the persistence layer stores a parallel human-readable
// label, translated through StorageLabel and StatusFromStorage.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Priority is the UI-facing urgency classification of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// DefaultStatus and DefaultPriority are the fallback values used when an
// unrecognized storage label is encountered, and the defaults applied to
// newly created tasks.
const (
	DefaultStatus   = StatusTodo
	DefaultPriority = PriorityMedium
)

// ColumnOrder is the fixed left-to-right order of board columns.
var ColumnOrder = [5]Status{StatusBacklog, StatusTodo, StatusInProgress, StatusReview, StatusDone}

// Statuses lists every UI status value.
var Statuses = ColumnOrder[:]

// Priorities lists every UI priority value.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// statusLabels is the single authoritative mapping between UI statuses and
// the labels the persistence layer stores. Both directions derive from it.
var statusLabels = map[Status]string{
	StatusBacklog:    "Backlog",
	StatusTodo:       "To Do",
	StatusInProgress: "In Progress",
	StatusReview:     "In Review",
	StatusDone:       "Done",
}

var priorityLabels = map[Priority]string{
	PriorityLow:    "Low",
	PriorityMedium: "Medium",
	PriorityHigh:   "High",
	PriorityUrgent: "Urgent",
}

var statusFromLabel = invert(statusLabels)
var priorityFromLabel = invert(priorityLabels)

func invert[K ~string](m map[K]string) map[string]K {
	out := make(map[string]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// StorageLabel returns the persisted label for s. It is total over the UI
// enum; values outside the enum map to the default's label.
func (s Status) StorageLabel() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return statusLabels[DefaultStatus]
}

// StorageLabel returns the persisted label for p, defaulting for values
// outside the enum.
func (p Priority) StorageLabel() string {
	if label, ok := priorityLabels[p]; ok {
		return label
	}
	return priorityLabels[DefaultPriority]
}

// StatusFromStorage translates a persisted label back to the UI enum.
// Unrecognized labels fall back to DefaultStatus rather than failing; the
// mapper is therefore not injective in the storage-to-UI direction.
func StatusFromStorage(label string) Status {
	if s, ok := statusFromLabel[label]; ok {
		return s
	}
	return DefaultStatus
}

// PriorityFromStorage translates a persisted label back to the UI enum,
// falling back to DefaultPriority on unrecognized input.
func PriorityFromStorage(label string) Priority {
	if p, ok := priorityFromLabel[label]; ok {
		return p
	}
	return DefaultPriority
}

// ValidStatus reports whether s is one of the five UI statuses.
func ValidStatus(s Status) bool {
	_, ok := statusLabels[s]
	return ok
}

// ValidPriority reports whether p is one of the four UI priorities.
func ValidPriority(p Priority) bool {
	_, ok := priorityLabels[p]
	return ok
}
