package domain

// Stats holds aggregate task counts grouped by status and priority.
type Stats struct {
	Total      int              `json:"total"`
	ByStatus   map[Status]int   `json:"byStatus"`
	ByPriority map[Priority]int `json:"byPriority"`
}

// AggregateStats derives counts from a task collection. Every enum value is
// present in the maps even when its count is zero, so column counters and
// dashboard badges render without key checks.
func AggregateStats(tasks []Task) Stats {
	st := Stats{
		Total:      len(tasks),
		ByStatus:   make(map[Status]int, len(Statuses)),
		ByPriority: make(map[Priority]int, len(Priorities)),
	}
	for _, s := range Statuses {
		st.ByStatus[s] = 0
	}
	for _, p := range Priorities {
		st.ByPriority[p] = 0
	}
	for _, t := range tasks {
		st.ByStatus[t.Status]++
		st.ByPriority[t.Priority]++
	}
	return st
}
