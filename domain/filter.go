package domain

import "strings"

// Filter narrows a task listing. Zero-valued fields are ignored.
type Filter struct {
	ProjectID  *int64
	Status     *Status
	Priority   *Priority
	AssignedTo *int64
	Search     string
	Limit      int
	Offset     int
}

// Matches reports whether t satisfies every set field of f, ignoring
// Limit and Offset which apply to the listing as a whole.
func (f Filter) Matches(t Task) bool {
	if f.ProjectID != nil && (t.ProjectID == nil || *t.ProjectID != *f.ProjectID) {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *f.AssignedTo) {
		return false
	}
	if f.Search != "" && !containsFold(t.Title, f.Search) && !containsFold(t.Description, f.Search) {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
