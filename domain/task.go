package domain

import (
	"time"

	"github.com/bytedance/sonic"
)

// Task represents a single work item on the board.
type Task struct {
	ID             int64                  `json:"id"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description,omitempty"`
	Status         Status                 `json:"status"`
	Priority       Priority               `json:"priority"`
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

// TaskInput carries the fields a caller may set when creating a task.
// Title is the only required field; the server assigns ID and CreatedAt.
type TaskInput struct {
	Title          string                 `json:"title"`
	Description    string                 `json:"description,omitempty"`
	Status         Status                 `json:"status,omitempty"`
	Priority       Priority               `json:"priority,omitempty"`
	ProjectID      *int64                 `json:"projectId,omitempty"`
	AssignedTo     *int64                 `json:"assignedTo,omitempty"`
	DueDate        *time.Time             `json:"dueDate,omitempty"`
	EstimatedHours *float64               `json:"estimatedHours,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	Subtasks       sonic.NoCopyRawMessage `json:"subtasks,omitempty"`
}

// TaskPatch carries optional fields for a partial update. Nil fields are
// left untouched by the server.
type TaskPatch struct {
	Title          *string                `json:"title,omitempty"`
	Description    *string                `json:"description,omitempty"`
	Status         *Status                `json:"status,omitempty"`
	Priority       *Priority              `json:"priority,omitempty"`
	ProjectID      *int64                 `json:"projectId,omitempty"`
	AssignedTo     *int64                 `json:"assignedTo,omitempty"`
	DueDate        *time.Time             `json:"dueDate,omitempty"`
	EstimatedHours *float64               `json:"estimatedHours,omitempty"`
	ActualHours    *float64               `json:"actualHours,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	OrderPosition  *int                   `json:"orderPosition,omitempty"`
	Subtasks       sonic.NoCopyRawMessage `json:"subtasks,omitempty"`
}
