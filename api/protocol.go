package api

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"opsboard/storage"
)

const requestBodyMaxSize = 256 * 1024 // 256 KiB

// envelope is the uniform response shape of every endpoint: a success flag,
// a data payload on success and an error message on failure.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondData(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

func respondOK(c echo.Context) error {
	return c.JSON(200, envelope{Success: true})
}

func respondError(c echo.Context, status int, msg string) error {
	return c.JSON(status, envelope{Success: false, Error: msg})
}

type createTaskRequest struct {
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Status         string                 `json:"status"`
	Priority       string                 `json:"priority"`
	ProjectID      *int64                 `json:"projectId"`
	AssignedTo     *int64                 `json:"assignedTo"`
	DueDate        *time.Time             `json:"dueDate"`
	EstimatedHours *float64               `json:"estimatedHours"`
	Tags           []string               `json:"tags"`
	Subtasks       sonic.NoCopyRawMessage `json:"subtasks"`
}

// updateTaskRequest is a partial update; nil fields are left untouched.
type updateTaskRequest struct {
	Title          *string                `json:"title"`
	Description    *string                `json:"description"`
	Status         *string                `json:"status"`
	Priority       *string                `json:"priority"`
	ProjectID      *int64                 `json:"projectId"`
	AssignedTo     *int64                 `json:"assignedTo"`
	DueDate        *time.Time             `json:"dueDate"`
	EstimatedHours *float64               `json:"estimatedHours"`
	ActualHours    *float64               `json:"actualHours"`
	Tags           []string               `json:"tags"`
	OrderPosition  *int                   `json:"orderPosition"`
	Subtasks       sonic.NoCopyRawMessage `json:"subtasks"`
}

func (r updateTaskRequest) apply(rec *storage.TaskRecord) {
	if r.Title != nil {
		rec.Title = *r.Title
	}
	if r.Description != nil {
		rec.Description = *r.Description
	}
	if r.Status != nil {
		rec.Status = *r.Status
	}
	if r.Priority != nil {
		rec.Priority = *r.Priority
	}
	if r.ProjectID != nil {
		rec.ProjectID = r.ProjectID
	}
	if r.AssignedTo != nil {
		rec.AssignedTo = r.AssignedTo
	}
	if r.DueDate != nil {
		rec.DueDate = r.DueDate
	}
	if r.EstimatedHours != nil {
		rec.EstimatedHours = r.EstimatedHours
	}
	if r.ActualHours != nil {
		rec.ActualHours = r.ActualHours
	}
	if r.Tags != nil {
		rec.Tags = r.Tags
	}
	if r.OrderPosition != nil {
		rec.OrderPosition = r.OrderPosition
	}
	if r.Subtasks != nil {
		rec.Subtasks = r.Subtasks
	}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type reorderRequest struct {
	Status     string  `json:"status"`
	OrderedIDs []int64 `json:"orderedIds"`
}

type moveRequest struct {
	TaskID     int64   `json:"taskId"`
	Status     string  `json:"status"`
	OrderedIDs []int64 `json:"orderedIds"`
}

// statsResponse groups counts by the storage vocabulary labels the wire
// speaks everywhere else.
type statsResponse struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
	ByPriority map[string]int `json:"byPriority"`
}
