package api

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"opsboard/domain"
	"opsboard/storage"
)

// Register wires up the task service routes on the provided Echo instance.
func Register(e *echo.Echo, backend storage.Backend, deduper Deduper, pub Publisher, logger *log.Logger) {
	if pub == nil {
		pub = NopPublisher{}
	}

	e.GET("/api/tasks", listTasks(backend, logger))
	e.GET("/api/tasks/:id", getTask(backend))
	e.GET("/api/tasks/stats", getStats(backend))

	idem := idempotencyMiddleware(deduper, logger)
	e.POST("/api/tasks", createTask(backend, pub), idem)
	e.PATCH("/api/tasks/:id", updateTask(backend, pub), idem)
	e.PATCH("/api/tasks/:id/status", updateTaskStatus(backend, pub), idem)
	e.DELETE("/api/tasks/:id", deleteTask(backend, pub), idem)
	e.POST("/api/tasks/reorder", reorderTasks(backend, pub), idem)
	e.POST("/api/tasks/move", moveTask(backend, pub, logger), idem)

	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func taskID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func parseFilter(c echo.Context) (domain.Filter, error) {
	var f domain.Filter
	if v := c.QueryParam("projectId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, errors.New("invalid projectId")
		}
		f.ProjectID = &id
	}
	if v := c.QueryParam("assignedTo"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, errors.New("invalid assignedTo")
		}
		f.AssignedTo = &id
	}
	if v := c.QueryParam("status"); v != "" {
		s := domain.StatusFromStorage(v)
		f.Status = &s
	}
	if v := c.QueryParam("priority"); v != "" {
		p := domain.PriorityFromStorage(v)
		f.Priority = &p
	}
	f.Search = c.QueryParam("search")
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid limit")
		}
		f.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid offset")
		}
		f.Offset = n
	}
	return f, nil
}

func listTasks(backend storage.Backend, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, "tasks.list")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		f, ferr := parseFilter(c)
		if ferr != nil {
			metrics.SetErrorStage("invalid_filter")
			err = respondError(c, http.StatusBadRequest, ferr.Error())
			return err
		}
		metrics.SetFiltered(f != domain.Filter{})

		fetchStart := time.Now()
		recs, fetchErr := backend.ListTasks(ctx, f)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = respondError(c, http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetTasksReturned(len(recs))

		encodeStart := time.Now()
		err = respondData(c, http.StatusOK, recs)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getTask(backend storage.Backend) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid task id")
		}
		rec, err := backend.GetTask(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return respondError(c, http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return respondError(c, http.StatusInternalServerError, err.Error())
		}
		return respondData(c, http.StatusOK, rec)
	}
}

func createTask(backend storage.Backend, pub Publisher) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		if strings.TrimSpace(req.Title) == "" {
			return respondError(c, http.StatusBadRequest, "title is required")
		}

		now := time.Now().UTC()
		rec := storage.TaskRecord{
			ID:             storage.NextID(),
			Title:          req.Title,
			Description:    req.Description,
			Status:         req.Status,
			Priority:       req.Priority,
			ProjectID:      req.ProjectID,
			AssignedTo:     req.AssignedTo,
			DueDate:        req.DueDate,
			CreatedAt:      now,
			UpdatedAt:      now,
			EstimatedHours: req.EstimatedHours,
			Tags:           req.Tags,
			Subtasks:       req.Subtasks,
		}
		if rec.Status == "" {
			rec.Status = domain.DefaultStatus.StorageLabel()
		}
		if rec.Priority == "" {
			rec.Priority = domain.DefaultPriority.StorageLabel()
		}

		if err := backend.InsertTask(c.Request().Context(), rec); err != nil {
			c.Logger().Error(err)
			return respondError(c, http.StatusInternalServerError, err.Error())
		}
		pub.Publish(change(storage.ChangeCreated, rec.ID, rec.Status))
		return respondData(c, http.StatusCreated, rec)
	}
}

func updateTask(backend storage.Backend, pub Publisher) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid task id")
		}
		var req updateTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
			return respondError(c, http.StatusBadRequest, "title is required")
		}

		ctx := c.Request().Context()
		rec, err := backend.GetTask(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return respondError(c, http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return respondError(c, http.StatusInternalServerError, err.Error())
		}
		req.apply(&rec)
		rec.UpdatedAt = time.Now().UTC()

		if err := backend.UpdateTask(ctx, rec); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return respondError(c, http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return respondError(c, http.StatusInternalServerError, err.Error())
		}
		pub.Publish(change(storage.ChangeUpdated, rec.ID, rec.Status))
		return respondData(c, http.StatusOK, rec)
	}
}

// updateTaskStatus is the narrow variant used by drag operations; the
// request carries only the destination status.
func updateTaskStatus(backend storage.Backend, pub Publisher) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid task id")
		}
		var req updateStatusRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		if req.Status == "" {
			return respondError(c, http.StatusBadRequest, "status is required")
		}

		ctx := c.Request().Context()
		rec, err := backend.GetTask(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return respondError(c, http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return respondError(c, http.StatusInternalServerError, err.Error())
		}
		rec.Status = req.Status
		rec.UpdatedAt = time.Now().UTC()

		if err := backend.UpdateTask(ctx, rec); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return respondError(c, http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return respondError(c, http.StatusInternalServerError, err.Error())
		}
		pub.Publish(change(storage.ChangeUpdated, rec.ID, rec.Status))
		return respondData(c, http.StatusOK, rec)
	}
}

func deleteTask(backend storage.Backend, pub Publisher) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid task id")
		}
		if err := backend.DeleteTask(c.Request().Context(), id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return respondError(c, http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return respondError(c, http.StatusInternalServerError, err.Error())
		}
		pub.Publish(change(storage.ChangeDeleted, id, ""))
		return respondOK(c)
	}
}

func reorderTasks(backend storage.Backend, pub Publisher) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req reorderRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		if req.Status == "" {
			return respondError(c, http.StatusBadRequest, "status is required")
		}
		if err := backend.ReorderTasks(c.Request().Context(), req.Status, req.OrderedIDs); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return respondError(c, http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return respondError(c, http.StatusInternalServerError, err.Error())
		}
		pub.Publish(change(storage.ChangeReordered, 0, req.Status))
		return respondOK(c)
	}
}

// moveTask persists one drag as a single operation: the task takes the
// destination status and the destination column's full order is stored.
func moveTask(backend storage.Backend, pub Publisher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, "tasks.move")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var req moveRequest
		if derr := decodeBody(c, &req); derr != nil {
			metrics.SetErrorStage("invalid_body")
			err = respondError(c, http.StatusBadRequest, "invalid body")
			return err
		}
		if req.Status == "" {
			metrics.SetErrorStage("invalid_body")
			err = respondError(c, http.StatusBadRequest, "status is required")
			return err
		}
		if !slices.Contains(req.OrderedIDs, req.TaskID) {
			metrics.SetErrorStage("invalid_body")
			err = respondError(c, http.StatusBadRequest, "taskId must appear in orderedIds")
			return err
		}

		fetchStart := time.Now()
		reorderErr := backend.ReorderTasks(ctx, req.Status, req.OrderedIDs)
		metrics.ObserveFetch(time.Since(fetchStart))
		if reorderErr != nil {
			if errors.Is(reorderErr, storage.ErrNotFound) {
				metrics.SetErrorStage("not_found")
				err = respondError(c, http.StatusNotFound, "task not found")
				return err
			}
			metrics.SetErrorStage("storage")
			c.Logger().Error(reorderErr)
			err = respondError(c, http.StatusInternalServerError, reorderErr.Error())
			return err
		}

		rec, getErr := backend.GetTask(ctx, req.TaskID)
		if getErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(getErr)
			err = respondError(c, http.StatusInternalServerError, getErr.Error())
			return err
		}
		metrics.SetTasksReturned(len(req.OrderedIDs))
		pub.Publish(change(storage.ChangeReordered, req.TaskID, req.Status))

		encodeStart := time.Now()
		err = respondData(c, http.StatusOK, rec)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getStats(backend storage.Backend) echo.HandlerFunc {
	return func(c echo.Context) error {
		f, err := parseFilter(c)
		if err != nil {
			return respondError(c, http.StatusBadRequest, err.Error())
		}
		recs, err := backend.ListTasks(c.Request().Context(), f)
		if err != nil {
			c.Logger().Error(err)
			return respondError(c, http.StatusInternalServerError, err.Error())
		}

		resp := statsResponse{
			Total:      len(recs),
			ByStatus:   make(map[string]int, len(domain.Statuses)),
			ByPriority: make(map[string]int, len(domain.Priorities)),
		}
		for _, s := range domain.Statuses {
			resp.ByStatus[s.StorageLabel()] = 0
		}
		for _, p := range domain.Priorities {
			resp.ByPriority[p.StorageLabel()] = 0
		}
		for _, rec := range recs {
			t := rec.Task()
			resp.ByStatus[t.Status.StorageLabel()]++
			resp.ByPriority[t.Priority.StorageLabel()]++
		}
		return respondData(c, http.StatusOK, resp)
	}
}

func change(typ string, id int64, status string) storage.TaskChange {
	return storage.TaskChange{
		ChangeID:  uuid.NewString(),
		Type:      typ,
		TaskID:    id,
		Status:    status,
		Timestamp: time.Now().UnixNano(),
	}
}
