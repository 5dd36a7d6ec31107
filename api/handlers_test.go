package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"opsboard/storage"
)

// testJSON decodes integers into int64 rather than float64 so that
// server-assigned int64 ids survive the envelope's `any` Data field
// without losing precision.
var testJSON = sonic.Config{UseInt64: true}.Froze()

type capturePublisher struct {
	mu     sync.Mutex
	events []storage.TaskChange
}

func (p *capturePublisher) Publish(ev storage.TaskChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePublisher) Events() []storage.TaskChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]storage.TaskChange, len(p.events))
	copy(out, p.events)
	return out
}

func newTestServer(t *testing.T) (*echo.Echo, *storage.Memory, *capturePublisher) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	e := echo.New()
	backend := storage.NewMemory()
	pub := &capturePublisher{}
	Register(e, backend, nil, pub, logger)
	return e, backend, pub
}

func doJSON(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reqBody *strings.Reader
	if body == "" {
		reqBody = strings.NewReader("")
	} else {
		reqBody = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reqBody)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := testJSON.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	raw, err := testJSON.Marshal(env.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	if err := testJSON.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func createTestTask(t *testing.T, e *echo.Echo, body string) storage.TaskRecord {
	t.Helper()
	rec, env := doJSON(t, e, http.MethodPost, "/api/tasks", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body.String())
	}
	var task storage.TaskRecord
	decodeData(t, env, &task)
	return task
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	e, _, pub := newTestServer(t)

	rec, env := doJSON(t, e, http.MethodPost, "/api/tasks", `{"title":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.Success || env.Error == "" {
		t.Fatalf("expected failure envelope, got %+v", env)
	}
	if len(pub.Events()) != 0 {
		t.Fatal("failed create must not publish a change event")
	}
}

func TestCreateTaskAssignsDefaultsAndID(t *testing.T) {
	e, _, pub := newTestServer(t)

	task := createTestTask(t, e, `{"title":"Write launch email"}`)
	if task.ID == 0 {
		t.Fatal("expected server-assigned id")
	}
	if task.Status != "To Do" {
		t.Fatalf("default status = %q", task.Status)
	}
	if task.Priority != "Medium" {
		t.Fatalf("default priority = %q", task.Priority)
	}
	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Fatal("expected server-assigned timestamps")
	}

	events := pub.Events()
	if len(events) != 1 || events[0].Type != storage.ChangeCreated || events[0].TaskID != task.ID {
		t.Fatalf("unexpected change events: %#v", events)
	}
}

func TestCreateRoundTripThroughGet(t *testing.T) {
	e, _, _ := newTestServer(t)

	created := createTestTask(t, e, `{"title":"X"}`)
	rec, env := doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/tasks/%d", created.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d", rec.Code)
	}
	var fetched storage.TaskRecord
	decodeData(t, env, &fetched)
	if fetched.Title != "X" || fetched.ID != created.ID {
		t.Fatalf("unexpected task: %#v", fetched)
	}
}

func TestListTasksNewestFirstAndFiltered(t *testing.T) {
	e, _, _ := newTestServer(t)

	first := createTestTask(t, e, `{"title":"first","projectId":7}`)
	second := createTestTask(t, e, `{"title":"second"}`)
	third := createTestTask(t, e, `{"title":"third","projectId":7}`)

	rec, env := doJSON(t, e, http.MethodGet, "/api/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	var tasks []storage.TaskRecord
	decodeData(t, env, &tasks)
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != third.ID || tasks[1].ID != second.ID || tasks[2].ID != first.ID {
		t.Fatalf("not newest-first: %d, %d, %d", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}

	rec, env = doJSON(t, e, http.MethodGet, "/api/tasks?projectId=7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered list status %d", rec.Code)
	}
	decodeData(t, env, &tasks)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 project tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.ProjectID == nil || *task.ProjectID != 7 {
			t.Fatalf("task %d escaped filter", task.ID)
		}
	}
}

func TestListTasksSearch(t *testing.T) {
	e, _, _ := newTestServer(t)
	createTestTask(t, e, `{"title":"Launch campaign"}`)
	createTestTask(t, e, `{"title":"misc","description":"prep the launch"}`)
	createTestTask(t, e, `{"title":"unrelated"}`)

	rec, env := doJSON(t, e, http.MethodGet, "/api/tasks?search=launch", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var tasks []storage.TaskRecord
	decodeData(t, env, &tasks)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(tasks))
	}
}

func TestListTasksRejectsBadFilter(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec, env := doJSON(t, e, http.MethodGet, "/api/tasks?limit=nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if env.Success {
		t.Fatal("expected failure envelope")
	}
}

func TestUpdateTaskMergesFields(t *testing.T) {
	e, _, _ := newTestServer(t)
	task := createTestTask(t, e, `{"title":"before","description":"keep me"}`)

	rec, env := doJSON(t, e, http.MethodPatch, fmt.Sprintf("/api/tasks/%d", task.ID), `{"title":"after","priority":"Urgent"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var updated storage.TaskRecord
	decodeData(t, env, &updated)
	if updated.Title != "after" {
		t.Fatalf("title = %q", updated.Title)
	}
	if updated.Description != "keep me" {
		t.Fatalf("description lost: %q", updated.Description)
	}
	if updated.Priority != "Urgent" {
		t.Fatalf("priority = %q", updated.Priority)
	}
	if !updated.UpdatedAt.After(task.UpdatedAt) && !updated.UpdatedAt.Equal(task.UpdatedAt) {
		t.Fatalf("updatedAt not restamped: %v -> %v", task.UpdatedAt, updated.UpdatedAt)
	}
}

func TestUpdateMissingTaskIs404(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec, env := doJSON(t, e, http.MethodPatch, "/api/tasks/12345", `{"title":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
	if env.Success {
		t.Fatal("expected failure envelope")
	}
}

func TestUpdateStatusNarrowPayload(t *testing.T) {
	e, _, _ := newTestServer(t)
	task := createTestTask(t, e, `{"title":"dragged"}`)

	rec, env := doJSON(t, e, http.MethodPatch, fmt.Sprintf("/api/tasks/%d/status", task.ID), `{"status":"Done"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var updated storage.TaskRecord
	decodeData(t, env, &updated)
	if updated.Status != "Done" {
		t.Fatalf("status = %q", updated.Status)
	}
	if updated.Title != "dragged" {
		t.Fatal("narrow update must not clear other fields")
	}
}

func TestDeleteTaskNotIdempotent(t *testing.T) {
	e, _, _ := newTestServer(t)
	task := createTestTask(t, e, `{"title":"goner"}`)

	rec, env := doJSON(t, e, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", task.ID), "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("first delete: %d %+v", rec.Code, env)
	}

	rec, env = doJSON(t, e, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", task.ID), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status %d", rec.Code)
	}
	if env.Success {
		t.Fatal("expected failure envelope on second delete")
	}
}

func TestReorderPersistsColumnOrder(t *testing.T) {
	e, backend, _ := newTestServer(t)
	a := createTestTask(t, e, `{"title":"a"}`)
	b := createTestTask(t, e, `{"title":"b"}`)
	c := createTestTask(t, e, `{"title":"c"}`)

	body := fmt.Sprintf(`{"status":"In Progress","orderedIds":[%d,%d,%d]}`, c.ID, a.ID, b.ID)
	rec, env := doJSON(t, e, http.MethodPost, "/api/tasks/reorder", body)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("reorder: %d %+v", rec.Code, env)
	}

	for i, id := range []int64{c.ID, a.ID, b.ID} {
		stored, err := backend.GetTask(context.Background(), id)
		if err != nil {
			t.Fatalf("get %d: %v", id, err)
		}
		if stored.Status != "In Progress" {
			t.Fatalf("task %d status %q", id, stored.Status)
		}
		if stored.OrderPosition == nil || *stored.OrderPosition != i {
			t.Fatalf("task %d position %v, want %d", id, stored.OrderPosition, i)
		}
	}
}

func TestMovePersistsStatusAndOrderInOneCall(t *testing.T) {
	e, backend, pub := newTestServer(t)
	a := createTestTask(t, e, `{"title":"a"}`)
	b := createTestTask(t, e, `{"title":"b"}`)
	moved := createTestTask(t, e, `{"title":"moved"}`)

	body := fmt.Sprintf(`{"taskId":%d,"status":"In Review","orderedIds":[%d,%d,%d]}`, moved.ID, a.ID, moved.ID, b.ID)
	rec, env := doJSON(t, e, http.MethodPost, "/api/tasks/move", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("move status %d: %s", rec.Code, rec.Body.String())
	}
	var result storage.TaskRecord
	decodeData(t, env, &result)
	if result.Status != "In Review" {
		t.Fatalf("moved status %q", result.Status)
	}
	if result.OrderPosition == nil || *result.OrderPosition != 1 {
		t.Fatalf("moved position %v, want 1", result.OrderPosition)
	}

	stored, err := backend.GetTask(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != "In Review" || stored.OrderPosition == nil || *stored.OrderPosition != 0 {
		t.Fatalf("column order not persisted: %#v", stored)
	}

	var reordered bool
	for _, ev := range pub.Events() {
		if ev.Type == storage.ChangeReordered && ev.TaskID == moved.ID {
			reordered = true
		}
	}
	if !reordered {
		t.Fatal("expected reorder change event")
	}
}

func TestMoveRequiresTaskInOrderedIDs(t *testing.T) {
	e, _, _ := newTestServer(t)
	task := createTestTask(t, e, `{"title":"x"}`)

	body := fmt.Sprintf(`{"taskId":%d,"status":"Done","orderedIds":[999]}`, task.ID)
	rec, env := doJSON(t, e, http.MethodPost, "/api/tasks/move", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if env.Success {
		t.Fatal("expected failure envelope")
	}
}

func TestStatsCountsByStatusAndPriority(t *testing.T) {
	e, _, _ := newTestServer(t)
	createTestTask(t, e, `{"title":"a"}`)
	createTestTask(t, e, `{"title":"b","status":"Done","priority":"Urgent"}`)
	createTestTask(t, e, `{"title":"c","status":"Done"}`)

	rec, env := doJSON(t, e, http.MethodGet, "/api/tasks/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var stats statsResponse
	decodeData(t, env, &stats)
	if stats.Total != 3 {
		t.Fatalf("total = %d", stats.Total)
	}
	if stats.ByStatus["Done"] != 2 || stats.ByStatus["To Do"] != 1 {
		t.Fatalf("byStatus = %v", stats.ByStatus)
	}
	if stats.ByPriority["Urgent"] != 1 || stats.ByPriority["Medium"] != 2 {
		t.Fatalf("byPriority = %v", stats.ByPriority)
	}
	if stats.ByStatus["Backlog"] != 0 {
		t.Fatalf("expected zero bucket for Backlog, got %d", stats.ByStatus["Backlog"])
	}
	sum := 0
	for _, n := range stats.ByStatus {
		sum += n
	}
	if sum != stats.Total {
		t.Fatalf("status counts sum to %d, want %d", sum, stats.Total)
	}
}
