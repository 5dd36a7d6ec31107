package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"opsboard/domain"
)

// TaskService is the sole channel through which the sync engine reaches
// persistence. Every operation may fail with a *Error.
type TaskService interface {
	List(ctx context.Context, f domain.Filter) ([]domain.Task, error)
	Create(ctx context.Context, in domain.TaskInput) (domain.Task, error)
	Update(ctx context.Context, id int64, patch domain.TaskPatch) (domain.Task, error)
	// UpdateStatus is the narrow, minimal-payload variant of Update used
	// by drag operations to keep the optimistic round trip small.
	UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Task, error)
	Delete(ctx context.Context, id int64) error
	// Reorder persists the full ordering and status of a column.
	Reorder(ctx context.Context, column domain.Status, orderedIDs []int64) error
	// Move persists one drag as a single operation: destination status
	// plus the destination column's complete order.
	Move(ctx context.Context, id int64, dest domain.Status, orderedIDs []int64) (domain.Task, error)
	Stats(ctx context.Context, f domain.Filter) (domain.Stats, error)
}

const responseBodyMaxSize = 4 * 1024 * 1024 // 4 MiB

// HTTPTaskService talks to the task API over the envelope protocol.
type HTTPTaskService struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// NewHTTPTaskService creates a service bound to baseURL. A nil client
// falls back to a default with a 30s timeout.
func NewHTTPTaskService(baseURL string, httpClient *http.Client, logger *log.Logger) *HTTPTaskService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &HTTPTaskService{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// taskPayload is the wire shape of a task; status and priority carry the
// storage vocabulary and are translated here, on the client side.
type taskPayload struct {
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

func (p taskPayload) task() domain.Task {
	return domain.Task{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		Status:         domain.StatusFromStorage(p.Status),
		Priority:       domain.PriorityFromStorage(p.Priority),
		ProjectID:      p.ProjectID,
		AssignedTo:     p.AssignedTo,
		DueDate:        p.DueDate,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		EstimatedHours: p.EstimatedHours,
		ActualHours:    p.ActualHours,
		Tags:           p.Tags,
		OrderPosition:  p.OrderPosition,
		Subtasks:       p.Subtasks,
	}
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    sonic.NoCopyRawMessage `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func filterQuery(f domain.Filter) url.Values {
	q := url.Values{}
	if f.ProjectID != nil {
		q.Set("projectId", strconv.FormatInt(*f.ProjectID, 10))
	}
	if f.AssignedTo != nil {
		q.Set("assignedTo", strconv.FormatInt(*f.AssignedTo, 10))
	}
	if f.Status != nil {
		q.Set("status", f.Status.StorageLabel())
	}
	if f.Priority != nil {
		q.Set("priority", f.Priority.StorageLabel())
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

// do performs one request/response round trip and decodes the envelope.
// Mutating requests carry a fresh idempotency key.
func (s *HTTPTaskService) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return &Error{Kind: ErrValidation, cause: err}
		}
		reqBody = bytes.NewReader(data)
	}

	target := s.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return networkErr(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.WithFields(log.Fields{"method": method, "path": path}).Debugf("transport failure: %v", err)
		return networkErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyMaxSize))
	if err != nil {
		return networkErr(err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := sonic.Unmarshal(raw, &env); err != nil {
			return shapeErr(fmt.Sprintf("undecodable envelope from %s %s", method, path))
		}
	}

	if resp.StatusCode >= 400 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return notFoundErr(msg)
		case resp.StatusCode < 500:
			return &Error{Kind: ErrValidation, Message: msg, Status: resp.StatusCode}
		default:
			return serverErr(resp.StatusCode, msg)
		}
	}
	if !env.Success && len(raw) > 0 {
		return shapeErr("success flag not set on a 2xx response")
	}
	if out != nil {
		if len(env.Data) == 0 {
			return shapeErr("missing data payload")
		}
		if err := sonic.Unmarshal(env.Data, out); err != nil {
			return shapeErr(fmt.Sprintf("undecodable data payload from %s %s", method, path))
		}
	}
	return nil
}

func (s *HTTPTaskService) List(ctx context.Context, f domain.Filter) ([]domain.Task, error) {
	var payloads []taskPayload
	if err := s.do(ctx, http.MethodGet, "/api/tasks", filterQuery(f), nil, &payloads); err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, len(payloads))
	for i, p := range payloads {
		tasks[i] = p.task()
	}
	return tasks, nil
}

type createBody struct {
	Title          string                 `json:"title"`
	Description    string                 `json:"description,omitempty"`
	Status         string                 `json:"status,omitempty"`
	Priority       string                 `json:"priority,omitempty"`
	ProjectID      *int64                 `json:"projectId,omitempty"`
	AssignedTo     *int64                 `json:"assignedTo,omitempty"`
	DueDate        *time.Time             `json:"dueDate,omitempty"`
	EstimatedHours *float64               `json:"estimatedHours,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	Subtasks       sonic.NoCopyRawMessage `json:"subtasks,omitempty"`
}

func (s *HTTPTaskService) Create(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		// Rejected locally; an empty title is never sent to the server.
		return domain.Task{}, validationErr("title is required")
	}
	body := createBody{
		Title:          in.Title,
		Description:    in.Description,
		ProjectID:      in.ProjectID,
		AssignedTo:     in.AssignedTo,
		DueDate:        in.DueDate,
		EstimatedHours: in.EstimatedHours,
		Tags:           in.Tags,
		Subtasks:       in.Subtasks,
	}
	if in.Status != "" {
		body.Status = in.Status.StorageLabel()
	}
	if in.Priority != "" {
		body.Priority = in.Priority.StorageLabel()
	}
	var p taskPayload
	if err := s.do(ctx, http.MethodPost, "/api/tasks", nil, body, &p); err != nil {
		return domain.Task{}, err
	}
	return p.task(), nil
}

type updateBody struct {
	Title          *string                `json:"title,omitempty"`
	Description    *string                `json:"description,omitempty"`
	Status         *string                `json:"status,omitempty"`
	Priority       *string                `json:"priority,omitempty"`
	ProjectID      *int64                 `json:"projectId,omitempty"`
	AssignedTo     *int64                 `json:"assignedTo,omitempty"`
	DueDate        *time.Time             `json:"dueDate,omitempty"`
	EstimatedHours *float64               `json:"estimatedHours,omitempty"`
	ActualHours    *float64               `json:"actualHours,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	OrderPosition  *int                   `json:"orderPosition,omitempty"`
	Subtasks       sonic.NoCopyRawMessage `json:"subtasks,omitempty"`
}

func (s *HTTPTaskService) Update(ctx context.Context, id int64, patch domain.TaskPatch) (domain.Task, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.Task{}, validationErr("title is required")
	}
	body := updateBody{
		Title:          patch.Title,
		Description:    patch.Description,
		ProjectID:      patch.ProjectID,
		AssignedTo:     patch.AssignedTo,
		DueDate:        patch.DueDate,
		EstimatedHours: patch.EstimatedHours,
		ActualHours:    patch.ActualHours,
		Tags:           patch.Tags,
		OrderPosition:  patch.OrderPosition,
		Subtasks:       patch.Subtasks,
	}
	if patch.Status != nil {
		label := patch.Status.StorageLabel()
		body.Status = &label
	}
	if patch.Priority != nil {
		label := patch.Priority.StorageLabel()
		body.Priority = &label
	}
	var p taskPayload
	if err := s.do(ctx, http.MethodPatch, "/api/tasks/"+strconv.FormatInt(id, 10), nil, body, &p); err != nil {
		return domain.Task{}, err
	}
	return p.task(), nil
}

func (s *HTTPTaskService) UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Task, error) {
	body := map[string]string{"status": status.StorageLabel()}
	var p taskPayload
	if err := s.do(ctx, http.MethodPatch, "/api/tasks/"+strconv.FormatInt(id, 10)+"/status", nil, body, &p); err != nil {
		return domain.Task{}, err
	}
	return p.task(), nil
}

func (s *HTTPTaskService) Delete(ctx context.Context, id int64) error {
	return s.do(ctx, http.MethodDelete, "/api/tasks/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

type reorderBody struct {
	Status     string  `json:"status"`
	OrderedIDs []int64 `json:"orderedIds"`
}

func (s *HTTPTaskService) Reorder(ctx context.Context, column domain.Status, orderedIDs []int64) error {
	body := reorderBody{Status: column.StorageLabel(), OrderedIDs: orderedIDs}
	return s.do(ctx, http.MethodPost, "/api/tasks/reorder", nil, body, nil)
}

type moveBody struct {
	TaskID     int64   `json:"taskId"`
	Status     string  `json:"status"`
	OrderedIDs []int64 `json:"orderedIds"`
}

func (s *HTTPTaskService) Move(ctx context.Context, id int64, dest domain.Status, orderedIDs []int64) (domain.Task, error) {
	body := moveBody{TaskID: id, Status: dest.StorageLabel(), OrderedIDs: orderedIDs}
	var p taskPayload
	if err := s.do(ctx, http.MethodPost, "/api/tasks/move", nil, body, &p); err != nil {
		return domain.Task{}, err
	}
	return p.task(), nil
}

type statsPayload struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
	ByPriority map[string]int `json:"byPriority"`
}

func (s *HTTPTaskService) Stats(ctx context.Context, f domain.Filter) (domain.Stats, error) {
	var p statsPayload
	if err := s.do(ctx, http.MethodGet, "/api/tasks/stats", filterQuery(f), nil, &p); err != nil {
		return domain.Stats{}, err
	}
	st := domain.Stats{
		Total:      p.Total,
		ByStatus:   make(map[domain.Status]int, len(domain.Statuses)),
		ByPriority: make(map[domain.Priority]int, len(domain.Priorities)),
	}
	for _, v := range domain.Statuses {
		st.ByStatus[v] = 0
	}
	for _, v := range domain.Priorities {
		st.ByPriority[v] = 0
	}
	// Unknown labels fold into the default buckets, mirroring the mapper.
	for label, n := range p.ByStatus {
		st.ByStatus[domain.StatusFromStorage(label)] += n
	}
	for label, n := range p.ByPriority {
		st.ByPriority[domain.PriorityFromStorage(label)] += n
	}
	return st, nil
}
