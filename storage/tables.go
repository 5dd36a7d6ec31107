package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"opsboard/domain"
)

// All board tasks live in a single partition; the row key is the task id.
const taskPartition = "tasks"

// Tables is the durable Backend backed by an Azure Storage table.
type Tables struct {
	table *aztables.Client
}

// NewTables creates a table-backed Backend from the given connection string.
func NewTables(connStr, tableName string) (*Tables, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Tables{table: svc.NewClient(tableName)}, nil
}

type taskEntity struct {
	aztables.Entity
	Title          string   `json:"Title"`
	Description    string   `json:"Description,omitempty"`
	Status         string   `json:"Status"`
	Priority       string   `json:"Priority"`
	ProjectID      string   `json:"ProjectId,omitempty"`
	AssignedTo     string   `json:"AssignedTo,omitempty"`
	DueDate        string   `json:"DueDate,omitempty"`
	CreatedAt      string   `json:"CreatedAt"`
	UpdatedAt      string   `json:"UpdatedAt"`
	EstimatedHours *float64 `json:"EstimatedHours,omitempty"`
	ActualHours    *float64 `json:"ActualHours,omitempty"`
	Tags           string   `json:"Tags,omitempty"`
	OrderPosition  *int     `json:"OrderPosition,omitempty"`
	Subtasks       string   `json:"Subtasks,omitempty"`
}

func encodeTaskEntity(rec TaskRecord) ([]byte, error) {
	ent := taskEntity{
		Entity: aztables.Entity{
			PartitionKey: taskPartition,
			RowKey:       strconv.FormatInt(rec.ID, 10),
		},
		Title:          rec.Title,
		Description:    rec.Description,
		Status:         rec.Status,
		Priority:       rec.Priority,
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		EstimatedHours: rec.EstimatedHours,
		ActualHours:    rec.ActualHours,
		OrderPosition:  rec.OrderPosition,
	}
	if rec.ProjectID != nil {
		ent.ProjectID = strconv.FormatInt(*rec.ProjectID, 10)
	}
	if rec.AssignedTo != nil {
		ent.AssignedTo = strconv.FormatInt(*rec.AssignedTo, 10)
	}
	if rec.DueDate != nil {
		ent.DueDate = rec.DueDate.UTC().Format(time.RFC3339Nano)
	}
	if len(rec.Tags) > 0 {
		tags, err := json.Marshal(rec.Tags)
		if err != nil {
			return nil, err
		}
		ent.Tags = string(tags)
	}
	if len(rec.Subtasks) > 0 {
		ent.Subtasks = string(rec.Subtasks)
	}
	return json.Marshal(ent)
}

func decodeTaskEntity(data []byte) (TaskRecord, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return TaskRecord{}, err
	}
	id, err := strconv.ParseInt(ent.RowKey, 10, 64)
	if err != nil {
		return TaskRecord{}, err
	}
	rec := TaskRecord{
		ID:             id,
		Title:          ent.Title,
		Description:    ent.Description,
		Status:         ent.Status,
		Priority:       ent.Priority,
		EstimatedHours: ent.EstimatedHours,
		ActualHours:    ent.ActualHours,
		OrderPosition:  ent.OrderPosition,
	}
	if ent.ProjectID != "" {
		v, err := strconv.ParseInt(ent.ProjectID, 10, 64)
		if err != nil {
			return TaskRecord{}, err
		}
		rec.ProjectID = &v
	}
	if ent.AssignedTo != "" {
		v, err := strconv.ParseInt(ent.AssignedTo, 10, 64)
		if err != nil {
			return TaskRecord{}, err
		}
		rec.AssignedTo = &v
	}
	if ent.DueDate != "" {
		t, err := time.Parse(time.RFC3339Nano, ent.DueDate)
		if err != nil {
			return TaskRecord{}, err
		}
		rec.DueDate = &t
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, ent.CreatedAt); err != nil {
		return TaskRecord{}, err
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, ent.UpdatedAt); err != nil {
		return TaskRecord{}, err
	}
	if ent.Tags != "" {
		if err := json.Unmarshal([]byte(ent.Tags), &rec.Tags); err != nil {
			return TaskRecord{}, err
		}
	}
	if ent.Subtasks != "" {
		rec.Subtasks = []byte(ent.Subtasks)
	}
	return rec, nil
}

func isTableNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

func (t *Tables) ListTasks(ctx context.Context, f domain.Filter) ([]TaskRecord, error) {
	filter := "PartitionKey eq '" + taskPartition + "'"
	pager := t.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	recs := []TaskRecord{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			rec, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			if f.Matches(rec.Task()) {
				recs = append(recs, rec)
			}
		}
	}
	sortNewestFirst(recs)
	return page(recs, f.Limit, f.Offset), nil
}

func (t *Tables) GetTask(ctx context.Context, id int64) (TaskRecord, error) {
	resp, err := t.table.GetEntity(ctx, taskPartition, strconv.FormatInt(id, 10), nil)
	if err != nil {
		if isTableNotFound(err) {
			return TaskRecord{}, ErrNotFound
		}
		return TaskRecord{}, err
	}
	return decodeTaskEntity(resp.Value)
}

func (t *Tables) InsertTask(ctx context.Context, rec TaskRecord) error {
	data, err := encodeTaskEntity(rec)
	if err != nil {
		return err
	}
	_, err = t.table.AddEntity(ctx, data, nil)
	return err
}

func (t *Tables) UpdateTask(ctx context.Context, rec TaskRecord) error {
	data, err := encodeTaskEntity(rec)
	if err != nil {
		return err
	}
	mode := aztables.UpdateModeReplace
	_, err = t.table.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{UpdateMode: mode})
	if err != nil && isTableNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (t *Tables) DeleteTask(ctx context.Context, id int64) error {
	_, err := t.table.DeleteEntity(ctx, taskPartition, strconv.FormatInt(id, 10), nil)
	if err != nil && isTableNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (t *Tables) ReorderTasks(ctx context.Context, statusLabel string, ids []int64) error {
	now := nowUTC()
	for i, id := range ids {
		rec, err := t.GetTask(ctx, id)
		if err != nil {
			return err
		}
		pos := i
		rec.Status = statusLabel
		rec.OrderPosition = &pos
		rec.UpdatedAt = now
		if err := t.UpdateTask(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
