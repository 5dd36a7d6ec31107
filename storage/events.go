package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
)

// TaskChange describes a committed mutation, published for downstream
// console features (dashboards, activity feeds). Delivery is best effort:
// a failed publish is logged, never surfaced to the caller.
type TaskChange struct {
	ChangeID  string `json:"changeId"`
	Type      string `json:"type"`
	TaskID    int64  `json:"taskId,omitempty"`
	Status    string `json:"status,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Change event types.
const (
	ChangeCreated   = "task.created"
	ChangeUpdated   = "task.updated"
	ChangeDeleted   = "task.deleted"
	ChangeReordered = "column.reordered"
)

type changeQueue interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Publisher pushes TaskChange events to a storage queue from a small worker
// pool so request handlers never wait on the queue round trip. When the
// buffer is saturated the event is dropped with a warning.
type Publisher struct {
	queue   changeQueue
	logger  *log.Logger
	timeout time.Duration

	jobs chan TaskChange
	wg   sync.WaitGroup

	closeOnce sync.Once
}

// NewQueueClient creates the azqueue client used by a Publisher.
func NewQueueClient(connStr, queueName string) (*azqueue.QueueClient, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	return azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
}

// NewPublisher starts workers goroutines draining a buffered channel of
// events into the queue.
func NewPublisher(queue changeQueue, logger *log.Logger, workers, buffer int) *Publisher {
	if queue == nil {
		panic("storage.NewPublisher: queue is nil")
	}
	if logger == nil {
		panic("storage.NewPublisher: logger is nil")
	}
	if workers <= 0 {
		workers = 2
	}
	if buffer <= 0 {
		buffer = 256
	}
	p := &Publisher{
		queue:   queue,
		logger:  logger,
		timeout: 30 * time.Second,
		jobs:    make(chan TaskChange, buffer),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Publish hands ev to the worker pool without blocking.
func (p *Publisher) Publish(ev TaskChange) {
	select {
	case p.jobs <- ev:
	default:
		p.logger.WithFields(log.Fields{
			"change_id": ev.ChangeID,
			"type":      ev.Type,
		}).Warn("change event buffer saturated; dropping event")
	}
}

// Close stops the workers after draining buffered events.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for ev := range p.jobs {
		data, err := json.Marshal(ev)
		if err != nil {
			p.logger.WithField("change_id", ev.ChangeID).Errorf("marshal change event: %v", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		_, err = p.queue.EnqueueMessage(ctx, string(data), nil)
		cancel()
		if err != nil {
			p.logger.WithFields(log.Fields{
				"change_id": ev.ChangeID,
				"type":      ev.Type,
			}).Errorf("enqueue change event: %v", err)
		}
	}
}
