package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// Queue topics the core enqueues onto; consumption is a collaborator concern.
const (
	TopicAlerts          = "alerts"
	TopicAlertProcessing = "alert-processing"
	TopicNotifications   = "notifications"
)

// Queue is a named bounded in-process queue of domain events
type Queue struct {
	name   string
	items  chan *Event
	logger *logrus.Logger
}

// NewQueue creates a queue for one topic
func NewQueue(name string, size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{
		name:   name,
		items:  make(chan *Event, size),
		logger: utils.GetLogger(),
	}
}

// Name returns the queue topic
func (q *Queue) Name() string { return q.name }

// Len returns the number of queued events
func (q *Queue) Len() int { return len(q.items) }

// Enqueue adds an event without blocking; a full queue is an error,
// never a stall of the producing cycle.
func (q *Queue) Enqueue(event *Event) error {
	select {
	case q.items <- event:
		return nil
	default:
		return utils.NewAppError(utils.ErrCodeInternal, "queue full", q.name)
	}
}

// HandleEvent makes a queue subscribable on a dispatcher. A full queue
// drops the event rather than blocking the publisher.
func (q *Queue) HandleEvent(ctx context.Context, event *Event) {
	if err := q.Enqueue(event); err != nil {
		q.logger.WithFields(logrus.Fields{
			"queue":      q.name,
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Warn("Dropping event, queue full")
	}
}

// Dequeue blocks until an event is available or the context ends
func (q *Queue) Dequeue(ctx context.Context) (*Event, error) {
	select {
	case event := <-q.items:
		return event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
