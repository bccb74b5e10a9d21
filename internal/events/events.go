package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// Type identifies a domain event
type Type string

const (
	AlertTriggered       Type = "alert.triggered"
	AlertCreated         Type = "alert.created"
	AlertUpdated         Type = "alert.updated"
	AlertDeleted         Type = "alert.deleted"
	AlertMonitoringError Type = "alert.monitoring.error"
)

// Event is a typed domain event with a fixed payload shape
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	UserID     string                 `json:"user_id,omitempty"`
	AlertID    string                 `json:"alert_id,omitempty"`
	AlertType  models.AlertType       `json:"alert_type,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewEvent builds an event with a fresh id and timestamp
func NewEvent(t Type) *Event {
	return &Event{
		ID:         utils.GenerateID(),
		Type:       t,
		Payload:    make(map[string]interface{}),
		OccurredAt: time.Now(),
	}
}

// Handler consumes domain events
type Handler interface {
	HandleEvent(ctx context.Context, event *Event)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, event *Event)

func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) { f(ctx, event) }

// Publisher delivers domain events to registered handlers
type Publisher interface {
	Publish(ctx context.Context, event *Event)
}

// Dispatcher fans events out to handlers registered per type.
// Delivery is synchronous and in registration order; there is no
// implicit global bus.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	logger   *logrus.Logger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Type][]Handler),
		logger:   utils.GetLogger(),
	}
}

// Subscribe registers a handler for one event type
func (d *Dispatcher) Subscribe(t Type, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], h)
}

// Publish delivers the event to every handler registered for its type
func (d *Dispatcher) Publish(ctx context.Context, event *Event) {
	d.mu.RLock()
	handlers := d.handlers[event.Type]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		d.logger.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Debug("No handlers registered for event")
		return
	}

	for _, h := range handlers {
		h.HandleEvent(ctx, event)
	}
}
