package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	q := NewQueue(TopicAlerts, 4)

	event := NewEvent(AlertTriggered)
	require.NoError(t, q.Enqueue(event))
	assert.Equal(t, 1, q.Len())

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, 0, q.Len())
}

func TestQueueFullDropsInsteadOfBlocking(t *testing.T) {
	q := NewQueue(TopicNotifications, 1)

	require.NoError(t, q.Enqueue(NewEvent(AlertCreated)))
	assert.Error(t, q.Enqueue(NewEvent(AlertCreated)))

	// HandleEvent must never block the publisher either.
	done := make(chan struct{})
	go func() {
		q.HandleEvent(context.Background(), NewEvent(AlertCreated))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleEvent blocked on a full queue")
	}
}

func TestQueueDequeueHonorsContext(t *testing.T) {
	q := NewQueue(TopicAlertProcessing, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcherDeliversToQueueSubscriber(t *testing.T) {
	d := NewDispatcher()
	q := NewQueue(TopicAlerts, 4)
	d.Subscribe(AlertTriggered, q)

	d.Publish(context.Background(), NewEvent(AlertTriggered))
	d.Publish(context.Background(), NewEvent(AlertDeleted))

	assert.Equal(t, 1, q.Len())
}
