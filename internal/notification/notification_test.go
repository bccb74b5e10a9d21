package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylusops/stylus-cache-monitor/internal/config"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
)

func testAlert() *models.Alert {
	return &models.Alert{
		ID:     "a1",
		UserID: "u1",
		Type:   models.AlertTypeEviction,
		Status: models.AlertStatusTriggered,
	}
}

func TestManagerDeliversWebhookNotification(t *testing.T) {
	var received atomic.Int64
	var lastPayload webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastPayload))
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := NewManager(config.NotificationsConfig{
		Enabled:    true,
		Workers:    1,
		Timeout:    time.Second,
		WebhookURL: server.URL,
	}, nil)
	m.Start()
	defer m.Stop()

	err := m.EnqueueAlertNotification(context.Background(), testAlert(), ChannelWebhook, "contract evicted")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return m.GetStats().TotalSent == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(1), received.Load())
	assert.Equal(t, "a1", lastPayload.AlertID)
	assert.Equal(t, "contract evicted", lastPayload.Message)
	assert.Equal(t, string(models.AlertTypeEviction), lastPayload.AlertType)
}

func TestManagerRetriesFailedDelivery(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m := NewManager(config.NotificationsConfig{
		Enabled:    true,
		Workers:    1,
		Timeout:    time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		WebhookURL: server.URL,
	}, nil)
	m.Start()
	defer m.Stop()

	err := m.EnqueueAlertNotification(context.Background(), testAlert(), ChannelWebhook, "msg")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return m.GetStats().TotalFailed == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(3), attempts.Load())
}

// The final retry must get a full send timeout even when the inter-attempt
// delays add up to more than the send timeouts themselves.
func TestManagerDeliveryBudgetCoversRetryDelays(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := NewManager(config.NotificationsConfig{
		Enabled:    true,
		Workers:    1,
		Timeout:    40 * time.Millisecond,
		MaxRetries: 2,
		RetryDelay: 60 * time.Millisecond,
		WebhookURL: server.URL,
	}, nil)
	m.Start()
	defer m.Stop()

	err := m.EnqueueAlertNotification(context.Background(), testAlert(), ChannelWebhook, "msg")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return m.GetStats().TotalSent == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(3), attempts.Load())
}

func TestManagerDisabledIsNoop(t *testing.T) {
	m := NewManager(config.NotificationsConfig{Enabled: false}, nil)

	err := m.EnqueueAlertNotification(context.Background(), testAlert(), ChannelWebhook, "msg")
	require.NoError(t, err)
	assert.Zero(t, m.GetStats().TotalEnqueued)
}

func TestManagerQueueFull(t *testing.T) {
	m := NewManager(config.NotificationsConfig{Enabled: true, QueueSize: 1}, nil)
	// Worker not started, so the single slot fills immediately.
	require.NoError(t, m.EnqueueAlertNotification(context.Background(), testAlert(), ChannelWebhook, "one"))
	assert.Error(t, m.EnqueueAlertNotification(context.Background(), testAlert(), ChannelWebhook, "two"))
}

func TestLogSenderAlwaysSucceeds(t *testing.T) {
	ls := NewLogSender(ChannelEmail)
	assert.Equal(t, ChannelEmail, ls.Channel())
	assert.NoError(t, ls.Send(context.Background(), testAlert(), "msg"))
}
