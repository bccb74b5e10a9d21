package notification

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/internal/batch"
	"github.com/stylusops/stylus-cache-monitor/internal/config"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// Sender delivers one alert message over one channel
type Sender interface {
	Channel() string
	Send(ctx context.Context, alert *models.Alert, message string) error
}

// Recorder observes delivery outcomes; *metrics.PrometheusMetrics satisfies it
type Recorder interface {
	RecordNotificationSent(channel string)
	RecordNotificationFailure(channel string)
}

// Stats provides notification statistics
type Stats struct {
	TotalEnqueued uint64     `json:"total_enqueued"`
	TotalSent     uint64     `json:"total_sent"`
	TotalFailed   uint64     `json:"total_failed"`
	QueueLength   int        `json:"queue_length"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorTime *time.Time `json:"last_error_time,omitempty"`
}

type queueItem struct {
	alert   *models.Alert
	channel string
	message string
}

// Manager fans alert notifications out to channel senders through a
// bounded queue. Enqueueing never blocks the alert engine; delivery
// retries are the worker's concern.
type Manager struct {
	cfg      config.NotificationsConfig
	senders  map[string]Sender
	recorder Recorder
	logger   *logrus.Logger

	queue chan *queueItem
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	mu    sync.Mutex
	stats Stats
}

// NewManager creates a notification manager with senders derived from the
// configuration. Email has no transport here and falls back to the log
// sender. recorder may be nil.
func NewManager(cfg config.NotificationsConfig, recorder Recorder) *Manager {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	m := &Manager{
		cfg:      cfg,
		senders:  make(map[string]Sender),
		recorder: recorder,
		logger:   utils.GetLogger(),
		queue:    make(chan *queueItem, cfg.QueueSize),
		stop:     make(chan struct{}),
	}

	if cfg.WebhookURL != "" {
		m.Register(NewWebhookSender(ChannelWebhook, cfg.WebhookURL, cfg.Timeout))
	}
	if cfg.SlackURL != "" {
		m.Register(NewSlackSender(cfg.SlackURL, cfg.Timeout))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		m.Register(NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.Timeout))
	}
	m.Register(NewLogSender(ChannelEmail))

	return m
}

// Register adds or replaces the sender for one channel
func (m *Manager) Register(sender Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.senders[sender.Channel()] = sender
}

// Start launches the delivery workers
func (m *Manager) Start() {
	for i := 0; i < m.cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
}

// Stop halts the workers. Queued notifications that have not started
// delivery are dropped.
func (m *Manager) Stop() {
	m.once.Do(func() { close(m.stop) })
	m.wg.Wait()
}

// EnqueueAlertNotification queues one message for delivery. A full queue
// is an error so the caller's cycle never stalls on delivery.
func (m *Manager) EnqueueAlertNotification(ctx context.Context, alert *models.Alert, channel string, message string) error {
	if !m.cfg.Enabled {
		return nil
	}

	item := &queueItem{alert: alert, channel: channel, message: message}
	select {
	case m.queue <- item:
		m.mu.Lock()
		m.stats.TotalEnqueued++
		m.mu.Unlock()
		return nil
	default:
		return utils.NewAppError(utils.ErrCodeInternal, "notification queue full", channel)
	}
}

// GetStats returns a snapshot of delivery statistics
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats
	stats.QueueLength = len(m.queue)
	return stats
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case item := <-m.queue:
			m.deliver(item)
		}
	}
}

func (m *Manager) deliver(item *queueItem) {
	m.mu.Lock()
	sender, ok := m.senders[item.channel]
	m.mu.Unlock()

	if !ok {
		m.logger.WithFields(logrus.Fields{
			"channel":  item.channel,
			"alert_id": item.alert.ID,
		}).Warn("No sender registered for channel")
		m.recordFailure(item.channel, utils.NewAppError(utils.ErrCodeConfiguration, "no sender for channel", item.channel))
		return
	}

	// Budget for every attempt plus the delay between attempts, so the
	// last retry gets a full send timeout instead of whatever is left.
	budget := m.cfg.Timeout*time.Duration(m.cfg.MaxRetries+1) +
		m.cfg.RetryDelay*time.Duration(m.cfg.MaxRetries)
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	task := batch.RetryTask{MaxRetries: m.cfg.MaxRetries, Delay: m.cfg.RetryDelay}
	_, err := task.Run(ctx, func(attemptCtx context.Context, attempt int) error {
		sendCtx, sendCancel := context.WithTimeout(attemptCtx, m.cfg.Timeout)
		defer sendCancel()
		return sender.Send(sendCtx, item.alert, item.message)
	})
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"channel":  item.channel,
			"alert_id": item.alert.ID,
			"error":    err,
		}).Error("Notification delivery failed")
		m.recordFailure(item.channel, err)
		return
	}

	m.mu.Lock()
	m.stats.TotalSent++
	m.mu.Unlock()
	if m.recorder != nil {
		m.recorder.RecordNotificationSent(item.channel)
	}
}

func (m *Manager) recordFailure(channel string, err error) {
	m.mu.Lock()
	m.stats.TotalFailed++
	m.stats.LastError = err.Error()
	now := time.Now()
	m.stats.LastErrorTime = &now
	m.mu.Unlock()
	if m.recorder != nil {
		m.recorder.RecordNotificationFailure(channel)
	}
}
