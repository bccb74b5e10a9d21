package alerting

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/internal/events"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// Alert engine defaults
const (
	DefaultCooldown          = 5 * time.Minute
	DefaultMaxTriggeredCount = 1000
)

// AlertStore is the persistence surface the engine needs. Alert trigger
// state is updated as a single read-modify-write per firing.
type AlertStore interface {
	GetAlertsByUserAndType(ctx context.Context, userID string, alertType models.AlertType) ([]*models.Alert, error)
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	UpdateAlert(ctx context.Context, alert *models.Alert) error
}

// NotificationSink receives one message per enabled channel when an alert
// fires. Delivery is the sink's concern.
type NotificationSink interface {
	EnqueueAlertNotification(ctx context.Context, alert *models.Alert, channel string, message string) error
}

// EvaluationResult summarizes one evaluation pass
type EvaluationResult struct {
	Evaluated  int `json:"evaluated"`
	Triggered  int `json:"triggered"`
	Suppressed int `json:"suppressed"`
}

// Config controls engine behavior
type Config struct {
	Cooldown          time.Duration
	MaxTriggeredCount int
}

// Engine evaluates alert rules against polled state. Per (user, alert) the
// state machine is active -> triggered -> active, with paused excluded from
// evaluation entirely.
type Engine struct {
	store     AlertStore
	publisher events.Publisher
	sink      NotificationSink
	cfg       Config
	logger    *logrus.Logger

	// rearm tracks cooldown windows; expiry re-arms the alert.
	rearm *ttlcache.Cache[string, string]
	now   func() time.Time
}

// NewEngine creates an alert engine. sink may be nil when notifications
// are disabled.
func NewEngine(store AlertStore, publisher events.Publisher, sink NotificationSink, cfg Config) *Engine {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.MaxTriggeredCount <= 0 {
		cfg.MaxTriggeredCount = DefaultMaxTriggeredCount
	}

	e := &Engine{
		store:     store,
		publisher: publisher,
		sink:      sink,
		cfg:       cfg,
		logger:    utils.GetLogger(),
		now:       time.Now,
		rearm: ttlcache.New[string, string](
			ttlcache.WithTTL[string, string](cfg.Cooldown),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}

	e.rearm.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, string]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		e.rearmAlert(item.Key())
	})

	return e
}

// Start launches the background re-arm sweep
func (e *Engine) Start() {
	go e.rearm.Start()
}

// Stop halts the background sweep
func (e *Engine) Stop() {
	e.rearm.Stop()
}

// Evaluate runs every condition against the matching alerts. Cooldown and
// triggered-count suppression are no-ops, observable only as unchanged
// alert state.
func (e *Engine) Evaluate(ctx context.Context, conditions []Condition) (*EvaluationResult, error) {
	result := &EvaluationResult{}

	for _, cond := range conditions {
		alerts, err := e.store.GetAlertsByUserAndType(ctx, cond.UserID, cond.Type)
		if err != nil {
			e.publishMonitoringError(ctx, cond, err)
			continue
		}

		for _, alert := range alerts {
			result.Evaluated++

			triggered, err := e.evaluateOne(ctx, alert, cond)
			if err != nil {
				e.publishMonitoringError(ctx, cond, err)
				continue
			}
			if triggered {
				result.Triggered++
			} else {
				result.Suppressed++
			}
		}
	}

	return result, nil
}

// evaluateOne applies the state machine to a single alert
func (e *Engine) evaluateOne(ctx context.Context, alert *models.Alert, cond Condition) (bool, error) {
	if !alert.IsActive || alert.Status == models.AlertStatusPaused {
		return false, nil
	}
	if !cond.matches(alert) {
		return false, nil
	}

	// The cooldown gates retriggering even if the background re-arm sweep
	// has not flipped the status back yet.
	now := e.now()
	if alert.LastTriggeredAt != nil && now.Sub(*alert.LastTriggeredAt) <= e.cfg.Cooldown {
		return false, nil
	}
	if alert.TriggeredCount >= e.cfg.MaxTriggeredCount {
		return false, nil
	}

	alert.TriggeredCount++
	alert.LastTriggeredAt = &now
	alert.Status = models.AlertStatusTriggered
	alert.UpdatedAt = now

	if err := e.store.UpdateAlert(ctx, alert); err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "failed to persist alert trigger", err.Error())
	}

	e.rearm.Set(alert.ID, string(alert.Type), ttlcache.DefaultTTL)

	e.publishTriggered(ctx, alert, cond)
	e.notifyChannels(ctx, alert, cond)

	e.logger.WithFields(logrus.Fields{
		"alert_id":        alert.ID,
		"alert_type":      alert.Type,
		"user_id":         alert.UserID,
		"triggered_count": alert.TriggeredCount,
	}).Info("Alert triggered")

	return true, nil
}

// rearmAlert transitions triggered -> active once the cooldown elapses
func (e *Engine) rearmAlert(alertID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alert, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"alert_id": alertID,
			"error":    err,
		}).Warn("Failed to load alert for re-arm")
		return
	}
	if alert.Status != models.AlertStatusTriggered {
		return
	}

	alert.Status = models.AlertStatusActive
	alert.UpdatedAt = e.now()
	if err := e.store.UpdateAlert(ctx, alert); err != nil {
		e.logger.WithFields(logrus.Fields{
			"alert_id": alertID,
			"error":    err,
		}).Warn("Failed to re-arm alert")
		return
	}

	e.logger.WithField("alert_id", alertID).Debug("Alert re-armed after cooldown")
}

func (e *Engine) publishTriggered(ctx context.Context, alert *models.Alert, cond Condition) {
	if e.publisher == nil {
		return
	}
	event := events.NewEvent(events.AlertTriggered)
	event.UserID = alert.UserID
	event.AlertID = alert.ID
	event.AlertType = alert.Type
	event.Payload["message"] = cond.Message
	event.Payload["triggered_count"] = alert.TriggeredCount
	if cond.ContractAddress != (common.Address{}) {
		event.Payload["contract_address"] = cond.ContractAddress.Hex()
	}
	if cond.ObservedValue != nil {
		event.Payload["observed_value"] = cond.ObservedValue.String()
	}
	e.publisher.Publish(ctx, event)
}

func (e *Engine) publishMonitoringError(ctx context.Context, cond Condition, err error) {
	e.logger.WithFields(logrus.Fields{
		"user_id":    cond.UserID,
		"alert_type": cond.Type,
		"error":      err,
	}).Error("Alert evaluation error")

	if e.publisher == nil {
		return
	}
	event := events.NewEvent(events.AlertMonitoringError)
	event.UserID = cond.UserID
	event.AlertType = cond.Type
	event.Payload["error"] = err.Error()
	e.publisher.Publish(ctx, event)
}

// notifyChannels emits one message per enabled channel
func (e *Engine) notifyChannels(ctx context.Context, alert *models.Alert, cond Condition) {
	if e.sink == nil {
		return
	}
	for _, channel := range alert.Channels.Enabled() {
		if err := e.sink.EnqueueAlertNotification(ctx, alert, channel, cond.Message); err != nil {
			e.logger.WithFields(logrus.Fields{
				"alert_id": alert.ID,
				"channel":  channel,
				"error":    err,
			}).Warn("Failed to enqueue alert notification")
		}
	}
}
