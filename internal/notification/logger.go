package notification

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// LogSender writes notifications to the application log. It backs channels
// that have no outbound transport configured, currently email.
type LogSender struct {
	channel string
	logger  *logrus.Logger
}

// NewLogSender creates a log sender for one channel
func NewLogSender(channel string) *LogSender {
	return &LogSender{
		channel: channel,
		logger:  utils.GetLogger(),
	}
}

// Channel returns the channel name this sender serves
func (ls *LogSender) Channel() string { return ls.channel }

// Send logs the notification and always succeeds
func (ls *LogSender) Send(ctx context.Context, alert *models.Alert, message string) error {
	ls.logger.WithFields(logrus.Fields{
		"channel":    ls.channel,
		"alert_id":   alert.ID,
		"user_id":    alert.UserID,
		"alert_type": alert.Type,
	}).Info(message)
	return nil
}
