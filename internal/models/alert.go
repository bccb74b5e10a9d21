package models

import (
	"math/big"
	"time"

	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// AlertType identifies the monitored condition
type AlertType string

const (
	AlertTypeEviction  AlertType = "eviction"
	AlertTypeNoGas     AlertType = "no_gas"
	AlertTypeLowGas    AlertType = "low_gas"
	AlertTypeBidSafety AlertType = "bid_safety"
)

// AlertTypesByPriority lists alert types in evaluation order, critical first
var AlertTypesByPriority = []AlertType{
	AlertTypeEviction,
	AlertTypeNoGas,
	AlertTypeLowGas,
	AlertTypeBidSafety,
}

// AlertStatus is the alert state machine position
type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "active"
	AlertStatusTriggered AlertStatus = "triggered"
	AlertStatusPaused    AlertStatus = "paused"
)

// AlertChannels flags the notification channels enabled for an alert
type AlertChannels struct {
	Email    bool `json:"email" db:"channel_email"`
	Slack    bool `json:"slack" db:"channel_slack"`
	Telegram bool `json:"telegram" db:"channel_telegram"`
	Webhook  bool `json:"webhook" db:"channel_webhook"`
}

// Enabled returns the channel names that are switched on
func (c AlertChannels) Enabled() []string {
	var out []string
	if c.Email {
		out = append(out, "email")
	}
	if c.Slack {
		out = append(out, "slack")
	}
	if c.Telegram {
		out = append(out, "telegram")
	}
	if c.Webhook {
		out = append(out, "webhook")
	}
	return out
}

// Alert is a user-scoped threshold rule evaluated against polled chain state.
// Value is the numeric threshold in wei for gas alerts; unused for eviction.
type Alert struct {
	ID              string        `json:"id" db:"id"`
	UserID          string        `json:"user_id" db:"user_id"`
	Type            AlertType     `json:"type" db:"type"`
	Value           *big.Int      `json:"value,omitempty" db:"value"`
	IsActive        bool          `json:"is_active" db:"is_active"`
	Status          AlertStatus   `json:"status" db:"status"`
	TriggeredCount  int           `json:"triggered_count" db:"triggered_count"`
	Channels        AlertChannels `json:"channels_enabled"`
	LastTriggeredAt *time.Time    `json:"last_triggered_at,omitempty" db:"last_triggered_at"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// Validate rejects malformed alerts at the entry point
func (a *Alert) Validate() error {
	switch a.Type {
	case AlertTypeEviction, AlertTypeNoGas, AlertTypeLowGas, AlertTypeBidSafety:
	default:
		return utils.NewAppError(utils.ErrCodeValidation, "unknown alert type", string(a.Type))
	}
	if a.UserID == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "alert user id is required")
	}
	if a.Type == AlertTypeLowGas && (a.Value == nil || a.Value.Sign() <= 0) {
		return utils.NewAppError(utils.ErrCodeValidation, "low gas alert requires a positive threshold")
	}
	return nil
}
