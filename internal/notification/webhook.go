package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// Channel names recognized by the manager
const (
	ChannelEmail    = "email"
	ChannelSlack    = "slack"
	ChannelTelegram = "telegram"
	ChannelWebhook  = "webhook"
)

// webhookPayload is the generic JSON body posted to webhook endpoints
type webhookPayload struct {
	AlertID        string    `json:"alert_id"`
	UserID         string    `json:"user_id"`
	AlertType      string    `json:"alert_type"`
	Message        string    `json:"message"`
	TriggeredCount int       `json:"triggered_count"`
	Timestamp      time.Time `json:"timestamp"`
	Source         string    `json:"source"`
}

// WebhookSender posts alert payloads to a fixed HTTP endpoint
type WebhookSender struct {
	channel    string
	url        string
	httpClient *http.Client
}

// NewWebhookSender creates a webhook sender for one channel and endpoint
func NewWebhookSender(channel, endpoint string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		channel: channel,
		url:     endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Channel returns the channel name this sender serves
func (ws *WebhookSender) Channel() string { return ws.channel }

// Send posts the alert as JSON. Non-2xx responses are errors so the
// delivery worker retries them.
func (ws *WebhookSender) Send(ctx context.Context, alert *models.Alert, message string) error {
	payload := webhookPayload{
		AlertID:        alert.ID,
		UserID:         alert.UserID,
		AlertType:      string(alert.Type),
		Message:        message,
		TriggeredCount: alert.TriggeredCount,
		Timestamp:      time.Now(),
		Source:         "stylus-cache-monitor",
	}
	return ws.post(ctx, payload)
}

func (ws *WebhookSender) post(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "failed to marshal webhook payload", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(body))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "failed to create webhook request", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "stylus-cache-monitor/1.0")
	req.Header.Set("X-Request-ID", utils.GenerateID())

	resp, err := ws.httpClient.Do(req)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeExternal, "failed to send webhook", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return utils.NewAppError(utils.ErrCodeExternal, "webhook returned non-success status",
			fmt.Sprintf("status: %d, body: %s", resp.StatusCode, string(snippet)))
	}
	return nil
}

// SlackSender posts alert messages to a Slack incoming webhook
type SlackSender struct {
	webhook *WebhookSender
}

// NewSlackSender creates a Slack sender for an incoming webhook URL
func NewSlackSender(webhookURL string, timeout time.Duration) *SlackSender {
	return &SlackSender{webhook: NewWebhookSender(ChannelSlack, webhookURL, timeout)}
}

func (ss *SlackSender) Channel() string { return ChannelSlack }

// Send posts the Slack text payload expected by incoming webhooks
func (ss *SlackSender) Send(ctx context.Context, alert *models.Alert, message string) error {
	payload := map[string]string{
		"text": fmt.Sprintf("[%s] %s", alert.Type, message),
	}
	return ss.webhook.post(ctx, payload)
}

// TelegramSender delivers alert messages through the Telegram bot API
type TelegramSender struct {
	chatID  string
	webhook *WebhookSender
}

// NewTelegramSender creates a Telegram sender for one bot and chat
func NewTelegramSender(botToken, chatID string, timeout time.Duration) *TelegramSender {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", url.PathEscape(botToken))
	return &TelegramSender{
		chatID:  chatID,
		webhook: NewWebhookSender(ChannelTelegram, endpoint, timeout),
	}
}

func (ts *TelegramSender) Channel() string { return ChannelTelegram }

// Send posts a sendMessage request for the configured chat
func (ts *TelegramSender) Send(ctx context.Context, alert *models.Alert, message string) error {
	payload := map[string]string{
		"chat_id": ts.chatID,
		"text":    fmt.Sprintf("[%s] %s", alert.Type, message),
	}
	return ts.webhook.post(ctx, payload)
}
