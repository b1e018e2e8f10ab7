// Package notification delivers monitor alerts to operators. Channels
// share one interface so the sweep loop does not care whether an alert
// lands in a webhook, Slack, or just the logs.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/self-labs/hass-stack/monitor/internal/models"
)

// Channel delivers one alert.
type Channel interface {
	Send(ctx context.Context, alert *models.Alert) error
	Type() string
}

// WebhookChannel posts alerts as JSON to an HTTP endpoint.
type WebhookChannel struct {
	URL     string
	Timeout time.Duration
	client  *http.Client
}

// NewWebhookChannel creates a webhook notification channel.
func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{
		URL:     url,
		Timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (w *WebhookChannel) Type() string {
	return "webhook"
}

func (w *WebhookChannel) Send(ctx context.Context, alert *models.Alert) error {
	payload := map[string]interface{}{
		"alert_id":  alert.ID,
		"level":     alert.Level,
		"source":    alert.Source,
		"metric":    alert.Metric,
		"message":   alert.Message,
		"value":     alert.Value,
		"threshold": alert.Threshold,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "HASS-Monitor/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// SlackChannel posts alerts to a Slack incoming webhook.
type SlackChannel struct {
	WebhookURL string
	Timeout    time.Duration
	client     *http.Client
}

// NewSlackChannel creates a Slack notification channel.
func NewSlackChannel(webhookURL string, timeout time.Duration) *SlackChannel {
	return &SlackChannel{
		WebhookURL: webhookURL,
		Timeout:    timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *SlackChannel) Type() string {
	return "slack"
}

func (s *SlackChannel) Send(ctx context.Context, alert *models.Alert) error {
	payload := map[string]interface{}{
		"text": fmt.Sprintf("Alert: %s", alert.Message),
		"attachments": []map[string]interface{}{
			{
				"color": s.levelColor(alert.Level),
				"fields": []map[string]interface{}{
					{
						"title": "Source",
						"value": alert.Source,
						"short": true,
					},
					{
						"title": "Level",
						"value": string(alert.Level),
						"short": true,
					},
					{
						"title": "Metric",
						"value": alert.Metric,
						"short": true,
					},
					{
						"title": "Value",
						"value": fmt.Sprintf("%.4g (threshold %.4g)", alert.Value, alert.Threshold),
						"short": true,
					},
				},
				"footer": "HASS Monitor",
				"ts":     time.Now().Unix(),
			},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func (s *SlackChannel) levelColor(level models.AlertLevel) string {
	switch level {
	case models.LevelCritical:
		return "#8B0000"
	case models.LevelError:
		return "#FF0000"
	case models.LevelWarning:
		return "#FFA500"
	case models.LevelInfo:
		return "#0000FF"
	default:
		return "#808080"
	}
}

// LogChannel writes alerts to logs.
type LogChannel struct {
	logger func(format string, v ...interface{})
}

// NewLogChannel creates a log-based notification channel.
func NewLogChannel(logger func(format string, v ...interface{})) *LogChannel {
	return &LogChannel{logger: logger}
}

func (l *LogChannel) Type() string {
	return "log"
}

func (l *LogChannel) Send(ctx context.Context, alert *models.Alert) error {
	l.logger("ALERT: %s (source=%s, metric=%s, level=%s, value=%.4g, threshold=%.4g)",
		alert.Message, alert.Source, alert.Metric, alert.Level, alert.Value, alert.Threshold)
	return nil
}

// MultiChannel fans one alert out to several channels.
type MultiChannel struct {
	channels []Channel
}

// NewMultiChannel creates a notification channel that fans out to multiple channels.
func NewMultiChannel(channels ...Channel) *MultiChannel {
	return &MultiChannel{channels: channels}
}

func (m *MultiChannel) Type() string {
	return "multi"
}

func (m *MultiChannel) Send(ctx context.Context, alert *models.Alert) error {
	var lastErr error
	successCount := 0

	for _, ch := range m.channels {
		if err := ch.Send(ctx, alert); err != nil {
			lastErr = fmt.Errorf("%s channel failed: %w", ch.Type(), err)
		} else {
			successCount++
		}
	}

	if successCount == 0 && len(m.channels) > 0 {
		return fmt.Errorf("all notification channels failed: %w", lastErr)
	}

	return nil
}
