package alarms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/savegress/intellimaint/pkg/models"
)

// SlackConfig configures the Slack notifier.
type SlackConfig struct {
	WebhookURL string
	Channel    string
}

// SlackNotifier posts fired alarms to a Slack incoming webhook,
// adapted from the teacher's SlackNotifier.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack notifier.
func NewSlackNotifier(cfg SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *SlackNotifier) Name() string { return "slack" }

// Notify posts alarm to Slack; a no-op when no webhook is configured.
func (n *SlackNotifier) Notify(alarm models.AlarmRecord) error {
	if n.webhookURL == "" {
		return nil
	}

	payload := map[string]interface{}{
		"channel": n.channel,
		"attachments": []map[string]interface{}{
			{
				"color": severityColor(alarm.Severity),
				"title": fmt.Sprintf("[sev %d] %s", alarm.Severity, alarm.Code),
				"text":  alarm.Message,
				"fields": []map[string]interface{}{
					{"title": "Device", "value": alarm.DeviceID, "short": true},
					{"title": "Tag", "value": alarm.TagID, "short": true},
					{"title": "Rule", "value": alarm.RuleID, "short": true},
				},
				"footer": "IntelliMaint Alarm",
				"ts":     alarm.Ts / 1000,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

func severityColor(severity int) string {
	switch {
	case severity >= 4:
		return "#FF0000"
	case severity == 3:
		return "#FF6600"
	case severity == 2:
		return "#FFCC00"
	default:
		return "#36A64F"
	}
}

// WebhookConfig configures the generic webhook notifier.
type WebhookConfig struct {
	URL     string
	Headers map[string]string
}

// WebhookNotifier posts a JSON envelope to an arbitrary HTTP endpoint.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{url: cfg.URL, headers: cfg.Headers, client: &http.Client{Timeout: 10 * time.Second}}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

// webhookPayload is the envelope posted to the configured URL.
type webhookPayload struct {
	EventType string             `json:"eventType"`
	Alarm     models.AlarmRecord `json:"alarm"`
	SentAtMs  int64              `json:"sentAtMs"`
}

// Notify posts alarm to the webhook URL; a no-op when unconfigured.
func (n *WebhookNotifier) Notify(alarm models.AlarmRecord) error {
	if n.url == "" {
		return nil
	}

	body, err := json.Marshal(webhookPayload{EventType: "alarm", Alarm: alarm, SentAtMs: alarm.Ts})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// ConsoleNotifier logs fired alarms, useful for local development.
type ConsoleNotifier struct{}

// NewConsoleNotifier creates a console notifier.
func NewConsoleNotifier() *ConsoleNotifier { return &ConsoleNotifier{} }

func (n *ConsoleNotifier) Name() string { return "console" }

func (n *ConsoleNotifier) Notify(alarm models.AlarmRecord) error {
	log.Printf("[ALARM] sev=%d device=%s tag=%s rule=%s msg=%s", alarm.Severity, alarm.DeviceID, alarm.TagID, alarm.RuleID, alarm.Message)
	return nil
}
