// Package webhook delivers alert notifications to a configured endpoint
// when a watch rule matches a report.
//
// Deliveries run with a short timeout and failures are logged but not
// retried (a production deployment would put a persistent queue with
// backoff in front of this).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/opensource-intel/kite/internal/domain"
)

const defaultTimeout = 5 * time.Second

// AlertPayload is the body posted to the webhook endpoint.
type AlertPayload struct {
	Event       string              `json:"event"`
	TriggeredAt time.Time           `json:"triggered_at"`
	Report      domain.ReportEvent  `json:"report"`
	Matches     []domain.WatchMatch `json:"matches"`
}

// Notifier sends alert payloads to the configured endpoint.
type Notifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// New creates a Notifier. An empty URL disables delivery.
func New(url string, timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Notify delivers one alert and logs the outcome.
func (n *Notifier) Notify(ctx context.Context, event *domain.ReportEvent, matches []domain.WatchMatch) {
	if !n.Enabled() {
		return
	}

	payload := AlertPayload{
		Event:       "report_alert",
		TriggeredAt: time.Now().UTC(),
		Report:      *event,
		Matches:     matches,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("webhook: failed to marshal payload", "report_id", event.ReportID, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("webhook: failed to build request", "report_id", event.ReportID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Kite-Event", "report_alert")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook: delivery failed", "url", n.url, "error", err)
		return
	}
	defer resp.Body.Close()

	n.logger.Info("webhook: delivered",
		"url", n.url,
		"status", resp.StatusCode,
		"report_id", event.ReportID,
		"risk_score", event.RiskScore,
		"matches", len(matches),
	)
}
