// Package worker runs the async alert pipeline: it consumes submitted
// report events, evaluates watch rules against them and fans out alerts.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-intel/kite/internal/domain"
	"github.com/opensource-intel/kite/internal/rules"
	"github.com/opensource-intel/kite/internal/webhook"
)

// Worker processes report events from the EventBus.
type Worker struct {
	bus      domain.EventBus
	engine   *rules.Engine
	notifier *webhook.Notifier
	logger   *slog.Logger

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new alert worker. The notifier may be nil when no
// webhook endpoint is configured; alerts still go out on the bus.
func NewWorker(eventBus domain.EventBus, engine *rules.Engine, notifier *webhook.Notifier, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      eventBus,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the submitted-report topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicReportSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("alert worker started",
		"topic", domain.TopicReportSubmitted,
		"rules_loaded", w.engine.RulesCount(),
	)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var event domain.ReportEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		w.logger.Error("failed to parse report event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	matches := w.engine.Evaluate(&event)
	if len(matches) == 0 {
		w.logger.Debug("no watch rules matched",
			"report_id", event.ReportID,
			"risk_score", event.RiskScore,
		)
		return nil
	}

	alert := struct {
		Report  domain.ReportEvent  `json:"report"`
		Matches []domain.WatchMatch `json:"matches"`
	}{Report: event, Matches: matches}

	payload, _ := json.Marshal(alert)
	if err := w.bus.Publish(ctx, domain.TopicReportAlert, payload); err != nil {
		w.logger.Error("failed to publish alert",
			"report_id", event.ReportID,
			"error", err,
		)
	}

	if w.notifier != nil {
		w.notifier.Notify(ctx, &event, matches)
	}

	alertsTotal.WithLabelValues(string(event.RiskLevel)).Inc()

	w.logger.Info("report alert raised",
		"report_id", event.ReportID,
		"risk_score", event.RiskScore,
		"matched_rules", len(matches),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.logger.Info("alert worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	RulesLoaded       int      `json:"rulesLoaded"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		RulesLoaded:       w.engine.RulesCount(),
	}
}
