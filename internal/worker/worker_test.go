package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opensource-intel/kite/internal/bus"
	"github.com/opensource-intel/kite/internal/domain"
	"github.com/opensource-intel/kite/internal/rules"
	"github.com/opensource-intel/kite/internal/webhook"
)

func newTestWorker(t *testing.T, notifier *webhook.Notifier) (*Worker, *bus.ChannelBus) {
	t.Helper()

	channelBus := bus.NewChannelBus(100)
	t.Cleanup(func() { channelBus.Close() })

	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	if err := engine.LoadRules(rules.BuiltinRules()); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}

	w := NewWorker(channelBus, engine, notifier, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	return w, channelBus
}

func publishEvent(t *testing.T, b *bus.ChannelBus, event domain.ReportEvent) {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := b.Publish(context.Background(), domain.TopicReportSubmitted, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
}

func TestWorkerRaisesAlert(t *testing.T) {
	_, channelBus := newTestWorker(t, nil)
	ctx := context.Background()

	alerts := make(chan []byte, 1)
	channelBus.Subscribe(ctx, domain.TopicReportAlert, func(ctx context.Context, msg *domain.Message) error {
		alerts <- msg.Payload
		return nil
	})
	time.Sleep(10 * time.Millisecond)

	publishEvent(t, channelBus, domain.ReportEvent{
		ReportID:        1,
		IdentifierType:  domain.IdentifierPhone,
		IdentifierValue: "1401234567",
		RiskScore:       80,
		RiskLevel:       domain.LevelCritical,
	})

	select {
	case payload := <-alerts:
		var alert struct {
			Report  domain.ReportEvent  `json:"report"`
			Matches []domain.WatchMatch `json:"matches"`
		}
		if err := json.Unmarshal(payload, &alert); err != nil {
			t.Fatalf("unmarshal alert failed: %v", err)
		}
		if alert.Report.ReportID != 1 {
			t.Errorf("expected report 1 in alert, got %d", alert.Report.ReportID)
		}
		if len(alert.Matches) != 1 || alert.Matches[0].RuleID != "critical-risk-001" {
			t.Errorf("unexpected matches: %+v", alert.Matches)
		}
	case <-time.After(time.Second):
		t.Fatal("no alert published")
	}
}

func TestWorkerIgnoresLowRisk(t *testing.T) {
	_, channelBus := newTestWorker(t, nil)
	ctx := context.Background()

	alerts := make(chan []byte, 1)
	channelBus.Subscribe(ctx, domain.TopicReportAlert, func(ctx context.Context, msg *domain.Message) error {
		alerts <- msg.Payload
		return nil
	})
	time.Sleep(10 * time.Millisecond)

	publishEvent(t, channelBus, domain.ReportEvent{
		ReportID:  2,
		RiskScore: 10,
		RiskLevel: domain.LevelLow,
	})

	select {
	case <-alerts:
		t.Fatal("low-risk event must not alert")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWorkerDeliversWebhook(t *testing.T) {
	delivered := make(chan webhook.AlertPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhook.AlertPayload
		json.NewDecoder(r.Body).Decode(&payload)
		delivered <- payload
	}))
	defer server.Close()

	notifier := webhook.New(server.URL, 2*time.Second, nil)
	_, channelBus := newTestWorker(t, notifier)

	publishEvent(t, channelBus, domain.ReportEvent{
		ReportID:  3,
		RiskScore: 90,
		RiskLevel: domain.LevelCritical,
	})

	select {
	case payload := <-delivered:
		if payload.Report.ReportID != 3 {
			t.Errorf("expected report 3 in webhook, got %d", payload.Report.ReportID)
		}
		if len(payload.Matches) == 0 {
			t.Error("expected matches in webhook payload")
		}
	case <-time.After(time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestWorkerMalformedPayload(t *testing.T) {
	_, channelBus := newTestWorker(t, nil)

	// Must not panic or wedge the subscription
	channelBus.Publish(context.Background(), domain.TopicReportSubmitted, []byte("not json"))
	time.Sleep(50 * time.Millisecond)

	alerts := make(chan struct{}, 1)
	channelBus.Subscribe(context.Background(), domain.TopicReportAlert, func(ctx context.Context, msg *domain.Message) error {
		alerts <- struct{}{}
		return nil
	})
	time.Sleep(10 * time.Millisecond)

	publishEvent(t, channelBus, domain.ReportEvent{ReportID: 4, RiskScore: 99, RiskLevel: domain.LevelCritical})

	select {
	case <-alerts:
	case <-time.After(time.Second):
		t.Fatal("worker stopped processing after malformed payload")
	}
}

func TestWorkerStats(t *testing.T) {
	w, _ := newTestWorker(t, nil)

	stats := w.GetStats()
	if stats.SubscriptionCount != 1 {
		t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
	}
	if stats.RulesLoaded != 1 {
		t.Errorf("expected 1 rule loaded, got %d", stats.RulesLoaded)
	}
	if len(stats.Topics) != 1 || stats.Topics[0] != domain.TopicReportSubmitted {
		t.Errorf("unexpected topics: %v", stats.Topics)
	}
}
