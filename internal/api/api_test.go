package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/opensource-intel/kite/internal/bus"
	"github.com/opensource-intel/kite/internal/cache"
	"github.com/opensource-intel/kite/internal/domain"
	"github.com/opensource-intel/kite/internal/frequency"
	"github.com/opensource-intel/kite/internal/reports"
	"github.com/opensource-intel/kite/internal/repository"
	"github.com/opensource-intel/kite/internal/rules"
)

// stubClassifier returns a canned verdict so tests never touch the network.
type stubClassifier struct {
	verdict domain.AIAnalysis
}

func (s *stubClassifier) Classify(ctx context.Context, description string, idType domain.IdentifierType, idValue string) *domain.AIAnalysis {
	v := s.verdict
	return &v
}

func (s *stubClassifier) Enabled() bool { return true }

// createTestServer builds a server backed by a temp SQLite database.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "kite-api-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db: %v", err)
	}
	f.Close()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: f.Name(),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(100)
	eventBus := bus.NewChannelBus(16)
	t.Cleanup(func() { eventBus.Close() })

	classifier := &stubClassifier{verdict: domain.AIAnalysis{
		IsScam:      true,
		Confidence:  0.9,
		ScamType:    "kyc_fraud",
		Explanation: "classic KYC suspension bait",
		Advice:      "Do not share OTPs or banking credentials.",
	}}

	freq := frequency.NewService(repo, c)
	svc := reports.NewService(repo, classifier, freq, eventBus, c, nil)

	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("failed to create rules engine: %v", err)
	}
	if err := engine.LoadRules(rules.BuiltinRules()); err != nil {
		t.Fatalf("failed to load builtin rules: %v", err)
	}

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	return NewServer(cfg, svc, repo, c, engine, "test-v1")
}

func submitBody() []byte {
	body, _ := json.Marshal(domain.ReportRequest{
		IdentifierType:  domain.IdentifierPhone,
		IdentifierValue: "+91 140 1234567",
		Description:     "URGENT! You will be blocked, verify KYC now or pay via UPI",
		ReporterName:    "Asha",
	})
	return body
}

func doJSON(t *testing.T, server *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestSubmitReportEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("SuccessfulSubmission", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/api/reports", submitBody())

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp SubmitResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.ReportID == 0 {
			t.Error("expected report_id in response")
		}
		if resp.Risk.Level != domain.LevelHigh {
			t.Errorf("expected risk level HIGH, got %s", resp.Risk.Level)
		}
		if resp.AIAnalysis.ScamType != "kyc_fraud" {
			t.Errorf("expected scam_type kyc_fraud, got %s", resp.AIAnalysis.ScamType)
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/api/reports", []byte("not-json"))

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingIdentifier", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"identifier_type": "phone",
			"description":     "a perfectly long enough description",
		})
		rr := doJSON(t, server, http.MethodPost, "/api/reports", body)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownIdentifierType", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"identifier_type":  "carrier_pigeon",
			"identifier_value": "coo",
			"description":      "a perfectly long enough description",
		})
		rr := doJSON(t, server, http.MethodPost, "/api/reports", body)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ShortDescription", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"identifier_type":  "phone",
			"identifier_value": "+91 9876543210",
			"description":      "short",
		})
		rr := doJSON(t, server, http.MethodPost, "/api/reports", body)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/api/reports", submitBody())

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestListAndGetReports(t *testing.T) {
	server := createTestServer(t)

	rr := doJSON(t, server, http.MethodPost, "/api/reports", submitBody())
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed submission failed: %d", rr.Code)
	}
	var submitted SubmitResponse
	json.Unmarshal(rr.Body.Bytes(), &submitted)

	t.Run("List", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/api/reports?limit=10", nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Reports []*domain.FraudReport `json:"reports"`
			Count   int                   `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 1 || len(resp.Reports) != 1 {
			t.Fatalf("expected 1 report, got count=%d len=%d", resp.Count, len(resp.Reports))
		}
		if resp.Reports[0].IdentifierValue != "+91 140 1234567" {
			t.Errorf("unexpected identifier: %s", resp.Reports[0].IdentifierValue)
		}
	})

	t.Run("GetByID", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/api/reports/1", nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var report domain.FraudReport
		if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if report.ID != submitted.ReportID {
			t.Errorf("expected report %d, got %d", submitted.ReportID, report.ID)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/api/reports/99999", nil)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestLookupEndpoint(t *testing.T) {
	server := createTestServer(t)

	rr := doJSON(t, server, http.MethodPost, "/api/reports", submitBody())
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed submission failed: %d", rr.Code)
	}

	t.Run("KnownIdentifier", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/api/reports/lookup/"+url.PathEscape("+91 140 1234567"), nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result domain.LookupResult
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if result.ReportCount != 1 {
			t.Errorf("expected report_count 1, got %d", result.ReportCount)
		}
		if result.Risk == nil {
			t.Fatal("expected risk assessment for known identifier")
		}
	})

	t.Run("UnknownIdentifierIsZeroCount", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/api/reports/lookup/nobody@okhdfc", nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var result domain.LookupResult
		json.Unmarshal(rr.Body.Bytes(), &result)
		if result.ReportCount != 0 {
			t.Errorf("expected report_count 0, got %d", result.ReportCount)
		}
		if result.Risk != nil {
			t.Error("expected no risk assessment for unknown identifier")
		}
		if result.Reports == nil {
			t.Error("expected reports to be an empty array, not null")
		}
	})

	t.Run("WebsiteIdentifierWithSlash", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/api/reports/lookup/lucky-prize.xyz/claim", nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var result domain.LookupResult
		json.Unmarshal(rr.Body.Bytes(), &result)
		if result.Identifier != "lucky-prize.xyz/claim" {
			t.Errorf("expected full path identifier, got %q", result.Identifier)
		}
	})
}

func TestAnalysisEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("ReturnsVerdictWithoutPersisting", func(t *testing.T) {
		body, _ := json.Marshal(domain.AnalysisRequest{
			Message: "Congratulations, you won a lottery! Pay the processing fee to claim.",
		})
		rr := doJSON(t, server, http.MethodPost, "/api/analysis", body)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var analysis domain.AIAnalysis
		if err := json.Unmarshal(rr.Body.Bytes(), &analysis); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if !analysis.IsScam {
			t.Error("expected is_scam true from stub verdict")
		}

		// Nothing stored
		list := doJSON(t, server, http.MethodGet, "/api/reports", nil)
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(list.Body.Bytes(), &resp)
		if resp.Count != 0 {
			t.Errorf("expected no stored reports, got %d", resp.Count)
		}
	})

	t.Run("ShortMessageRejected", func(t *testing.T) {
		body, _ := json.Marshal(domain.AnalysisRequest{Message: "hi"})
		rr := doJSON(t, server, http.MethodPost, "/api/analysis", body)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestDashboardStatsEndpoint(t *testing.T) {
	server := createTestServer(t)

	rr := doJSON(t, server, http.MethodPost, "/api/reports", submitBody())
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed submission failed: %d", rr.Code)
	}

	statsRR := doJSON(t, server, http.MethodGet, "/api/dashboard/stats", nil)
	if statsRR.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", statsRR.Code)
	}

	var stats domain.DashboardStats
	if err := json.Unmarshal(statsRR.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if stats.TotalReports != 1 {
		t.Errorf("expected total_reports 1, got %d", stats.TotalReports)
	}
	if stats.UniqueIdentifiers != 1 {
		t.Errorf("expected unique_identifiers 1, got %d", stats.UniqueIdentifiers)
	}
	if len(stats.RecentReports) != 1 {
		t.Errorf("expected 1 recent report, got %d", len(stats.RecentReports))
	}
}

func TestWatchRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("ListIncludesBuiltin", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/api/watchrules", nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Rules []*domain.WatchRule `json:"rules"`
			Count int                 `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 || resp.Rules[0].ID != "critical-risk-001" {
			t.Errorf("expected builtin critical-risk-001, got %+v", resp.Rules)
		}
	})

	t.Run("CreateAndReload", func(t *testing.T) {
		body, _ := json.Marshal(WatchRuleRequest{
			ID:         "repeat-offender-001",
			Name:       "Repeat offender",
			Expression: "report_count >= 3",
			Enabled:    true,
		})
		rr := doJSON(t, server, http.MethodPost, "/api/watchrules", body)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		// Not loaded until reload
		list := doJSON(t, server, http.MethodGet, "/api/watchrules", nil)
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(list.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Fatalf("expected 1 loaded rule before reload, got %d", resp.Count)
		}

		reload := doJSON(t, server, http.MethodPost, "/api/watchrules/reload", nil)
		if reload.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", reload.Code, reload.Body.String())
		}

		// Database had only the created rule, so the engine now holds it alone
		list = doJSON(t, server, http.MethodGet, "/api/watchrules", nil)
		var after struct {
			Rules []*domain.WatchRule `json:"rules"`
			Count int                 `json:"count"`
		}
		json.Unmarshal(list.Body.Bytes(), &after)
		if after.Count != 1 || after.Rules[0].ID != "repeat-offender-001" {
			t.Errorf("expected reloaded rule set, got %+v", after.Rules)
		}
	})

	t.Run("CreateRejectsBadExpression", func(t *testing.T) {
		body, _ := json.Marshal(WatchRuleRequest{
			ID:         "bad-rule",
			Name:       "Bad rule",
			Expression: "score + 1",
			Enabled:    true,
		})
		rr := doJSON(t, server, http.MethodPost, "/api/watchrules", body)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("GetByID", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/api/watchrules/repeat-offender-001", nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var rule domain.WatchRule
		json.Unmarshal(rr.Body.Bytes(), &rule)
		if rule.Expression != "report_count >= 3" {
			t.Errorf("unexpected expression: %s", rule.Expression)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/api/watchrules/no-such-rule", nil)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("DeleteReloadsEngine", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodDelete, "/api/watchrules/repeat-offender-001", nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		list := doJSON(t, server, http.MethodGet, "/api/watchrules", nil)
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(list.Body.Bytes(), &resp)
		if resp.Count != 0 {
			t.Errorf("expected 0 loaded rules after delete, got %d", resp.Count)
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodDelete, "/api/watchrules/never-existed", nil)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/health", nil)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/ready", nil)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("MetricsExposed", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/metrics", nil)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("TracingMiddlewarePropagatesGivenID", func(t *testing.T) {
		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if got := rr.Header().Get("X-Request-ID"); got != "req-42" {
			t.Errorf("expected propagated request ID, got %q", got)
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("preflight should not reach the handler")
		}))

		req := httptest.NewRequest(http.MethodOptions, "/api/reports", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
			t.Errorf("unexpected allow-origin: %s", rr.Header().Get("Access-Control-Allow-Origin"))
		}
	})
}
