package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/opensource-intel/kite/internal/domain"
	"github.com/opensource-intel/kite/internal/reports"
	"github.com/opensource-intel/kite/internal/repository"
	"github.com/opensource-intel/kite/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	svc      *reports.Service
	repo     domain.Repository
	cache    domain.Cache
	engine   *rules.Engine
	validate *validator.Validate
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(svc *reports.Service, repo domain.Repository, cache domain.Cache, engine *rules.Engine, version string) *Handler {
	return &Handler{
		svc:      svc,
		repo:     repo,
		cache:    cache,
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		version:  version,
	}
}

// SubmitResponse is the response for POST /api/reports.
type SubmitResponse struct {
	domain.SubmitResult
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// SubmitReport handles POST /api/reports: the full scoring workflow.
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req domain.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationMessage(err),
		})
		return
	}

	result, err := h.svc.Submit(ctx, &req)
	if err != nil {
		slog.Error("report submission failed", "error", err, "trace_id", traceID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to process report",
		})
		return
	}

	reportsSubmittedTotal.WithLabelValues(string(result.Risk.Level)).Inc()

	resp := SubmitResponse{SubmitResult: *result}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusCreated, resp)
}

// ListReports handles GET /api/reports with limit/offset pagination.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	list, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		slog.Error("failed to list reports", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list reports",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": list,
		"count":   len(list),
	})
}

// GetReport handles GET /api/reports/{id}.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "report id must be a positive integer",
		})
		return
	}

	report, err := h.repo.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "report not found",
			})
			return
		}
		slog.Error("failed to get report", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get report",
		})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Lookup handles GET /api/reports/lookup/*. The identifier is the
// remainder of the path so website identifiers containing slashes work.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "*")
	if decoded, err := url.PathUnescape(identifier); err == nil {
		identifier = decoded
	}
	if identifier == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "identifier is required",
		})
		return
	}

	result, err := h.svc.Lookup(r.Context(), identifier)
	if err != nil {
		slog.Error("identifier lookup failed", "identifier", identifier, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	lookupsTotal.Inc()
	writeJSON(w, http.StatusOK, result)
}

// Analyze handles POST /api/analysis: AI classification without persistence.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req domain.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationMessage(err),
		})
		return
	}

	analysis := h.svc.Analyze(r.Context(), &req)
	writeJSON(w, http.StatusOK, analysis)
}

// DashboardStats handles GET /api/dashboard/stats.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		slog.Error("failed to compute dashboard stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListWatchRules returns all watch rules currently loaded in the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /api/watchrules/reload.
func (h *Handler) ListWatchRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loaded,
		"count":  len(loaded),
		"source": "database",
	})
}

// GetWatchRule retrieves a watch rule by ID from the loaded engine rules.
func (h *Handler) GetWatchRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "watch rule not found",
	})
}

// WatchRuleRequest is the request body for creating a watch rule.
type WatchRuleRequest struct {
	ID          string `json:"id" validate:"required,max=100"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=1000"`
	Expression  string `json:"expression" validate:"required"`
	Enabled     bool   `json:"enabled"`
}

// CreateWatchRule creates a watch rule and saves it to the database.
// After saving, call POST /api/watchrules/reload to hot-reload the engine.
func (h *Handler) CreateWatchRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req WatchRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationMessage(err),
		})
		return
	}

	rule := &domain.WatchRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression before persisting
	if err := h.engine.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveWatchRule(ctx, rule); err != nil {
		slog.Error("failed to save watch rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save watch rule",
		})
		return
	}

	slog.Info("watch rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Watch rule created. Call POST /api/watchrules/reload to apply changes.",
	})
}

// DeleteWatchRule deletes a watch rule and auto-reloads the engine.
func (h *Handler) DeleteWatchRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if err := h.repo.DeleteWatchRule(ctx, ruleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "watch rule not found",
			})
			return
		}
		slog.Error("failed to delete watch rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete watch rule",
		})
		return
	}

	// Auto-reload after delete so the engine stops evaluating the rule
	dbRules, err := h.repo.ListWatchRules(ctx)
	if err != nil {
		slog.Error("failed to reload watch rules after delete", "error", err)
	} else if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload watch rules into engine", "error", err)
	}

	slog.Info("watch rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Watch rule deleted and engine reloaded.",
	})
}

// ReloadWatchRules reloads all watch rules from the database into the
// engine. This enables hot-reloading without a server restart.
func (h *Handler) ReloadWatchRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbRules, err := h.repo.ListWatchRules(ctx)
	if err != nil {
		slog.Error("failed to list watch rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load watch rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload watch rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload watch rules: " + err.Error(),
		})
		return
	}

	slog.Info("watch rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "watch rules reloaded successfully",
		"count":   h.engine.RulesCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// validationMessage flattens validator errors into a single readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
