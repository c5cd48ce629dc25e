// Package reports implements the submission, lookup and analysis workflows.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-intel/kite/internal/domain"
	"github.com/opensource-intel/kite/internal/frequency"
	"github.com/opensource-intel/kite/internal/risk"
)

const (
	// Pagination bounds for report listings.
	DefaultListLimit = 50
	MaxListLimit     = 200

	statsCacheKey = "stats:dashboard"
	statsCacheTTL = 30 * time.Second
)

// Service wires the scoring engine, AI collaborator, store and event bus
// into the report workflows.
type Service struct {
	repo       domain.Repository
	classifier domain.Classifier
	freq       *frequency.Service
	bus        domain.EventBus
	cache      domain.Cache
	logger     *slog.Logger
}

// NewService creates the report service. Bus and cache may be nil; the
// workflows degrade to synchronous, uncached behavior.
func NewService(
	repo domain.Repository,
	classifier domain.Classifier,
	freq *frequency.Service,
	eventBus domain.EventBus,
	cache domain.Cache,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		classifier: classifier,
		freq:       freq,
		bus:        eventBus,
		cache:      cache,
		logger:     logger,
	}
}

// Submit runs the full submission workflow: count prior reports, classify
// with the AI collaborator, score, persist, then publish the report event.
// The AI confidence feeds the score only when the verdict is is_scam.
func (s *Service) Submit(ctx context.Context, req *domain.ReportRequest) (*domain.SubmitResult, error) {
	report := req.ToReport()

	priorCount, err := s.freq.Count(ctx, report.IdentifierValue)
	if err != nil {
		return nil, fmt.Errorf("failed to count prior reports: %w", err)
	}

	analysis := s.classifier.Classify(ctx, report.Description, report.IdentifierType, report.IdentifierValue)

	var aiConfidence *float64
	if analysis.IsScam {
		aiConfidence = &analysis.Confidence
	}

	assessment := risk.Assess(risk.Input{
		IdentifierType:  report.IdentifierType,
		IdentifierValue: report.IdentifierValue,
		Description:     report.Description,
		ReportCount:     priorCount,
		AIConfidence:    aiConfidence,
	})

	category := analysis.ScamType
	if category == "" {
		category = "unknown"
	}
	if category == "unknown" && analysis.IsScam {
		category = "suspected_scam"
	}

	report.Category = category
	report.RiskScore = assessment.Score
	report.RiskLevel = assessment.Level
	report.RiskFactors = assessment.Factors
	report.AIAnalysis = analysis

	id, err := s.repo.InsertReport(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	report.ID = id

	s.freq.Invalidate(ctx, report.IdentifierValue)
	if s.cache != nil {
		_ = s.cache.Delete(ctx, statsCacheKey)
	}

	s.publishSubmitted(ctx, report, priorCount, analysis)

	s.logger.Info("report submitted",
		"report_id", id,
		"identifier_type", report.IdentifierType,
		"risk_score", assessment.Score,
		"risk_level", assessment.Level,
		"prior_reports", priorCount,
		"ai_is_scam", analysis.IsScam,
	)

	return &domain.SubmitResult{
		ReportID:   id,
		Risk:       assessment,
		AIAnalysis: *analysis,
	}, nil
}

// publishSubmitted emits the report event for the alert pipeline. Publish
// failures are logged; a dead bus must not fail a stored submission.
func (s *Service) publishSubmitted(ctx context.Context, report *domain.FraudReport, priorCount int, analysis *domain.AIAnalysis) {
	if s.bus == nil {
		return
	}

	event := domain.ReportEvent{
		ReportID:        report.ID,
		IdentifierType:  report.IdentifierType,
		IdentifierValue: report.IdentifierValue,
		Category:        report.Category,
		RiskScore:       report.RiskScore,
		RiskLevel:       report.RiskLevel,
		ReportCount:     priorCount,
		AIIsScam:        analysis.IsScam,
		AIConfidence:    analysis.Confidence,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal report event", "report_id", report.ID, "error", err)
		return
	}

	if err := s.bus.Publish(ctx, domain.TopicReportSubmitted, payload); err != nil {
		s.logger.Error("failed to publish report event", "report_id", report.ID, "error", err)
	}
}

// List returns stored reports newest first. Limit is clamped to
// [1, MaxListLimit], zero means DefaultListLimit.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*domain.FraudReport, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	reports, err := s.repo.ListReports(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []*domain.FraudReport{}
	}
	return reports, nil
}

// Lookup reports everything known about an identifier. The risk is
// re-scored from the most recent report's description and the live count;
// no AI call is made on this path. An unknown identifier is a valid
// zero-count answer, not an error.
func (s *Service) Lookup(ctx context.Context, identifier string) (*domain.LookupResult, error) {
	normalized := domain.NormalizeIdentifier(identifier)
	if normalized == "" {
		return nil, fmt.Errorf("identifier is required")
	}

	// Most lookups are for identifiers nobody has reported. A cached zero
	// count answers those without scanning the store; submissions
	// invalidate the entry, so a fresh report is visible immediately.
	if count, err := s.freq.CachedCount(ctx, normalized); err == nil && count == 0 {
		return &domain.LookupResult{
			Identifier:  normalized,
			ReportCount: 0,
			Reports:     []*domain.FraudReport{},
		}, nil
	}

	reports, err := s.repo.ListByIdentifier(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []*domain.FraudReport{}
	}

	result := &domain.LookupResult{
		Identifier:  normalized,
		ReportCount: len(reports),
		Reports:     reports,
	}

	if len(reports) > 0 {
		latest := reports[0]
		assessment := risk.Assess(risk.Input{
			IdentifierType:  latest.IdentifierType,
			IdentifierValue: normalized,
			Description:     latest.Description,
			ReportCount:     len(reports),
		})
		result.Risk = &assessment
	}

	return result, nil
}

// Analyze runs an AI classification without creating a report.
func (s *Service) Analyze(ctx context.Context, req *domain.AnalysisRequest) *domain.AIAnalysis {
	return s.classifier.Classify(ctx, req.Message, req.IdentifierType, req.IdentifierValue)
}

// Stats returns the aggregated dashboard view, cached briefly since the
// dashboard polls it.
func (s *Service) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, statsCacheKey); err == nil && data != nil {
			var stats domain.DashboardStats
			if json.Unmarshal(data, &stats) == nil {
				return &stats, nil
			}
		}
	}

	stats, err := s.repo.DashboardStats(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(stats); err == nil {
			_ = s.cache.Set(ctx, statsCacheKey, data, statsCacheTTL)
		}
	}

	return stats, nil
}
