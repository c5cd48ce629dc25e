// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-intel/kite/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas(r.driver) {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const reportColumns = `id, identifier_type, identifier_value, description, category,
	   risk_score, risk_level, risk_factors, ai_analysis, reporter_name, reported_at`

// InsertReport stores a new fraud report and returns its assigned id.
// The identifier value must already be normalized by the caller.
func (r *SQLRepository) InsertReport(ctx context.Context, report *domain.FraudReport) (int64, error) {
	if report.IdentifierValue == "" {
		return 0, fmt.Errorf("%w: identifier_value is required", ErrInvalidInput)
	}

	factors, _ := json.Marshal(report.RiskFactors)
	if report.RiskFactors == nil {
		factors = []byte("[]")
	}
	analysis := []byte("{}")
	if report.AIAnalysis != nil {
		analysis, _ = json.Marshal(report.AIAnalysis)
	}

	query := `
		INSERT INTO fraud_reports (
			identifier_type, identifier_value, description, category,
			risk_score, risk_level, risk_factors, ai_analysis,
			reporter_name, reported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []any{
		report.IdentifierType, report.IdentifierValue,
		report.Description, report.Category,
		report.RiskScore, report.RiskLevel,
		string(factors), string(analysis),
		report.ReporterName, report.ReportedAt,
	}

	// lib/pq has no LastInsertId; RETURNING covers it.
	if r.driver == "postgres" {
		var id int64
		err := r.db.QueryRowContext(ctx, r.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetReport retrieves a report by id.
func (r *SQLRepository) GetReport(ctx context.Context, id int64) (*domain.FraudReport, error) {
	query := `SELECT ` + reportColumns + ` FROM fraud_reports WHERE id = ?`

	report, err := scanReport(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return report, err
}

// ListReports retrieves reports in reverse chronological order.
func (r *SQLRepository) ListReports(ctx context.Context, limit, offset int) ([]*domain.FraudReport, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM fraud_reports
		ORDER BY reported_at DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReports(rows)
}

// ListByIdentifier retrieves every report for a normalized identifier,
// newest first.
func (r *SQLRepository) ListByIdentifier(ctx context.Context, identifier string) ([]*domain.FraudReport, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM fraud_reports
		WHERE identifier_value = ?
		ORDER BY reported_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), identifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReports(rows)
}

// CountByIdentifier returns how many reports exist for a normalized
// identifier.
func (r *SQLRepository) CountByIdentifier(ctx context.Context, identifier string) (int, error) {
	query := `SELECT COUNT(*) FROM fraud_reports WHERE identifier_value = ?`

	var count int
	err := r.db.QueryRowContext(ctx, r.rebind(query), identifier).Scan(&count)
	return count, err
}

// DashboardStats aggregates the dashboard view in a single call.
func (r *SQLRepository) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{
		ByCategory:       []domain.CategoryCount{},
		ByType:           []domain.TypeCount{},
		RiskDistribution: []domain.LevelCount{},
		RecentReports:    []domain.ReportSummary{},
	}

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fraud_reports`).Scan(&stats.TotalReports)
	if err != nil {
		return nil, err
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT identifier_value) FROM fraud_reports`).Scan(&stats.UniqueIdentifiers)
	if err != nil {
		return nil, err
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fraud_reports WHERE risk_level IN ('HIGH', 'CRITICAL')`).Scan(&stats.HighRiskCount)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT category, COUNT(*) AS count
		FROM fraud_reports
		GROUP BY category
		ORDER BY count DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c domain.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByCategory = append(stats.ByCategory, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT identifier_type, COUNT(*) AS count
		FROM fraud_reports
		GROUP BY identifier_type
		ORDER BY count DESC
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var t domain.TypeCount
		if err := rows.Scan(&t.IdentifierType, &t.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByType = append(stats.ByType, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT risk_level, COUNT(*) AS count
		FROM fraud_reports
		GROUP BY risk_level
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var l domain.LevelCount
		if err := rows.Scan(&l.RiskLevel, &l.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.RiskDistribution = append(stats.RiskDistribution, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT id, identifier_type, identifier_value, category, risk_score, risk_level, reported_at
		FROM fraud_reports
		ORDER BY reported_at DESC, id DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var s domain.ReportSummary
		if err := rows.Scan(
			&s.ID, &s.IdentifierType, &s.IdentifierValue,
			&s.Category, &s.RiskScore, &s.RiskLevel, &s.ReportedAt,
		); err != nil {
			rows.Close()
			return nil, err
		}
		stats.RecentReports = append(stats.RecentReports, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// SaveWatchRule inserts or updates a watch rule.
func (r *SQLRepository) SaveWatchRule(ctx context.Context, rule *domain.WatchRule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	query := `
		INSERT INTO watch_rules (id, name, description, expression, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression,
		enabled, rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

// ListWatchRules retrieves all watch rules, enabled or not, ordered by name.
func (r *SQLRepository) ListWatchRules(ctx context.Context) ([]*domain.WatchRule, error) {
	query := `
		SELECT id, name, description, expression, enabled, created_at, updated_at
		FROM watch_rules
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.WatchRule
	for rows.Next() {
		var rule domain.WatchRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description, &rule.Expression,
			&enabled, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteWatchRule removes a watch rule by id.
func (r *SQLRepository) DeleteWatchRule(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM watch_rules WHERE id = ?`), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.FraudReport, error) {
	var report domain.FraudReport
	var factors, analysis string

	err := row.Scan(
		&report.ID, &report.IdentifierType, &report.IdentifierValue,
		&report.Description, &report.Category,
		&report.RiskScore, &report.RiskLevel,
		&factors, &analysis,
		&report.ReporterName, &report.ReportedAt,
	)
	if err != nil {
		return nil, err
	}

	report.RiskFactors = []string{}
	if factors != "" {
		json.Unmarshal([]byte(factors), &report.RiskFactors)
	}
	if analysis != "" && analysis != "{}" {
		var ai domain.AIAnalysis
		if json.Unmarshal([]byte(analysis), &ai) == nil {
			report.AIAnalysis = &ai
		}
	}

	return &report, nil
}

func collectReports(rows *sql.Rows) ([]*domain.FraudReport, error) {
	var reports []*domain.FraudReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
