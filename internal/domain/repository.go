package domain

import (
	"context"
	"time"
)

// Repository defines the interface for report persistence.
type Repository interface {
	// Report operations. InsertReport returns the auto-assigned id.
	InsertReport(ctx context.Context, report *FraudReport) (int64, error)
	GetReport(ctx context.Context, id int64) (*FraudReport, error)
	ListReports(ctx context.Context, limit, offset int) ([]*FraudReport, error)

	// Identifier operations work on the normalized identifier value.
	ListByIdentifier(ctx context.Context, identifier string) ([]*FraudReport, error)
	CountByIdentifier(ctx context.Context, identifier string) (int, error)

	// DashboardStats returns the aggregated view for the dashboard.
	DashboardStats(ctx context.Context) (*DashboardStats, error)

	// Watch rule operations
	SaveWatchRule(ctx context.Context, rule *WatchRule) error
	ListWatchRules(ctx context.Context) ([]*WatchRule, error)
	DeleteWatchRule(ctx context.Context, id string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// DashboardStats is the aggregated statistics payload.
type DashboardStats struct {
	TotalReports      int             `json:"total_reports"`
	UniqueIdentifiers int             `json:"unique_identifiers"`
	HighRiskCount     int             `json:"high_risk_count"`
	ByCategory        []CategoryCount `json:"by_category"`
	ByType            []TypeCount     `json:"by_type"`
	RiskDistribution  []LevelCount    `json:"risk_distribution"`
	RecentReports     []ReportSummary `json:"recent_reports"`
}

// CategoryCount is one row of the per-category breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// TypeCount is one row of the per-identifier-type breakdown.
type TypeCount struct {
	IdentifierType IdentifierType `json:"identifier_type"`
	Count          int            `json:"count"`
}

// LevelCount is one row of the risk-level distribution.
type LevelCount struct {
	RiskLevel RiskLevel `json:"risk_level"`
	Count     int       `json:"count"`
}

// ReportSummary is the trimmed report shape used in the recent-reports list.
type ReportSummary struct {
	ID              int64          `json:"id"`
	IdentifierType  IdentifierType `json:"identifier_type"`
	IdentifierValue string         `json:"identifier_value"`
	Category        string         `json:"category"`
	RiskScore       int            `json:"risk_score"`
	RiskLevel       RiskLevel      `json:"risk_level"`
	ReportedAt      time.Time      `json:"reported_at"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
