package repository

// Schema definitions for the Kite database. The reports table needs an
// auto-assigned integer id, which SQLite and PostgreSQL spell differently,
// so that statement is per-driver. Everything else is shared.

const schemaFraudReportsSQLite = `
CREATE TABLE IF NOT EXISTS fraud_reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    identifier_type TEXT NOT NULL CHECK(identifier_type IN ('phone', 'upi', 'website', 'email', 'other')),
    identifier_value TEXT NOT NULL,
    description TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT 'unknown',
    risk_score INTEGER NOT NULL DEFAULT 0,
    risk_level TEXT NOT NULL DEFAULT 'LOW',
    risk_factors TEXT NOT NULL DEFAULT '[]',
    ai_analysis TEXT NOT NULL DEFAULT '{}',
    reporter_name TEXT NOT NULL DEFAULT 'Anonymous',
    reported_at TIMESTAMP NOT NULL
);
`

const schemaFraudReportsPostgres = `
CREATE TABLE IF NOT EXISTS fraud_reports (
    id BIGSERIAL PRIMARY KEY,
    identifier_type TEXT NOT NULL CHECK(identifier_type IN ('phone', 'upi', 'website', 'email', 'other')),
    identifier_value TEXT NOT NULL,
    description TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT 'unknown',
    risk_score INTEGER NOT NULL DEFAULT 0,
    risk_level TEXT NOT NULL DEFAULT 'LOW',
    risk_factors TEXT NOT NULL DEFAULT '[]',
    ai_analysis TEXT NOT NULL DEFAULT '{}',
    reporter_name TEXT NOT NULL DEFAULT 'Anonymous',
    reported_at TIMESTAMP NOT NULL
);
`

const schemaFraudReportIndexes = `
CREATE INDEX IF NOT EXISTS idx_reports_identifier ON fraud_reports(identifier_value);
CREATE INDEX IF NOT EXISTS idx_reports_reported_at ON fraud_reports(reported_at);
CREATE INDEX IF NOT EXISTS idx_reports_category ON fraud_reports(category);
CREATE INDEX IF NOT EXISTS idx_reports_level ON fraud_reports(risk_level);
`

const schemaWatchRules = `
CREATE TABLE IF NOT EXISTS watch_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_watch_rules_enabled ON watch_rules(enabled);
`

// AllSchemas returns all schema statements in migration order for the
// given driver.
func AllSchemas(driver string) []string {
	reports := schemaFraudReportsSQLite
	if driver == "postgres" {
		reports = schemaFraudReportsPostgres
	}
	return []string{
		reports,
		schemaFraudReportIndexes,
		schemaWatchRules,
	}
}
