package database

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
)

// schema is applied in order; every statement is idempotent. $TS is replaced
// by the timestamp type of the dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                TEXT PRIMARY KEY,
		email             TEXT NOT NULL UNIQUE,
		first_name        TEXT NOT NULL DEFAULT '',
		last_name         TEXT NOT NULL DEFAULT '',
		password_hash     TEXT NOT NULL DEFAULT '',
		role              TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'active',
		skills            TEXT NOT NULL DEFAULT '[]',
		region            TEXT NOT NULL DEFAULT '',
		preferred_sources TEXT NOT NULL DEFAULT '[]',
		working_hours     TEXT,
		last_assigned_at  $TS,
		assignment_seq    BIGINT NOT NULL DEFAULT 0,
		created_at        $TS NOT NULL,
		updated_at        $TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS users_status_role ON users (status, role)`,

	`CREATE TABLE IF NOT EXISTS leads (
		id            TEXT PRIMARY KEY,
		first_name    TEXT NOT NULL DEFAULT '',
		last_name     TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL DEFAULT '',
		phone         TEXT NOT NULL DEFAULT '',
		company       TEXT NOT NULL DEFAULT '',
		source        TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT 'new',
		priority      TEXT NOT NULL DEFAULT 'medium',
		deal_value    DOUBLE PRECISION,
		currency      TEXT NOT NULL DEFAULT '',
		region        TEXT NOT NULL DEFAULT '',
		custom_fields TEXT NOT NULL DEFAULT '{}',
		assigned_to   TEXT NOT NULL DEFAULT '',
		version       BIGINT NOT NULL DEFAULT 0,
		created_at    $TS NOT NULL,
		updated_at    $TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS leads_assigned_to ON leads (assigned_to)`,

	`CREATE TABLE IF NOT EXISTS assignment_rules (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		priority    INTEGER NOT NULL DEFAULT 0,
		conditions  TEXT NOT NULL DEFAULT '{}',
		strategy    TEXT NOT NULL,
		fallback    TEXT,
		created_by  TEXT NOT NULL DEFAULT '',
		created_at  $TS NOT NULL,
		updated_at  $TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS assignment_rules_active_priority ON assignment_rules (is_active, priority)`,

	`CREATE TABLE IF NOT EXISTS lead_assignments (
		id               TEXT PRIMARY KEY,
		lead_id          TEXT NOT NULL REFERENCES leads (id) ON DELETE CASCADE,
		assigned_to      TEXT NOT NULL REFERENCES users (id),
		assigned_by      TEXT NOT NULL DEFAULT '',
		rule_id          TEXT NOT NULL DEFAULT '',
		assignment_type  TEXT NOT NULL,
		status           TEXT NOT NULL,
		transferred_to   TEXT NOT NULL DEFAULT '',
		transferred_by   TEXT NOT NULL DEFAULT '',
		transferred_at   $TS,
		rejection_reason TEXT NOT NULL DEFAULT '',
		notes            TEXT NOT NULL DEFAULT '',
		metadata         TEXT NOT NULL DEFAULT '{}',
		assigned_at      $TS NOT NULL,
		assigned_day     TEXT NOT NULL,
		closed_at        $TS,
		updated_at       $TS NOT NULL
	)`,
	// At most one active record per lead.
	`CREATE UNIQUE INDEX IF NOT EXISTS lead_assignments_one_active ON lead_assignments (lead_id) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS lead_assignments_daily ON lead_assignments (assigned_day, status, assigned_to)`,
	`CREATE INDEX IF NOT EXISTS lead_assignments_assigned_at ON lead_assignments (assigned_at)`,
	`CREATE INDEX IF NOT EXISTS lead_assignments_assignee ON lead_assignments (assigned_to, status)`,
}

// Migrate creates missing tables and indexes.
func (c *Client) Migrate(ctx context.Context) error {
	ts := "TIMESTAMP"
	if c.dialect == dialect.Postgres {
		ts = "TIMESTAMPTZ"
	}
	for i, stmt := range schema {
		if _, err := c.DB.ExecContext(ctx, strings.ReplaceAll(stmt, "$TS", ts)); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
