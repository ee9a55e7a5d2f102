package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect picks the DDL flavor. Queries themselves are shared: both backends
// accept $n placeholders and RETURNING.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// call_logs.agent_id references agent_configs without ON DELETE CASCADE;
// agent deletion removes logs explicitly inside the same transaction.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS agent_configs (
  id           BIGSERIAL PRIMARY KEY,
  user_id      TEXT NOT NULL,
  agent_name   VARCHAR(255) NOT NULL,
  agent_id     VARCHAR(255) NOT NULL,
  api_key      TEXT NOT NULL,
  public_key   TEXT,
  assistant_id VARCHAR(255),
  phone_number VARCHAR(32),
  description  TEXT,
  is_active    BOOLEAN NOT NULL DEFAULT TRUE,
  created_at   TIMESTAMPTZ NOT NULL,
  updated_at   TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_configs_user_id ON agent_configs (user_id)`,
	`CREATE TABLE IF NOT EXISTS call_logs (
  id            BIGSERIAL PRIMARY KEY,
  agent_id      BIGINT NOT NULL REFERENCES agent_configs (id),
  call_id       VARCHAR(255) NOT NULL,
  caller_number VARCHAR(32),
  duration      INTEGER,
  status        VARCHAR(50),
  transcript    TEXT,
  recording_url TEXT,
  created_at    TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_agent_id ON call_logs (agent_id)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
  id         UUID PRIMARY KEY,
  user_id    TEXT NOT NULL,
  type       VARCHAR(50) NOT NULL,
  agent_id   BIGINT,
  call_id    VARCHAR(255),
  ip_address VARCHAR(64),
  message    TEXT,
  created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_user_created ON audit_events (user_id, created_at DESC)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS agent_configs (
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id      TEXT NOT NULL,
  agent_name   TEXT NOT NULL,
  agent_id     TEXT NOT NULL,
  api_key      TEXT NOT NULL,
  public_key   TEXT,
  assistant_id TEXT,
  phone_number TEXT,
  description  TEXT,
  is_active    BOOLEAN NOT NULL DEFAULT 1,
  created_at   TIMESTAMP NOT NULL,
  updated_at   TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_configs_user_id ON agent_configs (user_id)`,
	`CREATE TABLE IF NOT EXISTS call_logs (
  id            INTEGER PRIMARY KEY AUTOINCREMENT,
  agent_id      INTEGER NOT NULL REFERENCES agent_configs (id),
  call_id       TEXT NOT NULL,
  caller_number TEXT,
  duration      INTEGER,
  status        TEXT,
  transcript    TEXT,
  recording_url TEXT,
  created_at    TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_agent_id ON call_logs (agent_id)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
  id         TEXT PRIMARY KEY,
  user_id    TEXT NOT NULL,
  type       TEXT NOT NULL,
  agent_id   INTEGER,
  call_id    TEXT,
  ip_address TEXT,
  message    TEXT,
  created_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_user_created ON audit_events (user_id, created_at DESC)`,
}

// Migrate creates the tables if they do not exist. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	var stmts []string
	switch d {
	case Postgres:
		stmts = postgresSchema
	case SQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("store: unknown dialect %q", d)
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}
