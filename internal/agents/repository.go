package agents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"voice-console/internal/secrets"
	"voice-console/pkg/utils"
)

const agentColumns = `id, user_id, agent_name, agent_id, api_key, public_key, assistant_id,
       phone_number, description, is_active, created_at, updated_at`

// Repository is the SQL record store for agent_configs. The same queries run
// on Postgres (pgx) and SQLite.
//
// API keys are sealed on write and opened on read when a sealer is configured.
type Repository struct {
	db     *sql.DB
	sealer *secrets.Sealer
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewRepository(db *sql.DB, sealer *secrets.Sealer) *Repository {
	return &Repository{db: db, sealer: sealer, clock: time.Now}
}

func (r *Repository) now() time.Time {
	// Postgres keeps microseconds; truncate so both backends read back what was written.
	return r.clock().UTC().Truncate(time.Microsecond)
}

func (r *Repository) ListForUser(ctx context.Context, userID string) ([]AgentConfig, error) {
	q := `SELECT ` + agentColumns + ` FROM agent_configs WHERE user_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]AgentConfig, 0)
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Get returns (AgentConfig{}, false, nil) when the row does not exist.
func (r *Repository) Get(ctx context.Context, id int64) (AgentConfig, bool, error) {
	q := `SELECT ` + agentColumns + ` FROM agent_configs WHERE id = $1`
	a, err := r.scan(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AgentConfig{}, false, nil
		}
		return AgentConfig{}, false, err
	}
	return a, true, nil
}

func (r *Repository) Create(ctx context.Context, in NewAgent) (AgentConfig, error) {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	key, err := r.sealer.Seal(in.APIKey, in.UserID)
	if err != nil {
		return AgentConfig{}, err
	}
	now := r.now()

	q := `
INSERT INTO agent_configs (
  user_id, agent_name, agent_id, api_key, public_key, assistant_id,
  phone_number, description, is_active, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
RETURNING ` + agentColumns
	return r.scan(r.db.QueryRowContext(ctx, q,
		in.UserID,
		in.AgentName,
		in.AgentID,
		key,
		in.PublicKey,
		in.AssistantID,
		in.PhoneNumber,
		in.Description,
		active,
		now,
		now,
	))
}

// Update writes only the non-nil fields of p plus updated_at.
// Returns (AgentConfig{}, false, nil) when the row does not exist.
func (r *Repository) Update(ctx context.Context, id int64, p AgentPatch) (AgentConfig, bool, error) {
	if p.Empty() {
		return r.Get(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.AgentName != nil {
		add("agent_name", *p.AgentName)
	}
	if p.PhoneNumber != nil {
		add("phone_number", *p.PhoneNumber)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}
	add("updated_at", r.now())
	args = append(args, id)

	q := `UPDATE agent_configs SET ` + strings.Join(sets, ", ") +
		fmt.Sprintf(` WHERE id = $%d RETURNING `, len(args)) + agentColumns
	a, err := r.scan(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AgentConfig{}, false, nil
		}
		return AgentConfig{}, false, err
	}
	return a, true, nil
}

// Delete removes the agent and its call logs in one transaction.
// Deleting a missing id is a no-op. Ownership is the caller's job.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM call_logs WHERE agent_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM agent_configs WHERE id = $1`, id)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scan(row rowScanner) (AgentConfig, error) {
	var a AgentConfig
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.AgentName,
		&a.AgentID,
		&a.APIKey,
		&a.PublicKey,
		&a.AssistantID,
		&a.PhoneNumber,
		&a.Description,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return AgentConfig{}, err
	}
	key, err := r.sealer.Open(a.APIKey, a.UserID)
	if err != nil {
		return AgentConfig{}, fmt.Errorf("agent %d: %w", a.ID, err)
	}
	a.APIKey = key
	return a, nil
}
