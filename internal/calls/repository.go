package calls

import (
	"context"
	"database/sql"
	"time"

	"voice-console/internal/store"
)

const logColumns = `id, agent_id, call_id, caller_number, duration, status, transcript, recording_url, created_at`

// Repository stores call_logs rows. Ownership is checked by the service.
type Repository struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, clock: time.Now}
}

// List returns the agent's logs newest first.
func (r *Repository) List(ctx context.Context, agentID int64) ([]CallLogEntry, error) {
	q := `SELECT ` + logColumns + ` FROM call_logs WHERE agent_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallLogEntry, 0)
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) Create(ctx context.Context, in NewCallLog) (CallLogEntry, error) {
	created := in.QueuedAt
	if created.IsZero() {
		created = r.clock()
	}
	created = created.UTC().Truncate(time.Microsecond)

	q := `
INSERT INTO call_logs (
  agent_id, call_id, caller_number, duration, status, transcript, recording_url, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
RETURNING ` + logColumns
	e, err := scanLog(r.db.QueryRowContext(ctx, q,
		in.AgentID,
		in.CallID,
		in.CallerNumber,
		in.Duration,
		nullStatus(in.Status),
		in.Transcript,
		in.RecordingURL,
		created,
	))
	if err != nil {
		return CallLogEntry{}, store.Classify(err)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(row rowScanner) (CallLogEntry, error) {
	var (
		e        CallLogEntry
		duration sql.NullInt64
		status   sql.NullString
	)
	if err := row.Scan(
		&e.ID,
		&e.AgentID,
		&e.CallID,
		&e.CallerNumber,
		&duration,
		&status,
		&e.Transcript,
		&e.RecordingURL,
		&e.CreatedAt,
	); err != nil {
		return CallLogEntry{}, err
	}
	if duration.Valid {
		d := int(duration.Int64)
		e.Duration = &d
	}
	e.Status = CallStatus(status.String)
	return e, nil
}

func nullStatus(s CallStatus) any {
	if s == "" {
		return nil
	}
	return string(s)
}
