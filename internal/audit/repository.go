package audit

import (
	"context"
	"database/sql"
	"time"
)

// SQLRepository appends to audit_events.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository { return &SQLRepository{db: db} }

func (r *SQLRepository) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_events (id, user_id, type, agent_id, call_id, ip_address, message, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID,
		e.UserID,
		string(e.Type),
		nullInt(e.AgentID),
		nullString(e.CallID),
		nullString(e.IPAddress),
		nullString(e.Message),
		e.CreatedAt.UTC().Truncate(time.Microsecond),
	)
	return err
}

// ListForUser returns the user's events newest first, at most limit rows.
func (r *SQLRepository) ListForUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, type, agent_id, call_id, ip_address, message, created_at
FROM audit_events
WHERE user_id = $1
ORDER BY created_at DESC, id
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e                   Event
			typ                 string
			agentID             sql.NullInt64
			callID, ip, message sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &agentID, &callID, &ip, &message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		e.AgentID = agentID.Int64
		e.CallID = callID.String
		e.IPAddress = ip.String
		e.Message = message.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullInt(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
