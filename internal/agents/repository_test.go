package agents

import (
	"bytes"
	"context"
	"testing"
	"time"

	"voice-console/internal/secrets"
	"voice-console/internal/store/storetest"
)

func newTestRepo(t *testing.T, sealer *secrets.Sealer) *Repository {
	t.Helper()
	repo := NewRepository(storetest.OpenDB(t), sealer)
	now := time.Unix(1700000000, 0).UTC()
	repo.clock = func() time.Time { return now }
	return repo
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestRepository_CreateDefaultsActive(t *testing.T) {
	repo := newTestRepo(t, nil)
	ctx := context.Background()

	a, err := repo.Create(ctx, NewAgent{UserID: "u1", AgentName: "Support Bot", AgentID: "agent_1", APIKey: "sk-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == 0 || !a.IsActive {
		t.Fatalf("expected generated id and active agent, got %+v", a)
	}
	if a.PhoneNumber != nil {
		t.Fatalf("expected nil phone number, got %q", *a.PhoneNumber)
	}

	got, ok, err := repo.Get(ctx, a.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.APIKey != "sk-1" || got.AgentName != "Support Bot" {
		t.Fatalf("unexpected row: %+v", got)
	}
	if !got.CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("created_at mismatch: %s vs %s", got.CreatedAt, a.CreatedAt)
	}
}

func TestRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t, nil)
	_, ok, err := repo.Get(context.Background(), 42)
	if err != nil || ok {
		t.Fatalf("expected absent without error, ok=%v err=%v", ok, err)
	}
}

func TestRepository_ListForUserScopes(t *testing.T) {
	repo := newTestRepo(t, nil)
	ctx := context.Background()
	for _, u := range []string{"u1", "u2", "u1"} {
		if _, err := repo.Create(ctx, NewAgent{UserID: u, AgentName: "a", AgentID: "x", APIKey: "k"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	list, err := repo.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(list))
	}
	empty, err := repo.ListForUser(ctx, "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v err=%v", empty, err)
	}
}

func TestRepository_UpdatePartial(t *testing.T) {
	repo := newTestRepo(t, nil)
	ctx := context.Background()
	a, err := repo.Create(ctx, NewAgent{UserID: "u1", AgentName: "Support Bot", AgentID: "agent_1", APIKey: "sk-1", Description: strPtr("first")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	later := time.Unix(1700000600, 0).UTC()
	repo.clock = func() time.Time { return later }
	got, ok, err := repo.Update(ctx, a.ID, AgentPatch{IsActive: boolPtr(false)})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	if got.IsActive {
		t.Fatalf("expected inactive")
	}
	if got.AgentName != "Support Bot" || got.Description == nil || *got.Description != "first" {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated_at bump, got %s", got.UpdatedAt)
	}

	_, ok, err = repo.Update(ctx, 999, AgentPatch{AgentName: strPtr("x")})
	if err != nil || ok {
		t.Fatalf("expected missing row, ok=%v err=%v", ok, err)
	}
}

func TestRepository_DeleteRemovesLogsAndIsIdempotent(t *testing.T) {
	repo := newTestRepo(t, nil)
	ctx := context.Background()
	a, err := repo.Create(ctx, NewAgent{UserID: "u1", AgentName: "a", AgentID: "x", APIKey: "k"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.db.ExecContext(ctx,
		`INSERT INTO call_logs (agent_id, call_id, status, created_at) VALUES ($1, $2, $3, $4)`,
		a.ID, "call_1", "initiated", time.Now().UTC(),
	); err != nil {
		t.Fatalf("insert log: %v", err)
	}

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	var n int
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM call_logs`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected logs removed with agent, got %d", n)
	}
}

func TestRepository_SealsAPIKeyAtRest(t *testing.T) {
	sealer, err := secrets.NewSealer(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	repo := newTestRepo(t, sealer)
	ctx := context.Background()

	a, err := repo.Create(ctx, NewAgent{UserID: "u1", AgentName: "a", AgentID: "x", APIKey: "sk-secret"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.APIKey != "sk-secret" {
		t.Fatalf("expected opened key, got %q", a.APIKey)
	}

	var raw string
	if err := repo.db.QueryRowContext(ctx, `SELECT api_key FROM agent_configs WHERE id = $1`, a.ID).Scan(&raw); err != nil {
		t.Fatalf("select: %v", err)
	}
	if raw == "sk-secret" || !secrets.IsSealed(raw) {
		t.Fatalf("expected sealed value at rest, got %q", raw)
	}
}
