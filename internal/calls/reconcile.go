package calls

import (
	"context"
	"errors"
	"log/slog"

	"voice-console/internal/store"
)

// DrainResult summarizes one reconcile pass.
type DrainResult struct {
	Written   int   `json:"written"`
	Dropped   int   `json:"dropped"`
	Remaining int64 `json:"remaining"`
}

// Reconciler moves pending call logs into the store.
type Reconciler struct {
	queue PendingQueue
	store Store
	log   *slog.Logger
}

func NewReconciler(queue PendingQueue, store Store, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{queue: queue, store: store, log: log}
}

// Drain writes up to limit entries (limit <= 0 means all). In dry-run mode it
// only reports the backlog. Each entry is claimed, stored, then acknowledged,
// so a crash between the two leaves it in flight for the next pass. A failed
// write releases the entry and stops the pass so ordering is kept. Entries
// whose agent no longer exists are dropped.
func (r *Reconciler) Drain(ctx context.Context, limit int, dryRun bool) (DrainResult, error) {
	var res DrainResult
	if dryRun {
		n, err := r.queue.Len(ctx)
		res.Remaining = n
		return res, err
	}

	recovered, err := r.queue.Recover(ctx)
	if err != nil {
		return res, err
	}
	if recovered > 0 {
		r.log.WarnContext(ctx, "recovered in-flight call logs", "count", recovered)
	}

	for limit <= 0 || res.Written+res.Dropped < limit {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		claim, ok, err := r.queue.Claim(ctx)
		if errors.Is(err, ErrCorruptEntry) {
			r.log.WarnContext(ctx, "dropping undecodable call log", "err", err)
			res.Dropped++
			continue
		}
		if err != nil {
			return res, err
		}
		if !ok {
			break
		}
		e := claim.Entry
		if _, err := r.store.Create(ctx, e); err != nil {
			if errors.Is(err, store.ErrForeignKey) || e.Validate() != nil {
				r.log.WarnContext(ctx, "dropping orphaned call log", "call_id", e.CallID, "agent_id", e.AgentID, "err", err)
				res.Dropped++
				if aerr := r.queue.Ack(ctx, claim); aerr != nil {
					return res, aerr
				}
				continue
			}
			if qerr := r.queue.Release(ctx, claim); qerr != nil {
				r.log.ErrorContext(ctx, "release failed", "call_id", e.CallID, "err", qerr)
			}
			return res, err
		}
		res.Written++
		if err := r.queue.Ack(ctx, claim); err != nil {
			// Stored but still in flight: the next pass writes it again.
			return res, err
		}
	}

	n, err := r.queue.Len(ctx)
	res.Remaining = n
	return res, err
}
