package store

import (
	"context"
	"database/sql"
)

// WatchRepository holds the watched-collection roster and the repair
// log driving event backfills.
type WatchRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *WatchRepository) exec() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Upsert adds or refreshes one watched collection.
func (r *WatchRepository) Upsert(ctx context.Context, w *WatchedCollection) error {
	_, err := r.exec().ExecContext(ctx,
		`INSERT INTO watched_collections (chain_id, token, slug, ranking, selected)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (chain_id, token) DO UPDATE SET
		 slug = EXCLUDED.slug, ranking = EXCLUDED.ranking, selected = EXCLUDED.selected`,
		w.ChainID, w.Token, w.Slug, w.Ranking, boolInt(w.Selected))
	if err != nil {
		return NewQueryError("upsert_watched", "failed to upsert watched collection", err)
	}
	return nil
}

// Delete removes one watched collection.
func (r *WatchRepository) Delete(ctx context.Context, chainID uint64, token string) error {
	_, err := r.exec().ExecContext(ctx,
		`DELETE FROM watched_collections WHERE chain_id = $1 AND token = $2`, chainID, token)
	if err != nil {
		return NewQueryError("delete_watched", "failed to delete watched collection", err)
	}
	return nil
}

// List returns every watched collection, selected first, then by
// ranking.
func (r *WatchRepository) List(ctx context.Context) ([]WatchedCollection, error) {
	rows, err := r.exec().QueryContext(ctx,
		`SELECT chain_id, token, slug, ranking, selected FROM watched_collections
		 ORDER BY selected DESC, ranking ASC`)
	if err != nil {
		return nil, NewQueryError("list_watched", "failed to query watched collections", err)
	}
	defer rows.Close()

	var out []WatchedCollection
	for rows.Next() {
		var w WatchedCollection
		var selected int
		if err := rows.Scan(&w.ChainID, &w.Token, &w.Slug, &w.Ranking, &selected); err != nil {
			return nil, NewQueryError("list_watched", "failed to scan row", err)
		}
		w.Selected = selected == 1
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, NewQueryError("list_watched", "error iterating rows", err)
	}
	return out, nil
}

// InsertRepair queues one backfill window; re-queuing an identical
// window is a no-op.
func (r *WatchRepository) InsertRepair(ctx context.Context, log *RepairLog) error {
	_, err := r.exec().ExecContext(ctx,
		`INSERT INTO repair_logs (chain_id, token, from_time, to_time, status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (chain_id, token, from_time, to_time) DO NOTHING`,
		log.ChainID, log.Token, log.FromTime, log.ToTime, log.Status, log.CreatedAt)
	if err != nil {
		return NewQueryError("insert_repair", "failed to insert repair log", err)
	}
	return nil
}

// PendingRepairs returns the backfill windows still waiting, oldest
// first.
func (r *WatchRepository) PendingRepairs(ctx context.Context, chainID uint64) ([]RepairLog, error) {
	rows, err := r.exec().QueryContext(ctx,
		`SELECT chain_id, token, from_time, to_time, status, created_at FROM repair_logs
		 WHERE chain_id = $1 AND status = 'pending' ORDER BY created_at ASC`, chainID)
	if err != nil {
		return nil, NewQueryError("pending_repairs", "failed to query repair logs", err)
	}
	defer rows.Close()

	var out []RepairLog
	for rows.Next() {
		var log RepairLog
		if err := rows.Scan(&log.ChainID, &log.Token, &log.FromTime, &log.ToTime, &log.Status, &log.CreatedAt); err != nil {
			return nil, NewQueryError("pending_repairs", "failed to scan row", err)
		}
		out = append(out, log)
	}
	if err := rows.Err(); err != nil {
		return nil, NewQueryError("pending_repairs", "error iterating rows", err)
	}
	return out, nil
}

// MarkRepairDone flips one backfill window to done.
func (r *WatchRepository) MarkRepairDone(ctx context.Context, log *RepairLog) error {
	_, err := r.exec().ExecContext(ctx,
		`UPDATE repair_logs SET status = 'done'
		 WHERE chain_id = $1 AND token = $2 AND from_time = $3 AND to_time = $4`,
		log.ChainID, log.Token, log.FromTime, log.ToTime)
	if err != nil {
		return NewQueryError("mark_repair_done", "failed to update repair log", err)
	}
	return nil
}
