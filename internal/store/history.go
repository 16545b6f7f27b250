package store

import (
	"context"
	"database/sql"
)

// HistoryRepository writes and reads order_history rows. The composite
// primary key makes duplicate event delivery a silent no-op.
type HistoryRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *HistoryRepository) exec() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Insert writes one history row; a duplicate (hash, tx hash, chain)
// key is ignored.
func (r *HistoryRepository) Insert(ctx context.Context, h *HistoryRow) error {
	_, err := r.exec().ExecContext(ctx,
		`INSERT INTO order_history (order_hash, tx_hash, chain_id, category, price, maker, taker, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (order_hash, tx_hash, chain_id) DO NOTHING`,
		h.OrderHash, h.TxHash, h.ChainID, h.Category, h.Price, h.Maker, h.Taker, h.CreatedAt)
	if err != nil {
		return NewQueryError("insert_history", "failed to insert history row", err)
	}
	return nil
}

// Exists reports whether a history row is already recorded.
func (r *HistoryRepository) Exists(ctx context.Context, chainID uint64, orderHash, txHash string) (bool, error) {
	var n int
	err := r.exec().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_history WHERE chain_id = $1 AND order_hash = $2 AND tx_hash = $3`,
		chainID, orderHash, txHash).Scan(&n)
	if err != nil {
		return false, NewQueryError("history_exists", "failed to query history", err)
	}
	return n > 0, nil
}

// ListByOrder returns an order's history, newest first.
func (r *HistoryRepository) ListByOrder(ctx context.Context, chainID uint64, orderHash string) ([]HistoryRow, error) {
	rows, err := r.exec().QueryContext(ctx,
		`SELECT order_hash, tx_hash, chain_id, category, price, maker, taker, created_at
		 FROM order_history WHERE chain_id = $1 AND order_hash = $2 ORDER BY created_at DESC`,
		chainID, orderHash)
	if err != nil {
		return nil, NewQueryError("list_history", "failed to query history", err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.OrderHash, &h.TxHash, &h.ChainID, &h.Category, &h.Price, &h.Maker, &h.Taker, &h.CreatedAt); err != nil {
			return nil, NewQueryError("list_history", "failed to scan row", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, NewQueryError("list_history", "error iterating rows", err)
	}
	return out, nil
}
