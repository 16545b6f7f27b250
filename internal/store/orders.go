package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// OrderRepository reads and writes orders and order_items rows.
type OrderRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *OrderRepository) exec() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const orderColumns = `hash, chain_id, exchange_address, offerer, category, platform,
	asset_token, asset_identifier, currency_address, total_price, per_price, quantity,
	start_time, end_time, counter, salt, signature,
	is_fillable, is_cancelled, is_fulfilled, is_expired, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*OrderRow, error) {
	var o OrderRow
	var fillable, cancelled, fulfilled, expired int
	err := row.Scan(
		&o.Hash, &o.ChainID, &o.ExchangeAddress, &o.Offerer, &o.Category, &o.Platform,
		&o.AssetToken, &o.AssetIdentifier, &o.CurrencyAddress, &o.TotalPrice, &o.PerPrice, &o.Quantity,
		&o.StartTime, &o.EndTime, &o.Counter, &o.Salt, &o.Signature,
		&fillable, &cancelled, &fulfilled, &expired, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.IsFillable = fillable == 1
	o.IsCancelled = cancelled == 1
	o.IsFulfilled = fulfilled == 1
	o.IsExpired = expired == 1
	return &o, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Insert writes a new order row; a colliding primary key surfaces as
// ErrOrderExists so callers can treat re-delivery as a no-op.
func (r *OrderRepository) Insert(ctx context.Context, o *OrderRow) error {
	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`
	_, err := r.exec().ExecContext(ctx, query,
		o.Hash, o.ChainID, o.ExchangeAddress, o.Offerer, o.Category, o.Platform,
		o.AssetToken, o.AssetIdentifier, o.CurrencyAddress, o.TotalPrice, o.PerPrice, o.Quantity,
		o.StartTime, o.EndTime, o.Counter, o.Salt, o.Signature,
		boolInt(o.IsFillable), boolInt(o.IsCancelled), boolInt(o.IsFulfilled), boolInt(o.IsExpired),
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrOrderExists
		}
		return NewQueryError("insert_order", "failed to insert order", err)
	}
	return nil
}

// isDuplicateKey matches both drivers' unique-violation messages.
func isDuplicateKey(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// InsertItems writes the order's item rows.
func (r *OrderRepository) InsertItems(ctx context.Context, items []ItemRow) error {
	query := `INSERT INTO order_items
		(order_hash, chain_id, side, idx, item_type, token, identifier, start_amount, end_amount, available_amount, recipient)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	for _, item := range items {
		_, err := r.exec().ExecContext(ctx, query,
			item.OrderHash, item.ChainID, item.Side, item.Idx, item.ItemType,
			item.Token, item.Identifier, item.StartAmount, item.EndAmount, item.AvailableAmount, item.Recipient,
		)
		if err != nil {
			return NewQueryError("insert_order_items", "failed to insert order item", err)
		}
	}
	return nil
}

// Get loads one order row.
func (r *OrderRepository) Get(ctx context.Context, chainID uint64, hash string) (*OrderRow, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE chain_id = $1 AND hash = $2`
	o, err := scanOrder(r.exec().QueryRowContext(ctx, query, chainID, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, NewQueryError("get_order", "failed to query order", err)
	}
	return o, nil
}

// Exists reports whether the order is mirrored.
func (r *OrderRepository) Exists(ctx context.Context, chainID uint64, hash string) (bool, error) {
	var n int
	err := r.exec().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE chain_id = $1 AND hash = $2`, chainID, hash).Scan(&n)
	if err != nil {
		return false, NewQueryError("order_exists", "failed to query order existence", err)
	}
	return n > 0, nil
}

// Signature returns the stored signature blob for one order.
func (r *OrderRepository) Signature(ctx context.Context, chainID uint64, hash string) (string, error) {
	var sig string
	err := r.exec().QueryRowContext(ctx,
		`SELECT signature FROM orders WHERE chain_id = $1 AND hash = $2`, chainID, hash).Scan(&sig)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", NewQueryError("order_signature", "failed to query signature", err)
	}
	return sig, nil
}

// Items loads the order's item rows, offers before considerations.
func (r *OrderRepository) Items(ctx context.Context, chainID uint64, hash string) ([]ItemRow, error) {
	rows, err := r.exec().QueryContext(ctx,
		`SELECT order_hash, chain_id, side, idx, item_type, token, identifier, start_amount, end_amount, available_amount, recipient
		 FROM order_items WHERE chain_id = $1 AND order_hash = $2 ORDER BY side ASC, idx ASC`,
		chainID, hash)
	if err != nil {
		return nil, NewQueryError("order_items", "failed to query order items", err)
	}
	defer rows.Close()

	var items []ItemRow
	for rows.Next() {
		var item ItemRow
		if err := rows.Scan(&item.OrderHash, &item.ChainID, &item.Side, &item.Idx, &item.ItemType,
			&item.Token, &item.Identifier, &item.StartAmount, &item.EndAmount, &item.AvailableAmount, &item.Recipient); err != nil {
			return nil, NewQueryError("order_items", "failed to scan row", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, NewQueryError("order_items", "error iterating rows", err)
	}
	return items, nil
}

// SetAvailableAmount updates one item's remaining amount after a
// partial fill.
func (r *OrderRepository) SetAvailableAmount(ctx context.Context, chainID uint64, hash string, side, idx int, amount string) error {
	_, err := r.exec().ExecContext(ctx,
		`UPDATE order_items SET available_amount = $1
		 WHERE chain_id = $2 AND order_hash = $3 AND side = $4 AND idx = $5`,
		amount, chainID, hash, side, idx)
	if err != nil {
		return NewQueryError("set_available_amount", "failed to update available amount", err)
	}
	return nil
}

// MarkCancelled flips the order to cancelled. Cancellation is terminal.
func (r *OrderRepository) MarkCancelled(ctx context.Context, chainID uint64, hash string, now int64) error {
	_, err := r.exec().ExecContext(ctx,
		`UPDATE orders SET is_fillable = 0, is_cancelled = 1, updated_at = $1
		 WHERE chain_id = $2 AND hash = $3`, now, chainID, hash)
	if err != nil {
		return NewQueryError("mark_cancelled", "failed to mark order cancelled", err)
	}
	return nil
}

// MarkFulfilled flips the order to fully filled.
func (r *OrderRepository) MarkFulfilled(ctx context.Context, chainID uint64, hash string, now int64) error {
	_, err := r.exec().ExecContext(ctx,
		`UPDATE orders SET is_fillable = 0, is_fulfilled = 1, updated_at = $1
		 WHERE chain_id = $2 AND hash = $3`, now, chainID, hash)
	if err != nil {
		return NewQueryError("mark_fulfilled", "failed to mark order fulfilled", err)
	}
	return nil
}

// Disable takes the order off the books without deciding why.
func (r *OrderRepository) Disable(ctx context.Context, chainID uint64, hash string, now int64) error {
	_, err := r.exec().ExecContext(ctx,
		`UPDATE orders SET is_fillable = 0, updated_at = $1
		 WHERE chain_id = $2 AND hash = $3`, now, chainID, hash)
	if err != nil {
		return NewQueryError("disable_order", "failed to disable order", err)
	}
	return nil
}

// Reactivate flips a disabled order back to fillable, but only while
// it is not cancelled, not fulfilled and not expired. Returns whether
// the row changed.
func (r *OrderRepository) Reactivate(ctx context.Context, chainID uint64, hash string, now int64) (bool, error) {
	res, err := r.exec().ExecContext(ctx,
		`UPDATE orders SET is_fillable = 1, updated_at = $1
		 WHERE chain_id = $2 AND hash = $3
		   AND is_fillable = 0 AND is_cancelled = 0 AND is_fulfilled = 0 AND is_expired = 0 AND end_time > $4`,
		now, chainID, hash, now)
	if err != nil {
		return false, NewQueryError("reactivate_order", "failed to reactivate order", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, NewQueryError("reactivate_order", "failed to read rows affected", err)
	}
	return affected > 0, nil
}

// ExpireDue marks every fillable order past its end time expired and
// returns the affected rows so callers can recompute indices.
func (r *OrderRepository) ExpireDue(ctx context.Context, chainID uint64, now int64) ([]OrderRow, error) {
	rows, err := r.exec().QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE chain_id = $1 AND is_fillable = 1 AND end_time <= $2`, chainID, now)
	if err != nil {
		return nil, NewQueryError("expire_due", "failed to query expiring orders", err)
	}
	defer rows.Close()

	var expired []OrderRow
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, NewQueryError("expire_due", "failed to scan row", err)
		}
		expired = append(expired, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, NewQueryError("expire_due", "error iterating rows", err)
	}

	if len(expired) == 0 {
		return nil, nil
	}
	_, err = r.exec().ExecContext(ctx,
		`UPDATE orders SET is_fillable = 0, is_expired = 1, updated_at = $1
		 WHERE chain_id = $2 AND is_fillable = 1 AND end_time <= $3`, now, chainID, now)
	if err != nil {
		return nil, NewQueryError("expire_due", "failed to mark orders expired", err)
	}
	return expired, nil
}

// FillableByAsset lists the live orders of one asset and category.
func (r *OrderRepository) FillableByAsset(ctx context.Context, chainID uint64, token, identifier, category string) ([]OrderRow, error) {
	return r.queryOrders(ctx, "fillable_by_asset",
		`SELECT `+orderColumns+` FROM orders
		 WHERE chain_id = $1 AND asset_token = $2 AND asset_identifier = $3 AND category = $4
		   AND is_fillable = 1 AND is_cancelled = 0 AND is_fulfilled = 0 AND is_expired = 0
		 ORDER BY per_price ASC, platform ASC, end_time ASC`,
		chainID, token, identifier, category)
}

// FillableByOffererAsset lists the live orders one account has open on
// one asset; the transfer handler walks these after an ownership move.
func (r *OrderRepository) FillableByOffererAsset(ctx context.Context, chainID uint64, token, identifier, offerer string) ([]OrderRow, error) {
	return r.queryOrders(ctx, "fillable_by_offerer_asset",
		`SELECT `+orderColumns+` FROM orders
		 WHERE chain_id = $1 AND asset_token = $2 AND asset_identifier = $3 AND offerer = $4 AND is_fillable = 1`,
		chainID, token, identifier, offerer)
}

// DisableCollection takes every fillable listing of a collection off
// the books and returns the affected rows.
func (r *OrderRepository) DisableCollection(ctx context.Context, chainID uint64, token string, now int64) ([]OrderRow, error) {
	affected, err := r.queryOrders(ctx, "disable_collection",
		`SELECT `+orderColumns+` FROM orders
		 WHERE chain_id = $1 AND asset_token = $2 AND category = $3 AND is_fillable = 1`,
		chainID, token, "listing")
	if err != nil {
		return nil, err
	}
	if len(affected) == 0 {
		return nil, nil
	}
	_, err = r.exec().ExecContext(ctx,
		`UPDATE orders SET is_fillable = 0, updated_at = $1
		 WHERE chain_id = $2 AND asset_token = $3 AND category = $4 AND is_fillable = 1`,
		now, chainID, token, "listing")
	if err != nil {
		return nil, NewQueryError("disable_collection", "failed to disable collection orders", err)
	}
	return affected, nil
}

func (r *OrderRepository) queryOrders(ctx context.Context, op, query string, args ...any) ([]OrderRow, error) {
	rows, err := r.exec().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewQueryError(op, "failed to query orders", err)
	}
	defer rows.Close()

	var out []OrderRow
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, NewQueryError(op, "failed to scan row", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, NewQueryError(op, "error iterating rows", err)
	}
	return out, nil
}

// RecomputeBestOrder rebuilds the best-order index entry for one asset
// and category from committed order rows: cheapest first for listings,
// richest first for offers, platform then end time breaking ties.
func (r *OrderRepository) RecomputeBestOrder(ctx context.Context, chainID uint64, token, identifier, category string, now int64) error {
	direction := "ASC"
	if category != "listing" {
		direction = "DESC"
	}
	query := fmt.Sprintf(
		`SELECT hash FROM orders
		 WHERE chain_id = $1 AND asset_token = $2 AND asset_identifier = $3 AND category = $4
		   AND is_fillable = 1 AND is_cancelled = 0 AND is_fulfilled = 0 AND is_expired = 0 AND end_time > $5
		 ORDER BY per_price %s, platform ASC, end_time ASC LIMIT 1`, direction)

	var best string
	err := r.exec().QueryRowContext(ctx, query, chainID, token, identifier, category, now).Scan(&best)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = r.exec().ExecContext(ctx,
			`DELETE FROM asset_best_orders WHERE chain_id = $1 AND token = $2 AND identifier = $3 AND category = $4`,
			chainID, token, identifier, category)
		if err != nil {
			return NewQueryError("recompute_best_order", "failed to clear best order", err)
		}
		return nil
	}
	if err != nil {
		return NewQueryError("recompute_best_order", "failed to query best order", err)
	}

	_, err = r.exec().ExecContext(ctx,
		`INSERT INTO asset_best_orders (chain_id, token, identifier, category, order_hash, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (chain_id, token, identifier, category) DO UPDATE SET
		 order_hash = EXCLUDED.order_hash, updated_at = EXCLUDED.updated_at`,
		chainID, token, identifier, category, best, now)
	if err != nil {
		return NewQueryError("recompute_best_order", "failed to upsert best order", err)
	}
	return nil
}

// BestOrder reads the current index entry; empty string when none.
func (r *OrderRepository) BestOrder(ctx context.Context, chainID uint64, token, identifier, category string) (string, error) {
	var hash string
	err := r.exec().QueryRowContext(ctx,
		`SELECT order_hash FROM asset_best_orders WHERE chain_id = $1 AND token = $2 AND identifier = $3 AND category = $4`,
		chainID, token, identifier, category).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", NewQueryError("best_order", "failed to query best order", err)
	}
	return hash, nil
}
