package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// CurrencyRepository holds the payment-token allow-list: native plus
// the wrapped tokens listings may be priced in.
type CurrencyRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *CurrencyRepository) exec() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Upsert adds or refreshes one allow-listed currency.
func (r *CurrencyRepository) Upsert(ctx context.Context, c *CurrencyRow) error {
	_, err := r.exec().ExecContext(ctx,
		`INSERT INTO currencies (chain_id, address, symbol, decimals, is_native)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (chain_id, address) DO UPDATE SET
		 symbol = EXCLUDED.symbol, decimals = EXCLUDED.decimals, is_native = EXCLUDED.is_native`,
		c.ChainID, strings.ToLower(c.Address), c.Symbol, c.Decimals, boolInt(c.IsNative))
	if err != nil {
		return NewQueryError("upsert_currency", "failed to upsert currency", err)
	}
	return nil
}

// Get resolves an allow-listed currency; ErrUnknownCurrency when the
// address is not listed.
func (r *CurrencyRepository) Get(ctx context.Context, chainID uint64, address string) (*CurrencyRow, error) {
	var c CurrencyRow
	var native int
	err := r.exec().QueryRowContext(ctx,
		`SELECT chain_id, address, symbol, decimals, is_native FROM currencies
		 WHERE chain_id = $1 AND address = $2`,
		chainID, strings.ToLower(address)).Scan(&c.ChainID, &c.Address, &c.Symbol, &c.Decimals, &native)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownCurrency
	}
	if err != nil {
		return nil, NewQueryError("get_currency", "failed to query currency", err)
	}
	c.IsNative = native == 1
	return &c, nil
}

// Allowed reports whether the address is an accepted price unit.
func (r *CurrencyRepository) Allowed(ctx context.Context, chainID uint64, address string) (bool, error) {
	_, err := r.Get(ctx, chainID, address)
	if errors.Is(err, ErrUnknownCurrency) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
