package store

import (
	"context"
	"database/sql"
	"errors"
)

// AssetRepository writes assets and their ownership rows.
type AssetRepository struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *AssetRepository) exec() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Upsert creates or refreshes one asset row.
func (r *AssetRepository) Upsert(ctx context.Context, a *AssetRow) error {
	_, err := r.exec().ExecContext(ctx,
		`INSERT INTO assets (chain_id, token, identifier, kind, slug)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (chain_id, token, identifier) DO UPDATE SET
		 kind = EXCLUDED.kind, slug = EXCLUDED.slug`,
		a.ChainID, a.Token, a.Identifier, a.Kind, a.Slug)
	if err != nil {
		return NewQueryError("upsert_asset", "failed to upsert asset", err)
	}
	return nil
}

// Get loads one asset row.
func (r *AssetRepository) Get(ctx context.Context, chainID uint64, token, identifier string) (*AssetRow, error) {
	var a AssetRow
	err := r.exec().QueryRowContext(ctx,
		`SELECT chain_id, token, identifier, kind, slug FROM assets
		 WHERE chain_id = $1 AND token = $2 AND identifier = $3`,
		chainID, token, identifier).Scan(&a.ChainID, &a.Token, &a.Identifier, &a.Kind, &a.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, NewQueryError("get_asset", "failed to query asset", err)
	}
	return &a, nil
}

// SetSoleOwner replaces an ERC721 asset's ownership with one holder.
func (r *AssetRepository) SetSoleOwner(ctx context.Context, chainID uint64, token, identifier, owner string, now int64) error {
	_, err := r.exec().ExecContext(ctx,
		`DELETE FROM asset_owners WHERE chain_id = $1 AND token = $2 AND identifier = $3`,
		chainID, token, identifier)
	if err != nil {
		return NewQueryError("set_sole_owner", "failed to clear owners", err)
	}
	return r.SetBalance(ctx, chainID, token, identifier, owner, "1", now)
}

// SetBalance upserts one holder's ERC1155 balance; a zero balance
// removes the row.
func (r *AssetRepository) SetBalance(ctx context.Context, chainID uint64, token, identifier, owner, balance string, now int64) error {
	if balance == "0" || balance == "" {
		_, err := r.exec().ExecContext(ctx,
			`DELETE FROM asset_owners WHERE chain_id = $1 AND token = $2 AND identifier = $3 AND owner = $4`,
			chainID, token, identifier, owner)
		if err != nil {
			return NewQueryError("set_balance", "failed to delete owner row", err)
		}
		return nil
	}
	_, err := r.exec().ExecContext(ctx,
		`INSERT INTO asset_owners (chain_id, token, identifier, owner, balance, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (chain_id, token, identifier, owner) DO UPDATE SET
		 balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at`,
		chainID, token, identifier, owner, balance, now)
	if err != nil {
		return NewQueryError("set_balance", "failed to upsert owner row", err)
	}
	return nil
}

// Balance reads one holder's balance; "0" when no row exists.
func (r *AssetRepository) Balance(ctx context.Context, chainID uint64, token, identifier, owner string) (string, error) {
	var balance string
	err := r.exec().QueryRowContext(ctx,
		`SELECT balance FROM asset_owners WHERE chain_id = $1 AND token = $2 AND identifier = $3 AND owner = $4`,
		chainID, token, identifier, owner).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return "0", nil
	}
	if err != nil {
		return "", NewQueryError("owner_balance", "failed to query balance", err)
	}
	return balance, nil
}
