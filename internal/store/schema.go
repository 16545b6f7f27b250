package store

// schema is shared verbatim by both drivers: composite primary keys
// instead of serial columns, INTEGER 0/1 booleans, unix-second BIGINT
// timestamps, and big integers as decimal TEXT.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
	hash             TEXT NOT NULL,
	chain_id         BIGINT NOT NULL,
	exchange_address TEXT NOT NULL,
	offerer          TEXT NOT NULL,
	category         TEXT NOT NULL,
	platform         INTEGER NOT NULL,
	asset_token      TEXT NOT NULL,
	asset_identifier TEXT NOT NULL,
	currency_address TEXT NOT NULL,
	total_price      TEXT NOT NULL,
	per_price        TEXT NOT NULL,
	quantity         TEXT NOT NULL,
	start_time       BIGINT NOT NULL,
	end_time         BIGINT NOT NULL,
	counter          TEXT NOT NULL,
	salt             TEXT NOT NULL,
	signature        TEXT NOT NULL,
	is_fillable      INTEGER NOT NULL DEFAULT 0,
	is_cancelled     INTEGER NOT NULL DEFAULT 0,
	is_fulfilled     INTEGER NOT NULL DEFAULT 0,
	is_expired       INTEGER NOT NULL DEFAULT 0,
	created_at       BIGINT NOT NULL,
	updated_at       BIGINT NOT NULL,
	PRIMARY KEY (hash, chain_id)
);

CREATE INDEX IF NOT EXISTS idx_orders_asset
	ON orders (chain_id, asset_token, asset_identifier);
CREATE INDEX IF NOT EXISTS idx_orders_offerer
	ON orders (chain_id, offerer);
CREATE INDEX IF NOT EXISTS idx_orders_end_time
	ON orders (is_fillable, end_time);

CREATE TABLE IF NOT EXISTS order_items (
	order_hash       TEXT NOT NULL,
	chain_id         BIGINT NOT NULL,
	side             INTEGER NOT NULL,
	idx              INTEGER NOT NULL,
	item_type        INTEGER NOT NULL,
	token            TEXT NOT NULL,
	identifier       TEXT NOT NULL,
	start_amount     TEXT NOT NULL,
	end_amount       TEXT NOT NULL,
	available_amount TEXT NOT NULL,
	recipient        TEXT NOT NULL,
	PRIMARY KEY (order_hash, chain_id, side, idx)
);

CREATE TABLE IF NOT EXISTS order_history (
	order_hash TEXT NOT NULL,
	tx_hash    TEXT NOT NULL,
	chain_id   BIGINT NOT NULL,
	category   TEXT NOT NULL,
	price      TEXT NOT NULL,
	maker      TEXT NOT NULL,
	taker      TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	PRIMARY KEY (order_hash, tx_hash, chain_id)
);

CREATE TABLE IF NOT EXISTS assets (
	chain_id   BIGINT NOT NULL,
	token      TEXT NOT NULL,
	identifier TEXT NOT NULL,
	kind       INTEGER NOT NULL,
	slug       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (chain_id, token, identifier)
);

CREATE TABLE IF NOT EXISTS asset_owners (
	chain_id   BIGINT NOT NULL,
	token      TEXT NOT NULL,
	identifier TEXT NOT NULL,
	owner      TEXT NOT NULL,
	balance    TEXT NOT NULL,
	updated_at BIGINT NOT NULL,
	PRIMARY KEY (chain_id, token, identifier, owner)
);

CREATE TABLE IF NOT EXISTS asset_best_orders (
	chain_id   BIGINT NOT NULL,
	token      TEXT NOT NULL,
	identifier TEXT NOT NULL,
	category   TEXT NOT NULL,
	order_hash TEXT NOT NULL,
	updated_at BIGINT NOT NULL,
	PRIMARY KEY (chain_id, token, identifier, category)
);

CREATE TABLE IF NOT EXISTS currencies (
	chain_id  BIGINT NOT NULL,
	address   TEXT NOT NULL,
	symbol    TEXT NOT NULL,
	decimals  INTEGER NOT NULL,
	is_native INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (chain_id, address)
);

CREATE TABLE IF NOT EXISTS watched_collections (
	chain_id BIGINT NOT NULL,
	token    TEXT NOT NULL,
	slug     TEXT NOT NULL,
	ranking  INTEGER NOT NULL DEFAULT 0,
	selected INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (chain_id, token)
);

CREATE TABLE IF NOT EXISTS repair_logs (
	chain_id   BIGINT NOT NULL,
	token      TEXT NOT NULL,
	from_time  BIGINT NOT NULL,
	to_time    BIGINT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at BIGINT NOT NULL,
	PRIMARY KEY (chain_id, token, from_time, to_time)
);
`
