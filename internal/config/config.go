package config

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lootex/aggregatord/internal/seaport"
)

// Config is the complete aggregatord configuration.
type Config struct {
	// Chains maps a marketplace chain tag ("ethereum", "matic", ...) to
	// the RPC endpoint and contract addresses used on that chain.
	Chains map[string]ChainConfig `toml:"chains" mapstructure:"chains"`

	Database   DatabaseConfig   `toml:"database" mapstructure:"database"`
	OpenSea    OpenSeaConfig    `toml:"opensea" mapstructure:"opensea"`
	Reconciler ReconcilerConfig `toml:"reconciler" mapstructure:"reconciler"`
	Logging    LoggingConfig    `toml:"logging" mapstructure:"logging"`

	configPath string `toml:"-" mapstructure:"-"`
}

// ChainConfig describes one supported chain.
type ChainConfig struct {
	ChainID uint64 `toml:"chain_id" mapstructure:"chain_id"`
	RPCURL  string `toml:"rpc_url" mapstructure:"rpc_url"`

	// Settlement is the exchange contract address. Empty selects the
	// canonical Seaport 1.6 deployment, which lives at the same address
	// on every supported chain.
	Settlement string `toml:"settlement" mapstructure:"settlement"`

	// Aggregator is the batch-fulfillment contract the planner targets.
	Aggregator string `toml:"aggregator" mapstructure:"aggregator"`
}

// SettlementAddress returns the configured exchange address, falling
// back to the canonical Seaport 1.6 deployment.
func (c ChainConfig) SettlementAddress() common.Address {
	if c.Settlement == "" {
		return seaport.SeaportV16Address
	}
	return common.HexToAddress(c.Settlement)
}

// AggregatorAddress returns the configured aggregator address.
func (c ChainConfig) AggregatorAddress() common.Address {
	return common.HexToAddress(c.Aggregator)
}

// DatabaseConfig selects the relational backend for the order mirror.
type DatabaseConfig struct {
	Driver string `toml:"driver" mapstructure:"driver"`
	DSN    string `toml:"dsn" mapstructure:"dsn"`
}

// OpenSeaConfig holds the external marketplace API credentials.
type OpenSeaConfig struct {
	APIKey    string `toml:"api_key" mapstructure:"api_key"`
	BaseURL   string `toml:"base_url" mapstructure:"base_url"`
	StreamURL string `toml:"stream_url" mapstructure:"stream_url"`

	// Stream enables the push-event websocket. Backfill polling still
	// runs when it is off.
	Stream bool `toml:"stream" mapstructure:"stream"`

	PageDelay time.Duration `toml:"page_delay" mapstructure:"page_delay"`
}

// ReconcilerConfig tunes the mirror maintenance jobs.
type ReconcilerConfig struct {
	ExpiryInterval time.Duration `toml:"expiry_interval" mapstructure:"expiry_interval"`
	RepairInterval time.Duration `toml:"repair_interval" mapstructure:"repair_interval"`
	ReloadInterval time.Duration `toml:"reload_interval" mapstructure:"reload_interval"`
	SoldMarkerTTL  time.Duration `toml:"sold_marker_ttl" mapstructure:"sold_marker_ttl"`
	RemovalTTL     time.Duration `toml:"removal_ttl" mapstructure:"removal_ttl"`
	BackfillWindow time.Duration `toml:"backfill_window" mapstructure:"backfill_window"`

	RecomputeParallelism int `toml:"recompute_parallelism" mapstructure:"recompute_parallelism"`

	// CheckpointPath is the pebble directory for stream progress and
	// job stop flags. Empty disables checkpointing.
	CheckpointPath string `toml:"checkpoint_path" mapstructure:"checkpoint_path"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"`
}

// DefaultConfigPath is where the binary looks when no --config flag is
// given.
const DefaultConfigPath = "aggregatord.toml"

// GetConfigPath returns the path the configuration was loaded from.
func (c *Config) GetConfigPath() string {
	return c.configPath
}
