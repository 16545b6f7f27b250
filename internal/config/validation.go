package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateConfig performs comprehensive validation on the complete
// configuration.
func ValidateConfig(config *Config) error {
	if err := validateChains(config.Chains); err != nil {
		return fmt.Errorf("chain config validation failed: %w", err)
	}

	if err := validateDatabase(&config.Database); err != nil {
		return fmt.Errorf("database config validation failed: %w", err)
	}

	if err := validateOpenSea(&config.OpenSea); err != nil {
		return fmt.Errorf("opensea config validation failed: %w", err)
	}

	if err := validateReconciler(&config.Reconciler); err != nil {
		return fmt.Errorf("reconciler config validation failed: %w", err)
	}

	if err := validateLogging(&config.Logging); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}

	return nil
}

func validateChains(chains map[string]ChainConfig) error {
	if len(chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}

	seen := make(map[uint64]string)
	for tag, chain := range chains {
		if chain.ChainID == 0 {
			return fmt.Errorf("chain %s: chain_id is required", tag)
		}
		if other, dup := seen[chain.ChainID]; dup {
			return fmt.Errorf("chain %s: chain_id %d already used by %s", tag, chain.ChainID, other)
		}
		seen[chain.ChainID] = tag

		if chain.RPCURL == "" {
			return fmt.Errorf("chain %s: rpc_url is required", tag)
		}
		if chain.Settlement != "" && !common.IsHexAddress(chain.Settlement) {
			return fmt.Errorf("chain %s: settlement is not a valid address: %s", tag, chain.Settlement)
		}
		if chain.Aggregator == "" {
			return fmt.Errorf("chain %s: aggregator address is required", tag)
		}
		if !common.IsHexAddress(chain.Aggregator) {
			return fmt.Errorf("chain %s: aggregator is not a valid address: %s", tag, chain.Aggregator)
		}
	}

	return nil
}

func validateDatabase(db *DatabaseConfig) error {
	switch db.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown driver %q (supported: postgres, sqlite)", db.Driver)
	}

	if db.DSN == "" {
		return fmt.Errorf("dsn is required")
	}

	return nil
}

func validateOpenSea(os *OpenSeaConfig) error {
	if os.Stream && os.APIKey == "" {
		return fmt.Errorf("stream requires api_key")
	}
	if os.PageDelay < 0 {
		return fmt.Errorf("page_delay must not be negative")
	}
	return nil
}

func validateReconciler(r *ReconcilerConfig) error {
	intervals := map[string]int64{
		"expiry_interval": int64(r.ExpiryInterval),
		"repair_interval": int64(r.RepairInterval),
		"reload_interval": int64(r.ReloadInterval),
		"sold_marker_ttl": int64(r.SoldMarkerTTL),
		"removal_ttl":     int64(r.RemovalTTL),
		"backfill_window": int64(r.BackfillWindow),
	}
	for name, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if r.RecomputeParallelism < 1 {
		return fmt.Errorf("recompute_parallelism must be at least 1")
	}

	return nil
}

func validateLogging(l *LoggingConfig) error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q (supported: debug, info, warn, error)", l.Level)
	}

	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (supported: text, json)", l.Format)
	}

	return nil
}
