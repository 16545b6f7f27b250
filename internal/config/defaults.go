package config

import "github.com/spf13/viper"

// setDefaults sets the built-in defaults applied before the config
// file and environment overrides.
func setDefaults(v *viper.Viper) {
	// Database defaults: a local SQLite file so the daemon starts
	// without a Postgres instance.
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "aggregatord.db")

	// OpenSea defaults
	v.SetDefault("opensea.base_url", "https://api.opensea.io")
	v.SetDefault("opensea.stream_url", "wss://stream.openseabeta.com/socket/websocket")
	v.SetDefault("opensea.stream", false)
	v.SetDefault("opensea.page_delay", "250ms")

	// Reconciler defaults
	v.SetDefault("reconciler.expiry_interval", "1m")
	v.SetDefault("reconciler.repair_interval", "5m")
	v.SetDefault("reconciler.reload_interval", "30m")
	v.SetDefault("reconciler.sold_marker_ttl", "2m")
	v.SetDefault("reconciler.removal_ttl", "15m")
	v.SetDefault("reconciler.backfill_window", "24h")
	v.SetDefault("reconciler.recompute_parallelism", 4)
	v.SetDefault("reconciler.checkpoint_path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}
