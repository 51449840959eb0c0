package config

import "github.com/spf13/viper"

// setDefaults seeds every key so that a bare environment still yields a
// runnable single-node daemon.
func setDefaults(v *viper.Viper) {
	v.SetDefault("node.name", "levyd")
	v.SetDefault("node.data_dir", "/var/lib/levyd")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("state.backend", "pebble")
	v.SetDefault("state.path", "")
	v.SetDefault("state.compressor", "lz4")
	v.SetDefault("state.compression_min", 64)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.cache_size", 256)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen", "127.0.0.1:7030")
	v.SetDefault("api.admin_addr", "")
	v.SetDefault("api.max_body_bytes", 1<<20)

	v.SetDefault("stream.enabled", true)
	v.SetDefault("stream.listen", "127.0.0.1:7031")
	v.SetDefault("stream.send_buffer", 128)
	v.SetDefault("stream.ping_seconds", 30)

	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.listen", "127.0.0.1:7032")
	v.SetDefault("grpc.max_recv_bytes", 4<<20)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen", "127.0.0.1:7033")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("exchange.adapter", "fixedrate")
	v.SetDefault("exchange.fixedrate.rate_num", 1)
	v.SetDefault("exchange.fixedrate.rate_den", 1)
	v.SetDefault("exchange.fixedrate.slippage_bps", 0)
	v.SetDefault("exchange.fixedrate.liquidity", 0)

	v.SetDefault("genesis.native_asset", "LVY")
	v.SetDefault("genesis.secondary_asset", "USDX")
	v.SetDefault("genesis.initial_supply", uint64(1_000_000_000))
	v.SetDefault("genesis.owner", "")
	v.SetDefault("genesis.treasury", "")
	v.SetDefault("genesis.supply_holder", "")
	v.SetDefault("genesis.rates", map[string]uint32{
		"transfer": 200,
		"buy":      300,
		"sell":     300,
	})
	v.SetDefault("genesis.max_transfer", 0)
	v.SetDefault("genesis.max_wallet", 0)
	v.SetDefault("genesis.threshold", 0)
}
