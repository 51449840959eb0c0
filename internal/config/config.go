// Package config loads and validates the daemon configuration from
// defaults, an optional TOML file, and LEVYD_-prefixed environment
// variables, in that order of precedence.
package config

import (
	"path/filepath"
)

// Config is the complete daemon configuration.
type Config struct {
	Node     NodeConfig     `mapstructure:"node"`
	Log      LogConfig      `mapstructure:"log"`
	State    StateConfig    `mapstructure:"state"`
	History  HistoryConfig  `mapstructure:"history"`
	API      APIConfig      `mapstructure:"api"`
	Stream   StreamConfig   `mapstructure:"stream"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Genesis  GenesisConfig  `mapstructure:"genesis"`

	configPath string
}

// NodeConfig carries identity and filesystem roots.
type NodeConfig struct {
	// Name appears in server_info and log fields.
	Name string `mapstructure:"name"`

	// DataDir is the root for state and history files when their paths
	// are left empty.
	DataDir string `mapstructure:"data_dir"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format is console or json.
	Format string `mapstructure:"format"`

	// Output is stderr, stdout, or a file path.
	Output string `mapstructure:"output"`
}

// StateConfig configures the durable ledger state store.
type StateConfig struct {
	// Backend is memory, pebble, or leveldb.
	Backend string `mapstructure:"backend"`

	// Path overrides <data_dir>/state.
	Path string `mapstructure:"path"`

	// Compressor is lz4 or none.
	Compressor string `mapstructure:"compressor"`

	// CompressionMin is the smallest value size that gets compressed.
	CompressionMin int `mapstructure:"compression_min"`
}

// HistoryConfig configures the relational settlement history.
type HistoryConfig struct {
	// Enabled turns history recording on.
	Enabled bool `mapstructure:"enabled"`

	// Driver is sqlite or postgres.
	Driver string `mapstructure:"driver"`

	// DSN is the database source name; for sqlite an empty DSN derives
	// <data_dir>/history.db.
	DSN string `mapstructure:"dsn"`

	// CacheSize bounds the in-memory recent-settlement cache.
	CacheSize int `mapstructure:"cache_size"`
}

// APIConfig configures the JSON-RPC endpoint.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`

	// AdminAddr is the base58 account allowed to invoke admin methods
	// over the API. Empty locks admin methods out entirely.
	AdminAddr string `mapstructure:"admin_addr"`

	// MaxBodyBytes bounds a single request body.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// StreamConfig configures the websocket event streams.
type StreamConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`

	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int `mapstructure:"send_buffer"`

	// PingSeconds is the keepalive interval.
	PingSeconds int `mapstructure:"ping_seconds"`
}

// GRPCConfig configures the gRPC endpoint.
type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`

	// MaxRecvBytes bounds a single message.
	MaxRecvBytes int `mapstructure:"max_recv_bytes"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ExchangeConfig selects and configures the conversion adapter.
type ExchangeConfig struct {
	// Adapter is the adapter name; fixedrate is the only built-in.
	Adapter string `mapstructure:"adapter"`

	FixedRate FixedRateConfig `mapstructure:"fixedrate"`
}

// FixedRateConfig mirrors the built-in adapter's knobs.
type FixedRateConfig struct {
	RateNum     uint64 `mapstructure:"rate_num"`
	RateDen     uint64 `mapstructure:"rate_den"`
	SlippageBps uint32 `mapstructure:"slippage_bps"`
	Liquidity   uint64 `mapstructure:"liquidity"`
}

// GenesisConfig describes the initial ledger written on first start.
type GenesisConfig struct {
	NativeAsset    string `mapstructure:"native_asset"`
	SecondaryAsset string `mapstructure:"secondary_asset"`
	InitialSupply  uint64 `mapstructure:"initial_supply"`

	// Owner, Treasury and SupplyHolder are base58check addresses.
	// SupplyHolder defaults to Owner.
	Owner        string `mapstructure:"owner"`
	Treasury     string `mapstructure:"treasury"`
	SupplyHolder string `mapstructure:"supply_holder"`

	// Rates maps category names to basis points.
	Rates map[string]uint32 `mapstructure:"rates"`

	MaxTransfer uint64 `mapstructure:"max_transfer"`
	MaxWallet   uint64 `mapstructure:"max_wallet"`
	Threshold   uint64 `mapstructure:"threshold"`
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string { return c.configPath }

// StatePath resolves the state store directory.
func (c *Config) StatePath() string {
	if c.State.Path != "" {
		return c.State.Path
	}
	return filepath.Join(c.Node.DataDir, "state")
}

// HistoryDSN resolves the history database source.
func (c *Config) HistoryDSN() string {
	if c.History.DSN != "" {
		return c.History.DSN
	}
	return filepath.Join(c.Node.DataDir, "history.db")
}
