package config

import (
	"fmt"
	"net"

	"github.com/levyledger/levyd/internal/types"
)

var (
	logLevels      = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	logFormats     = map[string]bool{"console": true, "json": true}
	stateBackends  = map[string]bool{"memory": true, "pebble": true, "leveldb": true}
	compressors    = map[string]bool{"lz4": true, "none": true}
	historyDrivers = map[string]bool{"sqlite": true, "postgres": true}
)

// Validate checks the configuration for shape errors. Semantic checks that
// need domain knowledge, such as the tax-rate cap, happen where the values
// are consumed.
func (c *Config) Validate() error {
	if !logLevels[c.Log.Level] {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if !logFormats[c.Log.Format] {
		return fmt.Errorf("log.format %q is not console or json", c.Log.Format)
	}

	if !stateBackends[c.State.Backend] {
		return fmt.Errorf("state.backend %q is not memory, pebble, or leveldb", c.State.Backend)
	}
	if !compressors[c.State.Compressor] {
		return fmt.Errorf("state.compressor %q is not lz4 or none", c.State.Compressor)
	}
	if c.State.Backend != "memory" && c.Node.DataDir == "" && c.State.Path == "" {
		return fmt.Errorf("state.path or node.data_dir is required for backend %q", c.State.Backend)
	}

	if c.History.Enabled {
		if !historyDrivers[c.History.Driver] {
			return fmt.Errorf("history.driver %q is not sqlite or postgres", c.History.Driver)
		}
		if c.History.Driver == "postgres" && c.History.DSN == "" {
			return fmt.Errorf("history.dsn is required for the postgres driver")
		}
		if c.History.CacheSize < 0 {
			return fmt.Errorf("history.cache_size must be non-negative")
		}
	}

	for name, listen := range map[string]string{
		"api.listen":     pickIf(c.API.Enabled, c.API.Listen),
		"stream.listen":  pickIf(c.Stream.Enabled, c.Stream.Listen),
		"grpc.listen":    pickIf(c.GRPC.Enabled, c.GRPC.Listen),
		"metrics.listen": pickIf(c.Metrics.Enabled, c.Metrics.Listen),
	} {
		if listen == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(listen); err != nil {
			return fmt.Errorf("%s %q: %w", name, listen, err)
		}
	}

	if c.Exchange.Adapter != "fixedrate" && c.Exchange.Adapter != "none" {
		return fmt.Errorf("exchange.adapter %q is not fixedrate or none", c.Exchange.Adapter)
	}

	if c.Genesis.NativeAsset == "" {
		return fmt.Errorf("genesis.native_asset is required")
	}
	for name := range c.Genesis.Rates {
		if _, err := types.ParseCategory(name); err != nil {
			return fmt.Errorf("genesis.rates: %w", err)
		}
	}
	return nil
}

func pickIf(enabled bool, listen string) string {
	if !enabled {
		return ""
	}
	return listen
}
