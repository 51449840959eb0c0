package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load builds the configuration in priority order:
//  1. built-in defaults
//  2. the TOML file at path, when path is non-empty
//  3. environment variables with the LEVYD_ prefix
//     (LEVYD_API_LISTEN overrides api.listen, and so on)
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("LEVYD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.configPath = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveExample writes a commented starting-point configuration to path.
func SaveExample(path string) error {
	v := viper.New()
	for key, value := range exampleValues() {
		v.Set(key, value)
	}
	v.SetConfigFile(path)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("write example config: %w", err)
	}
	return nil
}

func exampleValues() map[string]interface{} {
	return map[string]interface{}{
		"node.name":     "levyd",
		"node.data_dir": "/var/lib/levyd",

		"log.level":  "info",
		"log.format": "console",

		"state.backend":    "pebble",
		"state.compressor": "lz4",

		"history.enabled": true,
		"history.driver":  "sqlite",

		"api.enabled":    true,
		"api.listen":     "127.0.0.1:7030",
		"api.admin_addr": "",

		"stream.enabled": true,
		"stream.listen":  "127.0.0.1:7031",

		"grpc.enabled": false,
		"grpc.listen":  "127.0.0.1:7032",

		"metrics.enabled": true,
		"metrics.listen":  "127.0.0.1:7033",

		"exchange.adapter":            "fixedrate",
		"exchange.fixedrate.rate_num": 1,
		"exchange.fixedrate.rate_den": 1,

		"genesis.native_asset":    "LVY",
		"genesis.secondary_asset": "USDX",
		"genesis.initial_supply":  uint64(1_000_000_000),
		"genesis.owner":           "",
		"genesis.treasury":        "",
		"genesis.rates": map[string]uint32{
			"transfer": 200,
			"buy":      300,
			"sell":     300,
		},
	}
}
