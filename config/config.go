package config

import (
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/pelletier/go-toml/v2"
)

const (
	PolicyNative = "native"
	PolicyToken  = "token"
)

// Config is the construction-time configuration of a pool instance. None of
// it can change after startup.
type Config struct {
	ListenAddress    string `toml:"listen_address"`
	MetricsAddress   string `toml:"metrics_address"`
	Levels           uint32 `toml:"levels"`
	Denomination     string `toml:"denomination"`
	Policy           string `toml:"policy"`
	PoolAddress      string `toml:"pool_address"`
	VerifyingKeyPath string `toml:"verifying_key"`
	JSONLogging      bool   `toml:"json_logging"`
}

func Default() Config {
	return Config{
		ListenAddress:  "0.0.0.0:3030",
		MetricsAddress: "0.0.0.0:9998",
		Levels:         20,
		Denomination:   "1000000000000000000",
		Policy:         PolicyNative,
		PoolAddress:    "0x0000000000000000000000000000000000000001",
	}
}

func ReadConfig(file string) (Config, error) {
	cfg := Default()
	configFileData, err := os.ReadFile(file)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(configFileData, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DenominationAmount parses the configured denomination, which is a decimal
// string so TOML integer limits do not cap it below 2^63.
func (cfg *Config) DenominationAmount() (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(cfg.Denomination)
	if err != nil {
		return nil, fmt.Errorf("invalid denomination %q: %w", cfg.Denomination, err)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("denomination must be greater than zero")
	}
	return amount, nil
}

func (cfg *Config) Validate() error {
	if cfg.Policy != PolicyNative && cfg.Policy != PolicyToken {
		return fmt.Errorf("invalid policy %q: expected %q or %q", cfg.Policy, PolicyNative, PolicyToken)
	}
	if cfg.Levels == 0 || cfg.Levels >= 32 {
		return fmt.Errorf("invalid levels %d: expected 1..31", cfg.Levels)
	}
	if _, err := cfg.DenominationAmount(); err != nil {
		return err
	}
	return nil
}
