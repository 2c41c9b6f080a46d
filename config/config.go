// Package config loads and validates the engine's yaml configuration.
package config

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teleportdao/teleswap-engine/types"
)

// DomainConfig describes one reachable network.
type DomainConfig struct {
	Domain types.Domain `yaml:"domain"`
	// BinaryEncoding selects the fixed-width wire format for networks
	// without self-describing encoding support.
	BinaryEncoding bool `yaml:"binary-encoding"`
	// Connector is the per-network connector/proxy address.
	Connector string `yaml:"connector"`
}

// TierOverride sets one entry of the tiered locker fee table.
type TierOverride struct {
	Domain       types.Domain `yaml:"domain"`
	Asset        string       `yaml:"asset"`
	ThirdPartyID uint32       `yaml:"third-party-id"`
	Tier         int          `yaml:"tier"`
	Rate         uint64       `yaml:"rate"`
}

// AssetDecimalConfig configures per-asset decimal counts around the pivot.
type AssetDecimalConfig struct {
	Asset  string `yaml:"asset"`
	Pivot  uint8  `yaml:"pivot"`
	Remote uint8  `yaml:"remote"`
}

type FeeConfig struct {
	ProtocolRate      uint64         `yaml:"protocol-rate"`
	DefaultLockerRate uint64         `yaml:"default-locker-rate"`
	BridgeRate        uint64         `yaml:"bridge-rate"`
	TierBoundaries    []string       `yaml:"tier-boundaries"` // decimal strings, ascending
	TierOverrides     []TierOverride `yaml:"tier-overrides"`
}

// ConnectorConfig points at the intermediary network's RPC endpoint and the
// contracts the engine drives there. The signing key is read from the
// environment, never from this file.
type ConnectorConfig struct {
	RPC                  string `yaml:"rpc"`
	WS                   string `yaml:"ws"`
	ChainID              int64  `yaml:"chain-id"`
	Ledger               string `yaml:"ledger"`
	Transport            string `yaml:"transport"`
	Verifier             string `yaml:"verifier"`
	Exchange             string `yaml:"exchange"`
	Distributor          string `yaml:"distributor"` // optional
	MaxRetries           int    `yaml:"max-retries"`
	RetryIntervalSeconds int    `yaml:"retry-interval-seconds"`
}

type TransportConfig struct {
	Trusted           string `yaml:"trusted"`
	MinDispatchBudget uint64 `yaml:"min-dispatch-budget"`
	// FillWindow bounds the fill deadline embedded in outbound messages,
	// in seconds past the quote time.
	FillWindow uint64 `yaml:"fill-window"`
}

type Config struct {
	Domains map[string]DomainConfig `yaml:"domains"`

	Intermediary struct {
		Domain        types.Domain `yaml:"domain"`
		EngineAddress string       `yaml:"engine-address"`
		Treasury      string       `yaml:"treasury"`
		Quarantine    string       `yaml:"quarantine"`
		WrappedNative string       `yaml:"wrapped-native"`
	} `yaml:"intermediary"`

	Fees FeeConfig `yaml:"fees"`

	Decimals struct {
		Pivot  types.Domain         `yaml:"pivot"`
		Assets []AssetDecimalConfig `yaml:"assets"`
	} `yaml:"decimals"`

	Transport TransportConfig `yaml:"transport"`

	Connector ConnectorConfig `yaml:"connector"`

	ProcessorWorkerCount uint32 `yaml:"processor-worker-count"`

	Api struct {
		Port           int      `yaml:"port"`
		TrustedProxies []string `yaml:"trusted-proxies"`
	} `yaml:"api"`

	MetricsPort int16 `yaml:"metrics-port"`
}

// Parse reads and validates a config file.
func Parse(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OperatorToken reads the admin API token from the environment, loading a
// .env file first when one is present.
func OperatorToken(envFile string) (string, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return "", fmt.Errorf("error loading env file: %w", err)
		}
	}
	token := os.Getenv("OPERATOR_TOKEN")
	if token == "" {
		return "", fmt.Errorf("OPERATOR_TOKEN must be set")
	}
	return token, nil
}

// SignerKey reads the connector's transaction signing key from the
// environment, loading a .env file first when one is present.
func SignerKey(envFile string) (string, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return "", fmt.Errorf("error loading env file: %w", err)
		}
	}
	key := os.Getenv("ENGINE_PRIVATE_KEY")
	if key == "" {
		return "", fmt.Errorf("ENGINE_PRIVATE_KEY must be set")
	}
	return key, nil
}

// Validate checks the config for invalid settings.
func (c *Config) Validate() error {
	if len(c.Domains) == 0 {
		return fmt.Errorf("at least one domain must be configured")
	}
	for name, dc := range c.Domains {
		if dc.Connector != "" && !common.IsHexAddress(dc.Connector) {
			return fmt.Errorf("connector must be a hex address (domain: %s)", name)
		}
	}

	if c.Intermediary.EngineAddress == "" || !common.IsHexAddress(c.Intermediary.EngineAddress) {
		return fmt.Errorf("intermediary engine-address must be a hex address")
	}
	if c.Intermediary.Treasury == "" || !common.IsHexAddress(c.Intermediary.Treasury) {
		return fmt.Errorf("intermediary treasury must be a hex address")
	}
	if c.Intermediary.Quarantine == "" || !common.IsHexAddress(c.Intermediary.Quarantine) {
		return fmt.Errorf("intermediary quarantine must be a hex address")
	}

	if c.Transport.Trusted == "" || !common.IsHexAddress(c.Transport.Trusted) {
		return fmt.Errorf("transport trusted address must be a hex address")
	}
	if c.Transport.FillWindow == 0 {
		return fmt.Errorf("transport fill-window must be greater than zero")
	}

	if c.Fees.ProtocolRate > types.FeeDenominator ||
		c.Fees.DefaultLockerRate > types.FeeDenominator {
		return fmt.Errorf("fee rates must not exceed the denominator %d", types.FeeDenominator)
	}
	if c.Fees.BridgeRate > types.BridgeFeeDenominator {
		return fmt.Errorf("bridge fee rate must not exceed the denominator %d", types.BridgeFeeDenominator)
	}
	for i, override := range c.Fees.TierOverrides {
		if !common.IsHexAddress(override.Asset) {
			return fmt.Errorf("tier override %d: asset must be a hex address", i)
		}
		if override.Tier < 0 || override.Tier > len(c.Fees.TierBoundaries) {
			return fmt.Errorf("tier override %d: tier %d out of range", i, override.Tier)
		}
	}
	for i, ad := range c.Decimals.Assets {
		if !common.IsHexAddress(ad.Asset) {
			return fmt.Errorf("decimal config %d: asset must be a hex address", i)
		}
	}

	// the connector section is optional: commands that never touch the
	// network run without it
	if c.Connector.RPC != "" {
		if c.Connector.ChainID == 0 {
			return fmt.Errorf("connector chain-id must be set")
		}
		for _, addr := range []struct{ name, value string }{
			{"ledger", c.Connector.Ledger},
			{"transport", c.Connector.Transport},
			{"verifier", c.Connector.Verifier},
			{"exchange", c.Connector.Exchange},
		} {
			if !common.IsHexAddress(addr.value) {
				return fmt.Errorf("connector %s must be a hex address", addr.name)
			}
		}
		if c.Connector.Distributor != "" && !common.IsHexAddress(c.Connector.Distributor) {
			return fmt.Errorf("connector distributor must be a hex address")
		}
		if c.Connector.MaxRetries <= 0 {
			return fmt.Errorf("connector max-retries must be greater than zero")
		}
		if c.Connector.RetryIntervalSeconds <= 0 {
			return fmt.Errorf("connector retry-interval-seconds must be greater than zero")
		}
	}

	if c.ProcessorWorkerCount == 0 {
		return fmt.Errorf("processor-worker-count must be greater than zero")
	}
	return nil
}
