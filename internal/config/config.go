package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Live modes decide whether the deployment is queried.
const (
	LiveModeAssume     = "assume"
	LiveModeGovernance = "governance"
	LiveModeOffline    = "offline"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL          string
	AlchemyAPIKey   string
	Network         string
	Deployment      string
	DuneAPIKey      string
	DuneURL         string
	DuneRetryMax    int
	OutDir          string
	Block           string
	LiveMode        string
	Timeout         time.Duration
	MetricsTextfile string
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("V2STATS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("network", "mainnet")
	v.SetDefault("out-dir", "./docs/v2-stats")
	v.SetDefault("dune-retry-max", 0)
	v.SetDefault("live-mode", LiveModeAssume)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		AlchemyAPIKey:   v.GetString("alchemy-api-key"),
		Network:         strings.ToLower(v.GetString("network")),
		Deployment:      v.GetString("deployment"),
		DuneAPIKey:      v.GetString("dune-api-key"),
		DuneURL:         v.GetString("dune-url"),
		DuneRetryMax:    v.GetInt("dune-retry-max"),
		OutDir:          v.GetString("out-dir"),
		Block:           v.GetString("block"),
		LiveMode:        strings.ToLower(v.GetString("live-mode")),
		Timeout:         v.GetDuration("timeout"),
		MetricsTextfile: v.GetString("metrics-textfile"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks everything that can be checked before touching the network.
func (c Config) Validate() error {
	if c.RPCURL == "" && c.AlchemyAPIKey == "" && c.LiveMode != LiveModeOffline {
		return fmt.Errorf("rpc url or alchemy api key is required")
	}
	if c.Deployment == "" {
		return fmt.Errorf("deployment file is required")
	}
	if c.OutDir == "" {
		return fmt.Errorf("out-dir is required")
	}
	switch c.LiveMode {
	case LiveModeAssume, LiveModeGovernance, LiveModeOffline:
	default:
		return fmt.Errorf("unknown live-mode %q", c.LiveMode)
	}
	if c.DuneRetryMax < 0 {
		return fmt.Errorf("dune-retry-max must be >= 0")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0")
	}
	if _, err := c.BlockNumber(); err != nil {
		return err
	}
	return nil
}

// BlockNumber parses the block option. Empty or "latest" returns nil.
func (c Config) BlockNumber() (*big.Int, error) {
	block := strings.TrimSpace(c.Block)
	if block == "" || strings.EqualFold(block, "latest") {
		return nil, nil
	}
	if strings.HasPrefix(block, "0x") || strings.HasPrefix(block, "0X") {
		n, err := hexutil.DecodeBig(block)
		if err != nil {
			return nil, fmt.Errorf("invalid block %q: %w", c.Block, err)
		}
		return n, nil
	}
	if strings.IndexFunc(block, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return nil, fmt.Errorf("invalid block %q", c.Block)
	}
	n, ok := new(big.Int).SetString(block, 10)
	if !ok {
		return nil, fmt.Errorf("invalid block %q", c.Block)
	}
	return n, nil
}
