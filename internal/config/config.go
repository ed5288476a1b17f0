// Package config provides configuration loading and management for the application.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yy-analytics/yyptp-apr-calculation/internal/contracts"
)

// EnvPrefix prefixes every environment variable, e.g. YYPTP_RPC_URL.
const EnvPrefix = "YYPTP"

// Config holds all application configuration
type Config struct {
	// JSON-RPC endpoint of an Avalanche C-Chain node
	RPCURL string

	// Deployed contracts
	YyPTPAddress        string
	YyPTPStakingAddress string
	PairAddress         string
	MasterAddress       string

	// Fraction of the PTP earned by yyPTP deposits that is paid to stakers
	RewardShare float64

	// Remote call retry policy
	RetryDelay     time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration

	// Pool fan-out
	Workers  int
	MaxPools int
	Strict   bool

	LogLevel  string
	LogFormat string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// HTTP adapter
	Port          string
	RateLimit     float64
	RateBurst     int
	CacheTTL      time.Duration
	RunTimeout    time.Duration
	ShutdownGrace time.Duration

	// Plausibility and circuit breaker settings
	MaxAPR            float64
	MaxAPRChange      float64
	MaxSkippedPools   int
	CircuitResetDelay time.Duration
}

// Defaults are the values used when neither a flag, an environment variable nor a config file
// sets a key.
var Defaults = map[string]interface{}{
	"rpc-url":               "https://rpc.ankr.com/avalanche",
	"yyptp-address":         "0x40089e90156fc6f994cc0ec86dbe84634a1c156f",
	"yyptp-staking-address": "0x9bc36cc686800be1905bf7e10578ee6fbdd6f27a",
	"pair-address":          "0x7a8ae10536d6920aa609d12775ffe6d73376668f",
	"master-address":        "0x68c5f4374228beedfa078e77b5ed93c28a2f713e",
	"reward-share":          0.15,
	"retry-delay":           2 * time.Second,
	"max-attempts":          30,
	"request-timeout":       30 * time.Second,
	"workers":               8,
	"max-pools":             1000,
	"strict":                false,
	"log-level":             "info",
	"log-format":            "text",
	"otel-endpoint":         "",
	"port":                  "8080",
	"rate-limit":            10.0,
	"rate-burst":            20,
	"cache-ttl":             60 * time.Second,
	"run-timeout":           2 * time.Minute,
	"shutdown-grace":        10 * time.Second,
	"max-apr":               10.0, // 1000% max APR
	"max-apr-change":        0.5,  // 50% max APR change
	"max-skipped-pools":     -1,
	"circuit-reset-delay":   5 * time.Minute,
}

// Load merges defaults, the config file, environment variables and flags into Config,
// later sources overriding earlier ones.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range Defaults {
		v.SetDefault(key, value)
	}

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
		v.SetConfigName("yyptp-apr")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:              v.GetString("rpc-url"),
		YyPTPAddress:        v.GetString("yyptp-address"),
		YyPTPStakingAddress: v.GetString("yyptp-staking-address"),
		PairAddress:         v.GetString("pair-address"),
		MasterAddress:       v.GetString("master-address"),
		RewardShare:         v.GetFloat64("reward-share"),
		RetryDelay:          v.GetDuration("retry-delay"),
		MaxAttempts:         v.GetInt("max-attempts"),
		RequestTimeout:      v.GetDuration("request-timeout"),
		Workers:             v.GetInt("workers"),
		MaxPools:            v.GetInt("max-pools"),
		Strict:              v.GetBool("strict"),
		LogLevel:            v.GetString("log-level"),
		LogFormat:           strings.ToLower(v.GetString("log-format")),
		OtelEndpoint:        v.GetString("otel-endpoint"),
		Port:                v.GetString("port"),
		RateLimit:           v.GetFloat64("rate-limit"),
		RateBurst:           v.GetInt("rate-burst"),
		CacheTTL:            v.GetDuration("cache-ttl"),
		RunTimeout:          v.GetDuration("run-timeout"),
		ShutdownGrace:       v.GetDuration("shutdown-grace"),
		MaxAPR:              v.GetFloat64("max-apr"),
		MaxAPRChange:        v.GetFloat64("max-apr-change"),
		MaxSkippedPools:     v.GetInt("max-skipped-pools"),
		CircuitResetDelay:   v.GetDuration("circuit-reset-delay"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later in less obvious ways.
func (c Config) Validate() error {
	u, err := url.Parse(c.RPCURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("rpc-url: invalid url %q", c.RPCURL)
	}
	if _, err := c.ContractAddresses(); err != nil {
		return err
	}
	if c.RewardShare <= 0 || c.RewardShare > 1 {
		return fmt.Errorf("reward-share: must be in (0, 1], got %v", c.RewardShare)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry-delay: must not be negative, got %s", c.RetryDelay)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers: must be positive, got %d", c.Workers)
	}
	if c.MaxPools <= 0 {
		return fmt.Errorf("max-pools: must be positive, got %d", c.MaxPools)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log-format: must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// ContractAddresses parses the configured contract addresses.
func (c Config) ContractAddresses() (contracts.Addresses, error) {
	var (
		addrs contracts.Addresses
		err   error
	)
	if addrs.YyPTP, err = contracts.ParseAddress("yyptp-address", c.YyPTPAddress); err != nil {
		return contracts.Addresses{}, err
	}
	if addrs.YyPTPStaking, err = contracts.ParseAddress("yyptp-staking-address", c.YyPTPStakingAddress); err != nil {
		return contracts.Addresses{}, err
	}
	if addrs.Pair, err = contracts.ParseAddress("pair-address", c.PairAddress); err != nil {
		return contracts.Addresses{}, err
	}
	if addrs.Master, err = contracts.ParseAddress("master-address", c.MasterAddress); err != nil {
		return contracts.Addresses{}, err
	}
	return addrs, nil
}
