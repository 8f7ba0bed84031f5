// Package config defines all configuration for the trading engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via ARENA_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Market   MarketConfig   `mapstructure:"market"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Store    StoreConfig    `mapstructure:"store"`
	News     NewsConfig     `mapstructure:"news"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig sets where the live-stream WebSocket endpoint listens.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// BrokerConfig controls the exchange REST adapter.
//
//   - BaseURL: exchange REST base (Binance-compatible).
//   - RateInterval: minimum spacing between signed calls, process-wide.
//     Deliberately coarse: protects against exchange IP bans and is more
//     restrictive than per-account throttling on purpose.
//   - CacheTTL: how long a fetched (cash, positions) result stays valid.
//   - Timeout: per-request HTTP timeout.
type BrokerConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// MarketConfig controls the background price poller.
type MarketConfig struct {
	Symbols       []string      `mapstructure:"symbols"`
	Venue         string        `mapstructure:"venue"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	HistoryWindow time.Duration `mapstructure:"history_window"`
	TickRetention time.Duration `mapstructure:"tick_retention"`
}

// OracleConfig tunes the LLM decision calls. Account rows carry the
// endpoint and credential; these knobs apply to every account.
type OracleConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	RetryCount  int           `mapstructure:"retry_count"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	Temperature float64       `mapstructure:"temperature"`
	SSLVerify   bool          `mapstructure:"ssl_verify"`
}

// TradingConfig sets the commission model used for affordability checks.
// The estimate is max(notional * rate, min_commission) in quote units.
type TradingConfig struct {
	CommissionRate float64 `mapstructure:"commission_rate"`
	MinCommission  float64 `mapstructure:"min_commission"`
}

// SnapshotConfig controls asset snapshot persistence and live pushes.
type SnapshotConfig struct {
	Retention    time.Duration `mapstructure:"retention"`
	PushInterval time.Duration `mapstructure:"push_interval"`
}

// StoreConfig sets where the SQLite database lives.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// NewsConfig controls the RSS feed folded into the prompt context.
type NewsConfig struct {
	FeedURL  string        `mapstructure:"feed_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Every key is overridable as ARENA_<SECTION>_<KEY>; the SSL toggle also
// honors the bare ENABLE_SSL_VERIFICATION variable.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	switch os.Getenv("ENABLE_SSL_VERIFICATION") {
	case "true", "1":
		cfg.Oracle.SSLVerify = true
	case "false", "0":
		cfg.Oracle.SSLVerify = false
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("broker.base_url", "https://api.binance.com")
	v.SetDefault("broker.rate_interval", 10*time.Second)
	v.SetDefault("broker.cache_ttl", 5*time.Second)
	v.SetDefault("broker.timeout", 15*time.Second)

	v.SetDefault("market.symbols", []string{"BTC", "ETH", "SOL", "BNB", "XRP", "DOGE"})
	v.SetDefault("market.venue", "binance")
	v.SetDefault("market.poll_interval", 1500*time.Millisecond)
	v.SetDefault("market.cache_ttl", 30*time.Second)
	v.SetDefault("market.history_window", time.Hour)
	v.SetDefault("market.tick_retention", time.Hour)

	v.SetDefault("oracle.timeout", 30*time.Second)
	v.SetDefault("oracle.retry_count", 3)
	v.SetDefault("oracle.backoff_base", time.Second)
	v.SetDefault("oracle.temperature", 0.7)
	v.SetDefault("oracle.ssl_verify", false)

	v.SetDefault("trading.commission_rate", 0.001)
	v.SetDefault("trading.min_commission", 0.1)

	v.SetDefault("snapshot.retention", 30*24*time.Hour)
	v.SetDefault("snapshot.push_interval", 30*time.Second)

	v.SetDefault("store.path", "data/arena.db")

	v.SetDefault("news.feed_url", "https://coinjournal.net/feed/")
	v.SetDefault("news.timeout", 10*time.Second)
	v.SetDefault("news.max_chars", 4000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Broker.BaseURL == "" {
		return fmt.Errorf("broker.base_url is required")
	}
	if c.Broker.RateInterval <= 0 {
		return fmt.Errorf("broker.rate_interval must be > 0")
	}
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("market.symbols must not be empty")
	}
	if c.Market.PollInterval <= 0 {
		return fmt.Errorf("market.poll_interval must be > 0")
	}
	if c.Oracle.RetryCount <= 0 {
		return fmt.Errorf("oracle.retry_count must be > 0")
	}
	if c.Trading.CommissionRate < 0 {
		return fmt.Errorf("trading.commission_rate must be >= 0")
	}
	if c.Snapshot.Retention <= 0 {
		return fmt.Errorf("snapshot.retention must be > 0")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	return nil
}
