package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Depth is the number of price levels shown per side.
const Depth = 8

var (
	ErrInvalidDepth   = errors.New("config: engine depth must be 8")
	ErrInvalidWindow  = errors.New("config: engine window must be positive")
	ErrInvalidBackoff = errors.New("config: feed backoff must be positive and backoff_max >= backoff_initial")
	ErrMissingSymbol  = errors.New("config: feed symbol is required")
	ErrMissingURL     = errors.New("config: feed urls are required")
)

// Config holds all application configuration.
type Config struct {
	Env     string `mapstructure:"env"`
	Feed    FeedConfig
	Engine  EngineConfig
	Log     LogConfig
	Metrics MetricsConfig
	Redis   RedisConfig
	View    ViewConfig
}

// FeedConfig holds the BTSE websocket endpoints and reconnect tuning.
type FeedConfig struct {
	BookURL          string        `mapstructure:"book_url"`
	TradeURL         string        `mapstructure:"trade_url"`
	Symbol           string        `mapstructure:"symbol"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
	BackoffInitial   time.Duration `mapstructure:"backoff_initial"`
	BackoffMax       time.Duration `mapstructure:"backoff_max"`
}

// BookChannel returns the order book update channel for the symbol.
func (f FeedConfig) BookChannel() string {
	return "update:" + f.Symbol
}

// TradeChannel returns the trade history channel for the symbol.
func (f FeedConfig) TradeChannel() string {
	return "tradeHistoryApi:" + f.Symbol
}

// EngineConfig holds reconciliation settings.
type EngineConfig struct {
	// Depth is not tunable: the ladder is built on fixed 8-slot arrays.
	// It is read so that LADDER_ENGINE_DEPTH set to anything else fails
	// Validate at startup instead of being silently ignored.
	Depth  int           `mapstructure:"depth"`
	Window time.Duration `mapstructure:"window"`
}

// LogConfig holds zerolog settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// MetricsConfig holds the prometheus listener address. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// RedisConfig holds Redis connection settings for the snapshot sink.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ViewConfig controls the terminal ladder.
type ViewConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Clear   bool `mapstructure:"clear"`
}

// Load reads configuration from environment variables prefixed with LADDER_.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LADDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "development")

	// Feed defaults
	v.SetDefault("feed.book_url", "wss://ws.btse.com/ws/oss/futures")
	v.SetDefault("feed.trade_url", "wss://ws.btse.com/ws/futures")
	v.SetDefault("feed.symbol", "BTCPFC")
	v.SetDefault("feed.heartbeat_timeout", 30*time.Second)
	v.SetDefault("feed.backoff_initial", 250*time.Millisecond)
	v.SetDefault("feed.backoff_max", 5*time.Second)

	// Engine defaults
	v.SetDefault("engine.depth", Depth)
	v.SetDefault("engine.window", 200*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("metrics.addr", ":9102")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "ladder")

	v.SetDefault("view.enabled", true)
	v.SetDefault("view.clear", true)

	cfg := &Config{}

	cfg.Env = v.GetString("env")

	cfg.Feed = FeedConfig{
		BookURL:          v.GetString("feed.book_url"),
		TradeURL:         v.GetString("feed.trade_url"),
		Symbol:           v.GetString("feed.symbol"),
		HeartbeatTimeout: v.GetDuration("feed.heartbeat_timeout"),
		BackoffInitial:   v.GetDuration("feed.backoff_initial"),
		BackoffMax:       v.GetDuration("feed.backoff_max"),
	}

	cfg.Engine = EngineConfig{
		Depth:  v.GetInt("engine.depth"),
		Window: v.GetDuration("engine.window"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Pretty: v.GetBool("log.pretty"),
	}

	cfg.Metrics = MetricsConfig{
		Addr: v.GetString("metrics.addr"),
	}

	cfg.Redis = RedisConfig{
		Enabled:   v.GetBool("redis.enabled"),
		Addr:      v.GetString("redis.addr"),
		Password:  v.GetString("redis.password"),
		DB:        v.GetInt("redis.db"),
		KeyPrefix: v.GetString("redis.key_prefix"),
	}

	cfg.View = ViewConfig{
		Enabled: v.GetBool("view.enabled"),
		Clear:   v.GetBool("view.clear"),
	}

	return cfg, nil
}

// Validate checks the settings the engine cannot run without.
func (c *Config) Validate() error {
	if c.Engine.Depth != Depth {
		return fmt.Errorf("%w (got %d)", ErrInvalidDepth, c.Engine.Depth)
	}
	if c.Engine.Window <= 0 {
		return ErrInvalidWindow
	}
	if c.Feed.BackoffInitial <= 0 || c.Feed.BackoffMax < c.Feed.BackoffInitial {
		return fmt.Errorf("%w (initial %s, max %s)", ErrInvalidBackoff, c.Feed.BackoffInitial, c.Feed.BackoffMax)
	}
	if c.Feed.Symbol == "" {
		return ErrMissingSymbol
	}
	if c.Feed.BookURL == "" || c.Feed.TradeURL == "" {
		return ErrMissingURL
	}
	return nil
}
