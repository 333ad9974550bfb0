package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	TradingAPI API        `mapstructure:"trading_api"`
	AuthAPI    API        `mapstructure:"auth_api"`
	AuthClient AuthClient `mapstructure:"auth_client"`
	Session    Session    `mapstructure:"session"`
	Refresh    Refresh    `mapstructure:"refresh"`
	Identity   Identity   `mapstructure:"identity"`
	Flash      Flash      `mapstructure:"flash"`
	Errors     Errors     `mapstructure:"errors"`
	Logger     Logger     `mapstructure:"logger"`
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
}

// API holds the connection settings for one upstream REST service.
type API struct {
	URL            string        `mapstructure:"url"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	HealthTimeout  time.Duration `mapstructure:"health_timeout"`
}

// AuthClient is the browser-facing sign-in application.
type AuthClient struct {
	URL    string `mapstructure:"url"`
	Source string `mapstructure:"source"`
}

// Session holds the initial auth_token cookie value, if any.
type Session struct {
	Token string `mapstructure:"token"`
}

// Refresh holds polling intervals for the query cache.
type Refresh struct {
	Trades           time.Duration `mapstructure:"trades"`
	Holdings         time.Duration `mapstructure:"holdings"`
	Watchlist        time.Duration `mapstructure:"watchlist"`
	WatchlistSymbols time.Duration `mapstructure:"watchlist_symbols"`
	LatestPrice      time.Duration `mapstructure:"latest_price"`
	LatestTradeDate  time.Duration `mapstructure:"latest_trade_date"`
	Health           time.Duration `mapstructure:"health"`
}

// Identity configures the trading user id cache.
type Identity struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Flash configures price change highlighting.
type Flash struct {
	Threshold float64       `mapstructure:"threshold"`
	Duration  time.Duration `mapstructure:"duration"`
}

// Errors configures the auth error handler.
type Errors struct {
	DedupWindow time.Duration `mapstructure:"dedup_window"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Server holds the configuration for the web presentation server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the local preference database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// envAliases maps config keys to the variable names used by the web
// deployment of the dashboard.
var envAliases = map[string][]string{
	"trading_api.url": {"TRADING_API_URL", "NEXT_PUBLIC_TRADING_API_URL"},
	"auth_api.url":    {"AUTH_API_URL", "NEXT_PUBLIC_AUTH_API_URL"},
	"auth_client.url": {"AUTH_CLIENT_URL", "NEXT_PUBLIC_AUTH_CLIENT_URL"},
	"session.token":   {"SESSION_TOKEN", "AUTH_TOKEN"},
}

// LoadConfig reads configuration from file, .env and environment variables.
func LoadConfig(path string) (config Config, err error) {
	// A missing .env is normal outside of local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, names := range envAliases {
		if err = v.BindEnv(append([]string{key}, names...)...); err != nil {
			return
		}
	}

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}

	err = config.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	for _, api := range []string{"trading_api", "auth_api"} {
		v.SetDefault(api+".rate_limit", 20) // requests per second
		v.SetDefault(api+".rate_limit_burst", 5)
		v.SetDefault(api+".max_retries", 3)
		v.SetDefault(api+".retry_base_delay", "1s")
		v.SetDefault(api+".retry_max_delay", "30s")
		v.SetDefault(api+".health_timeout", "5s")
	}
	v.SetDefault("trading_api.url", "")
	v.SetDefault("auth_api.url", "http://localhost:8050")
	v.SetDefault("auth_client.url", "http://localhost:3001")
	v.SetDefault("auth_client.source", "demo-trade-ui")
	v.SetDefault("session.token", "")

	v.SetDefault("refresh.trades", "10s")
	v.SetDefault("refresh.holdings", "10s")
	v.SetDefault("refresh.watchlist", "10s")
	v.SetDefault("refresh.watchlist_symbols", "5s")
	v.SetDefault("refresh.latest_price", "10s")
	v.SetDefault("refresh.latest_trade_date", "30s")
	v.SetDefault("refresh.health", "60s")

	v.SetDefault("identity.cache_ttl", "5m")
	v.SetDefault("flash.threshold", 1.0)
	v.SetDefault("flash.duration", "6s")
	v.SetDefault("errors.dedup_window", "5s")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stderr")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.dsn", "dashboard.db")
}

// Validate reports settings the dashboard cannot start without.
func (c Config) Validate() error {
	if c.TradingAPI.URL == "" {
		return errors.New("trading_api.url is not configured")
	}
	if c.AuthAPI.URL == "" {
		return errors.New("auth_api.url is not configured")
	}
	if c.Flash.Threshold < 0 {
		return fmt.Errorf("flash.threshold must not be negative, got %v", c.Flash.Threshold)
	}
	return nil
}
