// file: internal/config/config.go
// version: 2.1.0
// guid: 7b8c9d0e-1f2a-3b4c-5d6e-7f8a9b0c1d2e

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// BOOKMETA_GOOGLE_BOOKS_API_KEY or BOOKMETA_SERVER_PORT.
const EnvPrefix = "BOOKMETA"

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxBodyBytes    int64
	RateLimitPerMin int
	RateLimitBurst  int
}

// ProviderConfig holds the settings of one outbound metadata provider.
type ProviderConfig struct {
	BaseURL   string
	RateLimit float64
	Burst     int
}

// SpotifyConfig holds Spotify client-credential settings.
type SpotifyConfig struct {
	ProviderConfig
	ClientID     string
	ClientSecret string
	TokenURL     string
	Market       string
}

// Config holds application configuration
type Config struct {
	Server ServerConfig

	DatabasePath string
	DatabaseType string // "pebble" (default) or "memory"

	LogLevel  string
	LogFormat string

	StrategyTimeout  time.Duration
	WriteBackTimeout time.Duration
	AudiobookTTL     time.Duration
	CacheBuffer      time.Duration
	IndexWarmLimit   int

	SelectorCatalog string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	GoogleBooks ProviderConfig
	OpenLibrary ProviderConfig
	Hardcover   ProviderConfig
	BookPage    ProviderConfig
	Audible     ProviderConfig
	Audnexus    ProviderConfig
	Spotify     SpotifyConfig

	APIKeys struct {
		GoogleBooks string
		Hardcover   string
	}
}

var AppConfig Config

// SetDefaults registers default values with viper.
func SetDefaults() {
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "45s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.max_body_bytes", 1<<20)
	viper.SetDefault("server.rate_limit_per_min", 120)
	viper.SetDefault("server.rate_limit_burst", 20)

	viper.SetDefault("database_type", "pebble")
	viper.SetDefault("database_path", "bookmeta.pebble")

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "console")

	viper.SetDefault("strategy_timeout", "12s")
	viper.SetDefault("write_back_timeout", "10s")
	viper.SetDefault("audiobook_cache_ttl", "168h")
	viper.SetDefault("audiobook_cache_buffer", "60s")
	viper.SetDefault("index_warm_limit", 5000)

	viper.SetDefault("providers.google_books.rate_limit", 5)
	viper.SetDefault("providers.open_library.rate_limit", 5)
	viper.SetDefault("providers.hardcover.rate_limit", 2)
	viper.SetDefault("providers.bookpage.rate_limit", 1)
	viper.SetDefault("providers.audible.rate_limit", 1)
	viper.SetDefault("providers.audnexus.rate_limit", 2)
	viper.SetDefault("providers.spotify.rate_limit", 5)
	viper.SetDefault("providers.spotify.market", "US")
	viper.SetDefault("providers.spotify.token_url", "https://accounts.spotify.com/api/token")
}

// LoadDotEnv loads environment variables from the given .env files. Missing
// files are ignored. Existing environment variables win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// BindEnv enables BOOKMETA_ environment overrides for every viper key.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func provider(name string) ProviderConfig {
	prefix := "providers." + name + "."
	return ProviderConfig{
		BaseURL:   viper.GetString(prefix + "base_url"),
		RateLimit: viper.GetFloat64(prefix + "rate_limit"),
		Burst:     viper.GetInt(prefix + "burst"),
	}
}

// InitConfig initializes the application configuration
func InitConfig() {
	SetDefaults()

	AppConfig = Config{
		Server: ServerConfig{
			Host:            viper.GetString("server.host"),
			Port:            viper.GetString("server.port"),
			ReadTimeout:     viper.GetDuration("server.read_timeout"),
			WriteTimeout:    viper.GetDuration("server.write_timeout"),
			IdleTimeout:     viper.GetDuration("server.idle_timeout"),
			MaxBodyBytes:    viper.GetInt64("server.max_body_bytes"),
			RateLimitPerMin: viper.GetInt("server.rate_limit_per_min"),
			RateLimitBurst:  viper.GetInt("server.rate_limit_burst"),
		},
		DatabasePath:     viper.GetString("database_path"),
		DatabaseType:     strings.ToLower(strings.TrimSpace(viper.GetString("database_type"))),
		LogLevel:         viper.GetString("log_level"),
		LogFormat:        viper.GetString("log_format"),
		StrategyTimeout:  viper.GetDuration("strategy_timeout"),
		WriteBackTimeout: viper.GetDuration("write_back_timeout"),
		AudiobookTTL:     viper.GetDuration("audiobook_cache_ttl"),
		CacheBuffer:      viper.GetDuration("audiobook_cache_buffer"),
		IndexWarmLimit:   viper.GetInt("index_warm_limit"),
		SelectorCatalog:  viper.GetString("selector_catalog"),
		JWTSecret:        viper.GetString("auth.jwt_secret"),
		JWTIssuer:        viper.GetString("auth.jwt_issuer"),
		JWTAudience:      viper.GetString("auth.jwt_audience"),
		GoogleBooks:      provider("google_books"),
		OpenLibrary:      provider("open_library"),
		Hardcover:        provider("hardcover"),
		BookPage:         provider("bookpage"),
		Audible:          provider("audible"),
		Audnexus:         provider("audnexus"),
		Spotify: SpotifyConfig{
			ProviderConfig: provider("spotify"),
			ClientID:       viper.GetString("providers.spotify.client_id"),
			ClientSecret:   viper.GetString("providers.spotify.client_secret"),
			TokenURL:       viper.GetString("providers.spotify.token_url"),
			Market:         viper.GetString("providers.spotify.market"),
		},
	}

	// API Keys
	AppConfig.APIKeys.GoogleBooks = viper.GetString("api_keys.google_books")
	AppConfig.APIKeys.Hardcover = viper.GetString("api_keys.hardcover")

	// Normalize database type
	if AppConfig.DatabaseType == "" {
		AppConfig.DatabaseType = "pebble"
	}
}

// SpotifyConfigured reports whether client credentials are present.
func (c *Config) SpotifyConfigured() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	switch c.DatabaseType {
	case "pebble":
		if c.DatabasePath == "" {
			return fmt.Errorf("database_path is required for the pebble store")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database_type %q", c.DatabaseType)
	}
	if c.StrategyTimeout <= 0 {
		return fmt.Errorf("strategy_timeout must be positive")
	}
	if c.WriteBackTimeout <= 0 {
		return fmt.Errorf("write_back_timeout must be positive")
	}
	if c.AudiobookTTL <= 0 {
		return fmt.Errorf("audiobook_cache_ttl must be positive")
	}
	if c.CacheBuffer < 0 || c.CacheBuffer >= c.AudiobookTTL {
		return fmt.Errorf("audiobook_cache_buffer must be between 0 and audiobook_cache_ttl")
	}
	if (c.Spotify.ClientID == "") != (c.Spotify.ClientSecret == "") {
		return fmt.Errorf("spotify client_id and client_secret must be set together")
	}
	return nil
}
