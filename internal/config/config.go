package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendSupabase = "supabase"
	BackendSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Store  StoreConfig  `mapstructure:"store"`
	Engine EngineConfig `mapstructure:"engine"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Env            string   `mapstructure:"env"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects and configures the persistence backend
type StoreConfig struct {
	Backend    string         `mapstructure:"backend"`
	SQLitePath string         `mapstructure:"sqlite_path"`
	Supabase   SupabaseConfig `mapstructure:"supabase"`
}

// SupabaseConfig holds Supabase-specific configuration
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// EngineConfig holds correlation-engine tuning knobs
type EngineConfig struct {
	WindowDays int `mapstructure:"window_days"`
	MaxLagDays int `mapstructure:"max_lag_days"`
	Workers    int `mapstructure:"workers"`
}

// Load reads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.sqlite_path", "data/lifesignal.db")
	v.SetDefault("engine.window_days", 90)
	v.SetDefault("engine.max_lag_days", 7)
	v.SetDefault("engine.workers", 0) // 0 = sized to the machine

	// Read from environment variables
	v.SetEnvPrefix("LIFESIGNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also bind to non-prefixed environment variables for deployment
	// platforms that inject them directly
	v.BindEnv("server.port", "PORT")
	v.BindEnv("store.supabase.url", "SUPABASE_URL")
	v.BindEnv("store.supabase.service_key", "SUPABASE_SERVICE_KEY")

	// Read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// It's okay if config file doesn't exist
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks that all required configuration values are present
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case BackendSupabase:
		if c.Store.Supabase.URL == "" {
			return fmt.Errorf("SUPABASE_URL is required for the supabase backend")
		}
		if c.Store.Supabase.ServiceKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_KEY is required for the supabase backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Engine.WindowDays <= 0 {
		return fmt.Errorf("engine.window_days must be positive")
	}
	if c.Engine.MaxLagDays < 0 || c.Engine.MaxLagDays >= c.Engine.WindowDays {
		return fmt.Errorf("engine.max_lag_days must be in [0, window_days)")
	}

	return nil
}
