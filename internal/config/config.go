package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OracleCLI OracleCLIConfig `mapstructure:"oracle_cli"`
	Session   SessionConfig   `mapstructure:"session"`
	AutoPost  AutoPostConfig  `mapstructure:"autopost"`
	Activity  ActivityConfig  `mapstructure:"activity"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// OracleCLIConfig holds the fallback agent binary settings
type OracleCLIConfig struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig holds credential health settings
type SessionConfig struct {
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// AutoPostConfig holds posting pace settings
type AutoPostConfig struct {
	InterPostDelay time.Duration `mapstructure:"inter_post_delay"`
}

// ActivityConfig holds the Google Sheets activity sink settings
type ActivityConfig struct {
	SheetsEnabled      bool   `mapstructure:"sheets_enabled"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SheetName          string `mapstructure:"sheet_name"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
}

// ServerConfig holds the daemon's HTTP settings
type ServerConfig struct {
	HealthPort string `mapstructure:"health_port"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".engage-agent"))
		}
	}

	v.SetEnvPrefix("ENGAGE")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("database.dsn", "ENGAGE_DATABASE_DSN")
	v.BindEnv("anthropic.api_key", "ENGAGE_ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "ENGAGE_ANTHROPIC_MODEL")
	v.BindEnv("oracle_cli.command", "ENGAGE_ORACLE_CLI_COMMAND")
	v.BindEnv("activity.sheets_enabled", "ENGAGE_ACTIVITY_SHEETS_ENABLED")
	v.BindEnv("activity.spreadsheet_id", "ENGAGE_ACTIVITY_SPREADSHEET_ID")
	v.BindEnv("activity.credentials_file", "ENGAGE_ACTIVITY_CREDENTIALS_FILE")
	v.BindEnv("activity.service_account_json", "ENGAGE_ACTIVITY_SERVICE_ACCOUNT_JSON")
	v.BindEnv("server.health_port", "ENGAGE_SERVER_HEALTH_PORT", "PORT")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", "./data/engage.db")

	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.timeout", "2m")

	v.SetDefault("oracle_cli.timeout", "3m")

	v.SetDefault("session.stale_after", "72h")

	v.SetDefault("autopost.inter_post_delay", "30s")

	v.SetDefault("activity.sheets_enabled", false)
	v.SetDefault("activity.sheet_name", "Activity")

	v.SetDefault("server.health_port", "10000")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Anthropic.APIKey == "" && c.OracleCLI.Command == "" {
		return fmt.Errorf("either anthropic.api_key or oracle_cli.command is required")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	return nil
}
