package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Platform PlatformConfig `mapstructure:"platform"`
	Database DatabaseConfig `mapstructure:"database"`
	Poll     PollConfig     `mapstructure:"poll"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
}

// PlatformConfig points at the gateway sidecar that speaks the remote
// platform's wire protocol. An empty URL selects the in-memory fake,
// which is only useful for local development.
type PlatformConfig struct {
	GatewayURL string `mapstructure:"gateway_url"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig selects the storage backend. Driver is one of
// "memory", "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"` // sqlite file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// PollConfig bounds one comment-processing cycle. The random delay is
// applied between the public reply and the direct message.
type PollConfig struct {
	RandomDelayMinMs int `mapstructure:"random_delay_min_ms"`
	RandomDelayMaxMs int `mapstructure:"random_delay_max_ms"`
	FetchLimit       int `mapstructure:"fetch_limit"`
}

// TelegramConfig configures operator alerts. Alerts are disabled when
// the token is empty.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// OpenAIConfig configures reply drafting for rules without a fixed
// reply text. Drafting is disabled when the API key is empty.
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./replygram.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("poll.random_delay_min_ms", 8000)
	v.SetDefault("poll.random_delay_max_ms", 15000)
	v.SetDefault("poll.fetch_limit", 100)
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.max_tokens", 150)
	v.SetDefault("openai.temperature", 0.7)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Poll.RandomDelayMinMs > config.Poll.RandomDelayMaxMs {
		return nil, fmt.Errorf("poll.random_delay_min_ms (%d) exceeds poll.random_delay_max_ms (%d)",
			config.Poll.RandomDelayMinMs, config.Poll.RandomDelayMaxMs)
	}

	// Get sensitive values from environment variables when present
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	return &config, nil
}
