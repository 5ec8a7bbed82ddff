package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	PostgresURL       string `mapstructure:"POSTGRES_URL"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	ServerPort        string `mapstructure:"SERVER_PORT"`
	RequestsPerMinute int    `mapstructure:"REQUESTS_PER_MINUTE"`
	FetchTimeout      int    `mapstructure:"FETCH_TIMEOUT"`
	MaxPagesLimit     int    `mapstructure:"MAX_PAGES_LIMIT"`
	UseBrowser        bool   `mapstructure:"USE_BROWSER"`

	OpenRouterKeys string `mapstructure:"OPENROUTER_KEYS"` // comma separated
	AIBatchSize    int    `mapstructure:"AI_BATCH_SIZE"`
	AIMaxTokens    int    `mapstructure:"AI_MAX_TOKENS"`

	ShortenerAPIKey  string `mapstructure:"SHORTENER_API_KEY"`
	ShortenerBaseURL string `mapstructure:"SHORTENER_BASE_URL"`

	SourceMarkDays int `mapstructure:"SOURCE_MARK_DAYS"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present
	// This allows configuration purely through environment variables in production
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REQUESTS_PER_MINUTE", 20)
	viper.SetDefault("FETCH_TIMEOUT", 15) // in seconds
	viper.SetDefault("MAX_PAGES_LIMIT", 50)
	viper.SetDefault("USE_BROWSER", false)
	viper.SetDefault("AI_BATCH_SIZE", 10)
	viper.SetDefault("AI_MAX_TOKENS", 8000)
	viper.SetDefault("SHORTENER_BASE_URL", "https://url2cash.in/api")
	viper.SetDefault("SOURCE_MARK_DAYS", 2)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// APIKeys splits the configured OpenRouter keys into a slice, dropping blanks.
func (c *Config) APIKeys() []string {
	var keys []string
	for _, k := range strings.Split(c.OpenRouterKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
