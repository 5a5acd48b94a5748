// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Line       LineConfig       `mapstructure:"line"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Usage      UsageConfig      `mapstructure:"usage"`
	Session    SessionConfig    `mapstructure:"session"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// LineConfig holds LINE Messaging API credentials and endpoints.
type LineConfig struct {
	ChannelSecret      string `mapstructure:"channel_secret"`
	ChannelAccessToken string `mapstructure:"channel_access_token"`
	APIBaseURL         string `mapstructure:"api_base_url"`
	ContentBaseURL     string `mapstructure:"content_base_url"`
	Timeout            int    `mapstructure:"timeout"` // milliseconds
}

// OCRConfig holds text recognition backend settings.
type OCRConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// ExtractionConfig tunes the monetary amount heuristics.
type ExtractionConfig struct {
	MinIntegerDigits int    `mapstructure:"min_integer_digits"`
	MinValue         string `mapstructure:"min_value"`
	MaxValue         string `mapstructure:"max_value"`
	MaxCandidates    int    `mapstructure:"max_candidates"`
}

// UsageConfig controls the monthly recognition quota. FreeMode
// enforces the free-tier cap; turning it off removes the cap.
type UsageConfig struct {
	FreeMode     bool   `mapstructure:"free_mode"`
	MonthlyLimit int    `mapstructure:"monthly_limit"`
	Timezone     string `mapstructure:"timezone"`
}

// SessionConfig controls conversation state storage.
type SessionConfig struct {
	Backend    string `mapstructure:"backend"` // "memory" or "redis"
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

// TTL returns the session lifetime as a duration.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
