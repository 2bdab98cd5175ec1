// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	API     APIConfig     `mapstructure:"api"`
	Storage StorageConfig `mapstructure:"storage"`
	Session SessionConfig `mapstructure:"session"`
	Queries QueryConfig   `mapstructure:"queries"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// APIConfig points the client at the assistant backend.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// StorageConfig selects where the session is persisted between runs.
type StorageConfig struct {
	Driver string      `mapstructure:"driver"` // file, redis or memory
	Path   string      `mapstructure:"path"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// SessionConfig controls background session validation. Zero disables it.
type SessionConfig struct {
	ValidateInterval int `mapstructure:"validate_interval"` // milliseconds
}

// QueryConfig controls the read-query cache.
type QueryConfig struct {
	StaleTime int `mapstructure:"stale_time"` // milliseconds
	Retry     int `mapstructure:"retry"`
}

type ChatConfig struct {
	Mock       bool `mapstructure:"mock"`
	ReplyDelay int  `mapstructure:"reply_delay"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig enables the /metrics listener for long-running commands.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

const (
	StorageDriverFile   = "file"
	StorageDriverRedis  = "redis"
	StorageDriverMemory = "memory"
)
