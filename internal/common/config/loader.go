// internal/common/config/loader.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "MOODLE_ASSISTANT"

// Load reads config.yaml and config.<env>.yaml from the standard locations, then
// applies environment overrides and defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	if dir := userConfigDir(); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	env := os.Getenv(envPrefix + "_APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"api.base_url", "api.timeout",
		"storage.driver", "storage.path",
		"storage.redis.address", "storage.redis.password", "storage.redis.db", "storage.redis.key_prefix",
		"session.validate_interval",
		"queries.stale_time", "queries.retry",
		"chat.mock", "chat.reply_delay",
		"logging.level", "logging.format", "logging.output",
		"metrics.address",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Explicit zeroes for these keys mean "disabled", not "unset".
	cfg.Queries.Retry = -1
	if v.IsSet("queries.retry") {
		cfg.Queries.Retry = v.GetInt("queries.retry")
	}
	cfg.Chat.ReplyDelay = -1
	if v.IsSet("chat.reply_delay") {
		cfg.Chat.ReplyDelay = v.GetInt("chat.reply_delay")
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or the project root.
func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func userConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "moodle-assistant")
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig honours the unprefixed variables the web build used.
func overrideEmptyConfig(cfg *Config) {
	if val := os.Getenv("API_URL"); val != "" && os.Getenv(envPrefix+"_API_BASE_URL") == "" {
		cfg.API.BaseURL = val
	}
	if cfg.Storage.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Storage.Redis.Address = val
		}
	}
	if cfg.Storage.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Storage.Redis.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "moodle-assistant"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "1.0.0"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8000"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30000
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageDriverFile
	}
	if cfg.Storage.Path == "" {
		if dir := userConfigDir(); dir != "" {
			cfg.Storage.Path = filepath.Join(dir, "storage.json")
		} else {
			cfg.Storage.Path = ".moodle-assistant.json"
		}
	}
	if cfg.Storage.Redis.KeyPrefix == "" {
		cfg.Storage.Redis.KeyPrefix = "moodle-assistant:"
	}

	if cfg.Queries.StaleTime == 0 {
		cfg.Queries.StaleTime = 300000
	}
	if cfg.Queries.Retry < 0 {
		cfg.Queries.Retry = 1
	}

	if cfg.Chat.ReplyDelay < 0 {
		cfg.Chat.ReplyDelay = 1000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be positive")
	}

	switch cfg.Storage.Driver {
	case StorageDriverFile, StorageDriverMemory:
	case StorageDriverRedis:
		if cfg.Storage.Redis.Address == "" {
			return fmt.Errorf("storage.redis.address is required for the redis driver")
		}
	default:
		return fmt.Errorf("storage.driver must be one of file, redis, memory; got %q", cfg.Storage.Driver)
	}

	if cfg.Session.ValidateInterval < 0 {
		return fmt.Errorf("session.validate_interval must not be negative")
	}
	if cfg.Queries.StaleTime < 0 {
		return fmt.Errorf("queries.stale_time must not be negative")
	}
	if cfg.Chat.ReplyDelay < 0 {
		return fmt.Errorf("chat.reply_delay must not be negative")
	}

	return nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{Queries: QueryConfig{Retry: -1}, Chat: ChatConfig{ReplyDelay: -1}}
	applyDefaults(cfg)
	return cfg
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// Validate checks cfg after callers have applied their own overrides.
func Validate(cfg *Config) error {
	return validateConfig(cfg)
}
