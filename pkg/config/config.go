package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"moveout/pkg/errors"
)

const (
	BackendFile  = "file"
	BackendRedis = "redis"

	configPathEnv    = "MOVEOUT_CONFIG"
	dataPathEnv      = "MOVEOUT_DATA_PATH"
	addrEnv          = "MOVEOUT_ADDR"
	backendEnv       = "MOVEOUT_BACKEND"
	redisAddrEnv     = "MOVEOUT_REDIS_ADDR"
	redisPasswordEnv = "MOVEOUT_REDIS_PASSWORD"
	draftDebounceEnv = "MOVEOUT_DRAFT_DEBOUNCE"
	logLevelEnv      = "MOVEOUT_LOG_LEVEL"
	logFormatEnv     = "MOVEOUT_LOG_FORMAT"
	staticDirEnv     = "MOVEOUT_STATIC_DIR"
	publicURLEnv     = "MOVEOUT_PUBLIC_URL"
	geminiAPIKeyEnv  = "GEMINI_API_KEY"
	geminiModelEnv   = "GEMINI_MODEL"

	defaultAddr          = ":8080"
	defaultDraftDebounce = time.Second
	defaultGeminiModel   = "gemini-2.0-flash-001"
	defaultRedisPrefix   = "moveout"
)

// Config holds application configuration
type Config struct {
	DataPath      string        `yaml:"dataPath"`
	Addr          string        `yaml:"addr"`
	Backend       string        `yaml:"backend"`
	DraftDebounce time.Duration `yaml:"draftDebounce"`
	StaticDir     string        `yaml:"staticDir"`
	PublicURL     string        `yaml:"publicUrl"`
	Redis         RedisConfig   `yaml:"redis"`
	Gemini        GeminiConfig  `yaml:"gemini"`
	Log           LogConfig     `yaml:"log"`
}

// RedisConfig describes the optional Redis backend
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// GeminiConfig configures the listing analyzer. An empty key disables it.
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// LogConfig selects log verbosity and output format (json or console)
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GetDefaultDataPath returns the default path for storing items
func GetDefaultDataPath() string {
	currentUser, err := user.Current()
	if err != nil {
		return "./data"
	}

	defaultPath := filepath.Join(currentUser.HomeDir, "Documents", "MoveOut")
	if err := os.MkdirAll(defaultPath, 0755); err != nil {
		// Fall back to relative path if we can't create in Documents
		return "./data"
	}
	return defaultPath
}

// GetConfigFilePath returns where the YAML config file is looked up
func GetConfigFilePath() string {
	if p := os.Getenv(configPathEnv); p != "" {
		return p
	}
	currentUser, err := user.Current()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(currentUser.HomeDir, ".config", "moveout", "config.yaml")
}

func defaults() *Config {
	return &Config{
		Addr:          defaultAddr,
		Backend:       BackendFile,
		DraftDebounce: defaultDraftDebounce,
		Redis:         RedisConfig{Prefix: defaultRedisPrefix},
		Gemini:        GeminiConfig{Model: defaultGeminiModel},
		Log:           LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads .env, the YAML config file and environment overrides, in that
// order of increasing precedence.
func Load() (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()
	return LoadFile(GetConfigFilePath())
}

// LoadFile loads configuration from path, using defaults if it doesn't exist
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.ErrConfigInvalid.WithCause(err).WithContext("path", path)
		}
	case !os.IsNotExist(err):
		return nil, errors.ErrConfigInvalid.WithCause(err).WithContext("path", path)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.DataPath == "" {
		cfg.DataPath = GetDefaultDataPath()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Backend == BackendFile {
		if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
			return nil, errors.ErrConfigInvalid.WithCause(err).WithContext("dataPath", cfg.DataPath)
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.DataPath, dataPathEnv)
	setString(&c.Addr, addrEnv)
	setString(&c.Backend, backendEnv)
	setString(&c.Redis.Addr, redisAddrEnv)
	setString(&c.Redis.Password, redisPasswordEnv)
	setString(&c.Log.Level, logLevelEnv)
	setString(&c.Log.Format, logFormatEnv)
	setString(&c.StaticDir, staticDirEnv)
	setString(&c.PublicURL, publicURLEnv)
	setString(&c.Gemini.APIKey, geminiAPIKeyEnv)
	setString(&c.Gemini.Model, geminiModelEnv)

	if v := os.Getenv(draftDebounceEnv); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return errors.ErrConfigInvalid.WithCause(err).WithContext(draftDebounceEnv, v)
		}
		c.DraftDebounce = d
	}
	return nil
}

// parseDuration accepts Go durations ("1s") or bare milliseconds ("1000").
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func (c *Config) validate() error {
	invalid := func(field string, value interface{}) error {
		return errors.ErrConfigInvalid.
			WithContext("field", field).
			WithContext("value", value).
			WithUserMessage(fmt.Sprintf("Invalid configuration value for %s", field))
	}

	switch c.Backend {
	case BackendFile:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return invalid("redis.addr", c.Redis.Addr)
		}
	default:
		return invalid("backend", c.Backend)
	}
	if c.Addr == "" {
		return invalid("addr", c.Addr)
	}
	if c.DraftDebounce <= 0 {
		return invalid("draftDebounce", c.DraftDebounce.String())
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return invalid("log.format", c.Log.Format)
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = defaultRedisPrefix
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	return nil
}

// AnalysisEnabled reports whether a Gemini API key is configured
func (c *Config) AnalysisEnabled() bool {
	return c.Gemini.APIKey != ""
}
