package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration loaded from YAML.
type Config struct {
	Server struct {
		Host           string `yaml:"host"`
		Port           string `yaml:"port" validate:"required"`
		Prefork        bool   `yaml:"prefork"`
		BodyLimitBytes int    `yaml:"body_limit_bytes" validate:"gte=0"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
		MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
		MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Carbone CarboneConfig `yaml:"carbone"`

	Render RenderConfig `yaml:"render"`

	Storage StorageConfig `yaml:"storage"`

	Cache struct {
		RedisHost          string        `yaml:"redis_host"`
		RenderCacheDB      int           `yaml:"render_cache_db" validate:"gte=0"`
		RateLimitDB        int           `yaml:"rate_limit_db" validate:"gte=0"`
		RenderCacheEnabled bool          `yaml:"render_cache_enabled"`
		RenderCacheTTL     time.Duration `yaml:"render_cache_ttl" validate:"gte=0s"`
	} `yaml:"cache"`

	Postgres PostgresConfig `yaml:"postgres"`

	Auth struct {
		Required             bool           `yaml:"required"`
		TokenRefreshInterval time.Duration  `yaml:"token_refresh_interval" validate:"gte=0s"`
		APIKeys              map[string]int `yaml:"api_keys"`
	} `yaml:"auth"`

	RateLimiter struct {
		Interval          time.Duration `yaml:"interval" validate:"gt=0s"`
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
		UserLimit         int           `yaml:"user_limit" validate:"gte=0"`
	} `yaml:"rate_limiter"`
}

// CarboneConfig describes the remote rendering endpoint.
type CarboneConfig struct {
	EndpointURL string        `yaml:"endpoint_url" validate:"required,url"`
	APIVersion  string        `yaml:"api_version" validate:"required"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0s"`
}

// RenderConfig holds the inputs of a single render job and the template
// directory used by the HTTP front.
type RenderConfig struct {
	TemplatePath string         `yaml:"template_path"`
	OutputPath   string         `yaml:"output_path"`
	DataPath     string         `yaml:"data_path"`
	Data         map[string]any `yaml:"data"`
	ConvertTo    string         `yaml:"convert_to" validate:"required,alphanum"`
	TemplatesDir string         `yaml:"templates_dir"`
}

// StorageConfig selects where the HTTP front stores rendered documents.
type StorageConfig struct {
	Provider string   `yaml:"provider" validate:"oneof=local s3"`
	LocalDir string   `yaml:"local_dir"`
	S3       S3Config `yaml:"s3"`
}

// S3Config holds AWS S3 (or compatible) settings.
type S3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

// AppConfig is the configuration loaded by LoadConfig.
var AppConfig = DefaultConfig()

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Port = ":8080"
	cfg.Server.BodyLimitBytes = 10 * 1024 * 1024

	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 7

	cfg.Carbone.EndpointURL = "https://render.carbone.io/render"
	cfg.Carbone.APIVersion = "4"

	cfg.Render.TemplatePath = "template.html"
	cfg.Render.OutputPath = "output.pdf"
	cfg.Render.ConvertTo = "pdf"
	cfg.Render.TemplatesDir = "templates"

	cfg.Storage.Provider = "local"
	cfg.Storage.LocalDir = "completed"

	cfg.Cache.RenderCacheDB = 1
	cfg.Cache.RenderCacheTTL = time.Hour

	cfg.Auth.Required = true
	cfg.Auth.TokenRefreshInterval = time.Minute

	cfg.RateLimiter.Interval = time.Minute
	return cfg
}

// ConfigPath returns the file named by CONFIG_PATH, or config.yaml.
func ConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

// LoadConfig reads the file named by ConfigPath and stores it in AppConfig.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom reads and validates the YAML file at path. A missing file
// yields the defaults. The result is also stored in AppConfig.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		Debug("Config file not found, using defaults", "path", path)
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	AppConfig = cfg
	return cfg, nil
}

// GetConfig returns the most recently loaded configuration.
func GetConfig() Config {
	return AppConfig
}

func validateConfig(cfg Config) error {
	if err := ValidateStruct(cfg); err != nil {
		return err
	}
	if cfg.Storage.Provider == "s3" && cfg.Storage.S3.Bucket == "" {
		return errors.New("storage.s3.bucket is required when storage.provider is s3")
	}
	return nil
}
