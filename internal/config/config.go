package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const chunkGranularity = 256 * 1024

var (
	ErrInvalidChunkSize = errors.New("upload chunk size must be a positive multiple of 256 KiB")
	ErrInvalidDBDriver  = errors.New("DB_DRIVER must be one of sqlite, sqlitecloud, none")
)

// Config holds the application configuration
type Config struct {
	Port           string   `yaml:"port"`
	GinMode        string   `yaml:"ginMode"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	LogLevel       string   `yaml:"logLevel"`
	LogFormat      string   `yaml:"logFormat"`

	YouTube  YouTubeConfig  `yaml:"youtube"`
	Upload   UploadConfig   `yaml:"upload"`
	Cache    CacheConfig    `yaml:"cache"`
	DB       DBConfig       `yaml:"db"`
	Identity IdentityConfig `yaml:"identity"`
	ML       MLConfig       `yaml:"ml"`
}

// YouTubeConfig configures the Data API client
type YouTubeConfig struct {
	APIBaseURL        string  `yaml:"apiBaseUrl"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// UploadConfig configures the resumable uploader
type UploadConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	ChunkSize      int64         `yaml:"chunkSize"`
	MaxRetries     int           `yaml:"maxRetries"`
	InitialBackoff time.Duration `yaml:"initialBackoff"`
	MaxBackoff     time.Duration `yaml:"maxBackoff"`
}

// CacheConfig selects the cache backend. An empty RedisAddr keeps caches in memory.
type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDb"`
}

// DBConfig selects the snapshot store
type DBConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// IdentityConfig points at the identity provider's OAuth token endpoint
type IdentityConfig struct {
	APIURL    string `yaml:"apiUrl"`
	SecretKey string `yaml:"secretKey"`
	Provider  string `yaml:"provider"`
}

// MLConfig configures upload metadata suggestions
type MLConfig struct {
	GeminiAPIKey string `yaml:"geminiApiKey"`
	Model        string `yaml:"model"`
	MaxBytes     int64  `yaml:"maxBytes"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port:           "8080",
		GinMode:        "release",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		LogLevel:       "info",
		LogFormat:      "json",
		YouTube: YouTubeConfig{
			APIBaseURL:        "https://youtube.googleapis.com/",
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Upload: UploadConfig{
			BaseURL:        "https://www.googleapis.com/",
			ChunkSize:      8 * 1024 * 1024,
			MaxRetries:     5,
			InitialBackoff: time.Second,
			MaxBackoff:     32 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		DB: DBConfig{
			Driver: "sqlite",
			Path:   "yt_dashboard.db",
		},
		Identity: IdentityConfig{
			APIURL:   "https://api.clerk.com",
			Provider: "google",
		},
		ML: MLConfig{
			Model:    "gemini-2.5-flash",
			MaxBytes: 20 * 1024 * 1024,
		},
	}
}

// Load loads the configuration from an optional YAML file (CONFIG_FILE) and
// environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.GinMode, "GIN_MODE")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	setString(&c.YouTube.APIBaseURL, "YOUTUBE_API_BASE_URL")
	setString(&c.Upload.BaseURL, "UPLOAD_BASE_URL")
	setString(&c.Cache.RedisAddr, "REDIS_ADDR")
	setString(&c.Cache.RedisPassword, "REDIS_PASSWORD")
	setString(&c.DB.Driver, "DB_DRIVER")
	setString(&c.DB.Path, "DB_PATH")
	setString(&c.Identity.APIURL, "IDENTITY_API_URL")
	setString(&c.Identity.SecretKey, "IDENTITY_SECRET_KEY")
	setString(&c.Identity.Provider, "IDENTITY_OAUTH_PROVIDER")
	setString(&c.ML.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.ML.Model, "GEMINI_MODEL")

	var errs []error
	errs = append(errs,
		setFloat(&c.YouTube.RequestsPerSecond, "YOUTUBE_RPS"),
		setInt(&c.YouTube.Burst, "YOUTUBE_BURST"),
		setInt(&c.Cache.RedisDB, "REDIS_DB"),
		setInt(&c.Upload.MaxRetries, "UPLOAD_MAX_RETRIES"),
		setInt64(&c.Upload.ChunkSize, "UPLOAD_CHUNK_SIZE"),
		setInt64(&c.ML.MaxBytes, "ML_MAX_BYTES"),
		setDuration(&c.Cache.TTL, "CACHE_TTL"),
		setDuration(&c.Upload.InitialBackoff, "UPLOAD_INITIAL_BACKOFF"),
		setDuration(&c.Upload.MaxBackoff, "UPLOAD_MAX_BACKOFF"),
	)
	return errors.Join(errs...)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.Upload.ChunkSize <= 0 || c.Upload.ChunkSize%chunkGranularity != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidChunkSize, c.Upload.ChunkSize)
	}
	if c.Upload.MaxRetries < 0 {
		return fmt.Errorf("UPLOAD_MAX_RETRIES must be >= 0, got %d", c.Upload.MaxRetries)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}
	switch c.DB.Driver {
	case "sqlite", "sqlitecloud", "none":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidDBDriver, c.DB.Driver)
	}
	if c.DB.Driver != "none" && c.DB.Path == "" {
		return fmt.Errorf("DB_PATH is required for driver %s", c.DB.Driver)
	}
	return nil
}

// IdentityEnabled reports whether user ids can be exchanged for access tokens
func (c *Config) IdentityEnabled() bool {
	return c.Identity.APIURL != "" && c.Identity.SecretKey != ""
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
