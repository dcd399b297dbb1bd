package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Index drivers.
const (
	IndexDriverPinecone = "pinecone"
	IndexDriverRedis    = "redis"
)

// Config holds the imitune API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Blob      BlobConfig      `yaml:"blob"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port              int   `yaml:"port"`
	ReadTimeoutSec    int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec   int   `yaml:"write_timeout_sec"`
	ShutdownSec       int   `yaml:"shutdown_timeout_sec"`
	SearchBodyLimit   int64 `yaml:"search_body_limit_bytes"`
	FeedbackBodyLimit int64 `yaml:"feedback_body_limit_bytes"`
}

// CORSConfig holds the origin allow-list and preflight settings.
type CORSConfig struct {
	Origins        []string `yaml:"origins"`
	OriginPatterns []string `yaml:"origin_patterns"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAgeSec      int      `yaml:"max_age_sec"`
}

// RateLimitConfig holds per-endpoint request budgets.
type RateLimitConfig struct {
	KeyPrefix string     `yaml:"key_prefix"`
	Search    RuleConfig `yaml:"search"`
	Feedback  RuleConfig `yaml:"feedback"`
}

// RuleConfig is one request budget.
type RuleConfig struct {
	Limit     int `yaml:"limit"`
	WindowSec int `yaml:"window_sec"`
}

// DatabaseConfig holds Redis connection settings.
// Empty addrs disables rate limiting (requests are admitted in degraded mode).
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig selects and configures the vector index.
type IndexConfig struct {
	Driver   string              `yaml:"driver"` // pinecone, redis (default: pinecone)
	Pinecone PineconeIndexConfig `yaml:"pinecone"`
	Redis    RedisIndexConfig    `yaml:"redis"`
}

// PineconeIndexConfig holds Pinecone data-plane settings.
// Missing credentials are allowed: search then fails with a generic error.
type PineconeIndexConfig struct {
	APIKey     string `yaml:"api_key"`
	Host       string `yaml:"host"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RedisIndexConfig holds Redis FT index settings.
type RedisIndexConfig struct {
	IndexName   string `yaml:"index_name"`
	KeyPrefix   string `yaml:"key_prefix"`
	VectorField string `yaml:"vector_field"`
}

// BlobConfig holds S3 feedback storage settings.
type BlobConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // e.g. http://localhost:4566 for LocalStack
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url"`
	KeyPrefix       string `yaml:"key_prefix"`
	ACL             string `yaml:"acl"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML config, expanding ${VAR} references, then applies
// defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.SearchBodyLimit <= 0 {
		c.HTTP.SearchBodyLimit = 1 << 20
	}
	if c.HTTP.FeedbackBodyLimit <= 0 {
		c.HTTP.FeedbackBodyLimit = 16 << 20
	}
	if len(c.CORS.Origins) == 0 && len(c.CORS.OriginPatterns) == 0 {
		c.CORS.Origins = []string{
			"https://thatsoundslike.me",
			"https://www.thatsoundslike.me",
			"https://imitune.github.io",
			"http://localhost:5173",
			"http://localhost:3000",
			"http://127.0.0.1:5173",
			"http://127.0.0.1:3000",
		}
		c.CORS.OriginPatterns = []string{`^https://.*\.vercel\.app$`}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Content-Type", "Authorization", "X-Requested-With"}
	}
	if c.CORS.MaxAgeSec <= 0 {
		c.CORS.MaxAgeSec = 86400
	}
	if c.RateLimit.KeyPrefix == "" {
		c.RateLimit.KeyPrefix = "imitune:ratelimit"
	}
	c.RateLimit.Search.applyDefaults(10, 60)
	c.RateLimit.Feedback.applyDefaults(10, 3600)
	addrs := c.Database.Addrs[:0]
	for _, a := range c.Database.Addrs {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	c.Database.Addrs = addrs
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.Driver == "" {
		c.Index.Driver = IndexDriverPinecone
	}
	if c.Index.Pinecone.TimeoutSec <= 0 {
		c.Index.Pinecone.TimeoutSec = 10
	}
	if c.Index.Redis.IndexName == "" {
		c.Index.Redis.IndexName = "imitune:sounds:idx"
	}
	if c.Index.Redis.KeyPrefix == "" {
		c.Index.Redis.KeyPrefix = "imitune:sound:"
	}
	if c.Index.Redis.VectorField == "" {
		c.Index.Redis.VectorField = "vector"
	}
	if c.Blob.Region == "" {
		c.Blob.Region = "us-east-1"
	}
}

func (r *RuleConfig) applyDefaults(limit, windowSec int) {
	if r.Limit <= 0 {
		r.Limit = limit
	}
	if r.WindowSec <= 0 {
		r.WindowSec = windowSec
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	for _, o := range c.CORS.Origins {
		if o == "" || o == "*" {
			return fmt.Errorf("cors.origins must list explicit origins, got %q", o)
		}
	}
	switch c.Index.Driver {
	case IndexDriverPinecone:
	case IndexDriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for index.driver %q", IndexDriverRedis)
		}
	default:
		return fmt.Errorf("index.driver must be %q or %q, got %q",
			IndexDriverPinecone, IndexDriverRedis, c.Index.Driver)
	}
	if c.Blob.Bucket == "" {
		return fmt.Errorf("blob.bucket is required")
	}
	if (c.Blob.AccessKeyID == "") != (c.Blob.SecretAccessKey == "") {
		return fmt.Errorf("blob.access_key_id and blob.secret_access_key must be set together")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
