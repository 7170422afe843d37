package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"patient-chat/internal/budget"
)

const (
	SourceDirectory = "directory"
	SourceDynamoDB  = "dynamodb"
	SourceS3        = "s3"
)

type DocumentsConfig struct {
	Source string `toml:"source"`
	Dir    string `toml:"dir"`
	Table  string `toml:"table"`
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
}

type BudgetConfig struct {
	MaxTotalTokens      int     `toml:"max_total_tokens"`
	ReservedForResponse int     `toml:"reserved_for_response"`
	HistoryFraction     float64 `toml:"history_fraction"`
	MaxDocumentTokens   int     `toml:"max_document_tokens"`
	EnableCompaction    bool    `toml:"enable_compaction"`
}

type ModelConfig struct {
	BaseURL     string `toml:"base_url"`
	Model       string `toml:"model"`
	ParamPrefix string `toml:"param_prefix"`
	// APIKey is only ever read from the environment.
	APIKey                   string `toml:"-"`
	SummaryTimeoutSeconds    int    `toml:"summary_timeout_seconds"`
	CompletionTimeoutSeconds int    `toml:"completion_timeout_seconds"`
}

type CacheConfig struct {
	RedisAddr  string `toml:"redis_addr"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

type Config struct {
	Documents    DocumentsConfig `toml:"documents"`
	Budget       BudgetConfig    `toml:"budget"`
	Model        ModelConfig     `toml:"model"`
	Cache        CacheConfig     `toml:"cache"`
	UploadBucket string          `toml:"upload_bucket"`
	LogLevel     string          `toml:"log_level"`
	Port         int             `toml:"port"`
}

func Default() Config {
	return Config{
		Documents: DocumentsConfig{
			Source: SourceDirectory,
			Dir:    "public/sample-data",
		},
		Budget: BudgetConfig{
			MaxTotalTokens:      budget.DefaultMaxTotalTokens,
			ReservedForResponse: budget.DefaultReservedForResponse,
			HistoryFraction:     budget.DefaultHistoryFraction,
			MaxDocumentTokens:   8000,
			EnableCompaction:    true,
		},
		Model: ModelConfig{
			BaseURL:                  "https://api.perplexity.ai",
			Model:                    "sonar-pro",
			SummaryTimeoutSeconds:    30,
			CompletionTimeoutSeconds: 60,
		},
		Cache: CacheConfig{
			TTLSeconds: 24 * 60 * 60,
		},
		LogLevel: "info",
		Port:     3000,
	}
}

// Load builds the configuration from defaults, the TOML file named by
// CONFIG_FILE if set, and environment overrides, in that order.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("DOCUMENT_SOURCE", &c.Documents.Source)
	str("DOCUMENT_DIR", &c.Documents.Dir)
	str("DOCUMENT_TABLE", &c.Documents.Table)
	str("DOCUMENT_BUCKET", &c.Documents.Bucket)
	str("DOCUMENT_PREFIX", &c.Documents.Prefix)
	str("UPLOAD_BUCKET", &c.UploadBucket)
	str("PARAM_PREFIX", &c.Model.ParamPrefix)
	str("PERPLEXITY_API_KEY", &c.Model.APIKey)
	str("PERPLEXITY_BASE_URL", &c.Model.BaseURL)
	str("MODEL", &c.Model.Model)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("LOG_LEVEL", &c.LogLevel)

	var errs []error
	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_TOTAL_TOKENS", &c.Budget.MaxTotalTokens},
		{"RESERVED_FOR_RESPONSE", &c.Budget.ReservedForResponse},
		{"MAX_DOCUMENT_TOKENS", &c.Budget.MaxDocumentTokens},
		{"PORT", &c.Port},
	}
	for _, e := range ints {
		if err := envInt(getenv, e.key, e.dst); err != nil {
			errs = append(errs, err)
		}
	}
	secs := []struct {
		key string
		dst *int
	}{
		{"SUMMARY_TIMEOUT", &c.Model.SummaryTimeoutSeconds},
		{"COMPLETION_TIMEOUT", &c.Model.CompletionTimeoutSeconds},
		{"SUMMARY_CACHE_TTL", &c.Cache.TTLSeconds},
	}
	for _, e := range secs {
		if err := envSeconds(getenv, e.key, e.dst); err != nil {
			errs = append(errs, err)
		}
	}
	if v := strings.TrimSpace(getenv("HISTORY_FRACTION")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: HISTORY_FRACTION: %w", err))
		} else {
			c.Budget.HistoryFraction = f
		}
	}
	if v := strings.TrimSpace(getenv("ENABLE_COMPACTION")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: ENABLE_COMPACTION: %w", err))
		} else {
			c.Budget.EnableCompaction = b
		}
	}
	return errors.Join(errs...)
}

func envInt(getenv func(string) string, key string, dst *int) error {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

// envSeconds accepts either a Go duration ("45s", "2m") or a bare number of
// seconds.
func envSeconds(getenv func(string) string, key string, dst *int) error {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = int(d / time.Second)
	return nil
}

func (c Config) Validate() error {
	if err := c.TokenBudget().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Budget.MaxDocumentTokens <= 0 {
		return errors.New("config: max document tokens must be positive")
	}
	switch c.Documents.Source {
	case SourceDirectory:
		if strings.TrimSpace(c.Documents.Dir) == "" {
			return errors.New("config: document dir is required for the directory source")
		}
	case SourceDynamoDB:
		if strings.TrimSpace(c.Documents.Table) == "" {
			return errors.New("config: document table is required for the dynamodb source")
		}
	case SourceS3:
		if strings.TrimSpace(c.Documents.Bucket) == "" {
			return errors.New("config: document bucket is required for the s3 source")
		}
	default:
		return fmt.Errorf("config: unknown document source %q", c.Documents.Source)
	}
	if c.Model.APIKey == "" && strings.TrimSpace(c.Model.ParamPrefix) == "" {
		return errors.New("config: either PERPLEXITY_API_KEY or PARAM_PREFIX must be set")
	}
	if c.Model.SummaryTimeoutSeconds <= 0 || c.Model.CompletionTimeoutSeconds <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	if c.Cache.RedisAddr != "" && c.Cache.TTLSeconds <= 0 {
		return errors.New("config: summary cache ttl must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

func (c Config) TokenBudget() budget.Budget {
	return budget.Budget{
		MaxTotalTokens:      c.Budget.MaxTotalTokens,
		ReservedForResponse: c.Budget.ReservedForResponse,
		HistoryFraction:     c.Budget.HistoryFraction,
	}
}

func (c Config) SummaryTimeout() time.Duration {
	return time.Duration(c.Model.SummaryTimeoutSeconds) * time.Second
}

func (c Config) CompletionTimeout() time.Duration {
	return time.Duration(c.Model.CompletionTimeoutSeconds) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return level, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}
