// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Lllllllleong/rfqcompliance/internal/invoker"
	"github.com/Lllllllleong/rfqcompliance/internal/logging"
	"github.com/Lllllllleong/rfqcompliance/internal/store"
	"github.com/Lllllllleong/rfqcompliance/internal/usage"
)

// ConfigPathEnv names the variable consulted when Load is given no path.
const ConfigPathEnv = "RFQ_COMPLIANCE_CONFIG"

const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"

	ProviderVertex = "vertex"
	ProviderGemini = "gemini"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	ProjectID string        `yaml:"projectId"`
	Store     StoreConfig   `yaml:"store"`
	Model     ModelConfig   `yaml:"model"`
	Invoker   InvokerConfig `yaml:"invoker"`
	Archive   ArchiveConfig `yaml:"archive"`
	Auth      AuthConfig    `yaml:"auth"`
	Usage     UsageConfig   `yaml:"usage"`
	Log       LogConfig     `yaml:"log"`
}

type StoreConfig struct {
	Backend           string `yaml:"backend"`
	DatabaseID        string `yaml:"databaseId"`
	UsersCollection   string `yaml:"usersCollection"`
	ReportsCollection string `yaml:"reportsCollection"`
	UsageCollection   string `yaml:"usageCollection"`
}

type ModelConfig struct {
	Provider       string `yaml:"provider"`
	Name           string `yaml:"name"`
	Region         string `yaml:"region"`
	GeminiAPIKey   string `yaml:"geminiApiKey"`
	GeminiEndpoint string `yaml:"geminiEndpoint"`
}

type InvokerConfig struct {
	MaxAttempts    int           `yaml:"maxAttempts"`
	BaseDelay      time.Duration `yaml:"baseDelay"`
	AttemptTimeout time.Duration `yaml:"attemptTimeout"`
}

// ArchiveConfig enables raw report archiving when Bucket is set.
type ArchiveConfig struct {
	Bucket string `yaml:"bucket"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

type UsageConfig struct {
	SubscriptionPolicy string `yaml:"subscriptionPolicy"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Logging converts to the logger's own config type.
func (l LogConfig) Logging() logging.Config {
	return logging.Config{Level: l.Level, Format: l.Format}
}

// Default returns the settings used when neither file nor environment
// says otherwise.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend:           BackendFirestore,
			UsersCollection:   store.DefaultUsersCollection,
			ReportsCollection: store.DefaultReportsCollection,
			UsageCollection:   store.DefaultUsageCollection,
		},
		Model: ModelConfig{
			Provider:       ProviderVertex,
			Name:           "gemini-1.5-pro",
			Region:         "us-central1",
			GeminiEndpoint: invoker.DefaultGeminiEndpoint,
		},
		Invoker: InvokerConfig{
			MaxAttempts:    invoker.DefaultMaxAttempts,
			BaseDelay:      invoker.DefaultBaseDelay,
			AttemptTimeout: invoker.DefaultAttemptTimeout,
		},
		Usage: UsageConfig{SubscriptionPolicy: "force"},
		Log:   LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// at $RFQ_COMPLIANCE_CONFIG when path is empty), then environment
// overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	c.ProjectID = getEnv("PROJECT_ID", c.ProjectID)
	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)
	c.Store.DatabaseID = getEnv("FIRESTORE_DATABASE", c.Store.DatabaseID)
	c.Store.ReportsCollection = getEnv("REPORTS_COLLECTION", c.Store.ReportsCollection)
	c.Store.UsageCollection = getEnv("USAGE_COLLECTION", c.Store.UsageCollection)
	c.Model.Provider = getEnv("MODEL_PROVIDER", c.Model.Provider)
	c.Model.Name = getEnv("MODEL_NAME", c.Model.Name)
	c.Model.Region = getEnv("VERTEX_AI_REGION", c.Model.Region)
	c.Model.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.Model.GeminiAPIKey)
	c.Model.GeminiEndpoint = getEnv("GEMINI_ENDPOINT", c.Model.GeminiEndpoint)
	c.Archive.Bucket = getEnv("ARCHIVE_BUCKET", c.Archive.Bucket)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Usage.SubscriptionPolicy = getEnv("USAGE_SUBSCRIPTION_POLICY", c.Usage.SubscriptionPolicy)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	if v := getEnv("INVOKER_MAX_ATTEMPTS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: INVOKER_MAX_ATTEMPTS=%q: %v", ErrInvalid, v, err)
		}
		c.Invoker.MaxAttempts = n
	}
	for key, dst := range map[string]*time.Duration{
		"INVOKER_BASE_DELAY":      &c.Invoker.BaseDelay,
		"INVOKER_ATTEMPT_TIMEOUT": &c.Invoker.AttemptTimeout,
	} {
		if v := getEnv(key, ""); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, v, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Model.Provider = strings.ToLower(strings.TrimSpace(c.Model.Provider))

	switch c.Store.Backend {
	case BackendFirestore:
		if c.ProjectID == "" {
			add("PROJECT_ID must be set for the firestore backend")
		}
	case BackendMemory:
	default:
		add("unknown store backend %q", c.Store.Backend)
	}

	switch c.Model.Provider {
	case ProviderVertex:
		if c.ProjectID == "" {
			add("PROJECT_ID must be set for the vertex provider")
		}
	case ProviderGemini:
		if c.Model.GeminiAPIKey == "" {
			add("GEMINI_API_KEY must be set for the gemini provider")
		}
	default:
		add("unknown model provider %q", c.Model.Provider)
	}
	if c.Model.Name == "" {
		add("model name must be set")
	}

	if c.Invoker.MaxAttempts < 1 {
		add("invoker max attempts must be at least 1, got %d", c.Invoker.MaxAttempts)
	}
	if c.Invoker.BaseDelay <= 0 {
		add("invoker base delay must be positive, got %s", c.Invoker.BaseDelay)
	}
	if c.Invoker.AttemptTimeout <= 0 {
		add("invoker attempt timeout must be positive, got %s", c.Invoker.AttemptTimeout)
	}

	if _, err := usage.PolicyByName(c.Usage.SubscriptionPolicy); err != nil {
		add("%v", err)
	}
	return errors.Join(errs...)
}

// InvokerSettings converts to the invoker's own config type.
func (c *Config) InvokerSettings() invoker.Config {
	return invoker.Config{
		MaxAttempts:    c.Invoker.MaxAttempts,
		BaseDelay:      c.Invoker.BaseDelay,
		AttemptTimeout: c.Invoker.AttemptTimeout,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
