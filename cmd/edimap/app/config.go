package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/edimap/internal/backends"
	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/errors"
)

// EnvPrefix prefixes every environment variable read into the configuration.
const EnvPrefix = "EDIMAP"

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool   `mapstructure:"verbose"`
	Quiet   bool   `mapstructure:"quiet"`
	NoColor bool   `mapstructure:"no_color"`
	Format  string `mapstructure:"format" validate:"omitempty,oneof=table json yaml wide"`

	// Config file
	ConfigFile string `mapstructure:"-"`

	Backend  BackendConfig `mapstructure:"backend"`
	Chunk    ChunkConfig   `mapstructure:"chunk"`
	Workers  int           `mapstructure:"workers" validate:"gte=1"`
	Match    MatchConfig   `mapstructure:"match"`
	Erp      SheetConfig   `mapstructure:"erp"`
	Standard SheetConfig   `mapstructure:"standard"`
	Output   string        `mapstructure:"output"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
	Log      LogConfig     `mapstructure:"log"`
}

// BackendConfig selects and tunes the text-generation backend.
type BackendConfig struct {
	Provider     string        `mapstructure:"provider" validate:"oneof=openai gemini http"`
	BaseURL      string        `mapstructure:"base_url" validate:"omitempty,url"`
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api_key"`
	AuthType     string        `mapstructure:"auth_type" validate:"omitempty,oneof=none bearer x-api-key basic header custom query"`
	AuthHeader   string        `mapstructure:"auth_header"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"gte=1"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" validate:"gte=0"`
	RateLimit    float64       `mapstructure:"rate_limit" validate:"gte=0"`
	Burst        int           `mapstructure:"burst" validate:"gte=0"`
	Temperature  float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int           `mapstructure:"max_tokens" validate:"gte=0"`
}

// ChunkConfig sets the extraction chunk budgets.
type ChunkConfig struct {
	Pages int `mapstructure:"pages" validate:"gte=1"`
	Chars int `mapstructure:"chars" validate:"gte=1"`
}

// MatchConfig tunes semantic matching.
type MatchConfig struct {
	BatchSize int `mapstructure:"batch_size" validate:"gte=1"`
}

// SheetConfig locates a spreadsheet input.
type SheetConfig struct {
	Path  string `mapstructure:"path"`
	Sheet string `mapstructure:"sheet"`
}

// MetricsConfig enables the Prometheus textfile.
type MetricsConfig struct {
	File string `mapstructure:"file"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=auto json console"`
	Output string `mapstructure:"output"`
}

// defaults doubles as the list of keys viper unmarshals from the environment.
var defaults = map[string]any{
	"verbose":               false,
	"quiet":                 false,
	"no_color":              false,
	"format":                "",
	"backend.provider":      backends.ProviderOpenAI,
	"backend.base_url":      "",
	"backend.model":         "",
	"backend.api_key":       "",
	"backend.auth_type":     "",
	"backend.auth_header":   "",
	"backend.timeout":       constants.DefaultRequestTimeout,
	"backend.max_attempts":  constants.DefaultMaxAttempts,
	"backend.retry_backoff": constants.DefaultRetryBackoff,
	"backend.rate_limit":    constants.DefaultRateLimit,
	"backend.burst":         constants.DefaultBurst,
	"backend.temperature":   constants.DefaultTemperature,
	"backend.max_tokens":    constants.DefaultMaxTokens,
	"chunk.pages":           constants.DefaultPagesPerChunk,
	"chunk.chars":           constants.DefaultChunkChars,
	"workers":               constants.DefaultMaxWorkers,
	"match.batch_size":      constants.DefaultMatchBatchSize,
	"erp.path":              "",
	"erp.sheet":             "",
	"standard.path":         "",
	"standard.sheet":        constants.MappingSheet,
	"output":                "",
	"metrics.file":          "",
	"log.level":             "",
	"log.format":            "auto",
	"log.output":            "stderr",
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (applied by the commands)
// 2. EDIMAP_* environment variables
// 3. .env files
// 4. Config file (configFile, or $HOME/.config/edimap/config.yaml)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "cannot read "+configFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "edimap"))
		}
		v.SetConfigType("yaml")
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.NewConfigError("config", "cannot read config file", err)
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.NewConfigError("config", "cannot decode configuration", err)
	}
	config.ConfigFile = v.ConfigFileUsed()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.NewConfigError("config",
				configKey(fe.Namespace())+" failed "+fe.Tag()+" validation", err)
		}
		return errors.NewConfigError("config", "invalid configuration", err)
	}
	return nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = c.Verbose || verbose
	c.Quiet = c.Quiet || quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
}

// BackendSettings converts the backend section for the backend factory.
func (c *Config) BackendSettings() backends.Config {
	return backends.Config{
		Provider:    c.Backend.Provider,
		BaseURL:     c.Backend.BaseURL,
		Model:       c.Backend.Model,
		APIKey:      c.Backend.APIKey,
		AuthType:    c.Backend.AuthType,
		AuthHeader:  c.Backend.AuthHeader,
		Timeout:     c.Backend.Timeout,
		Temperature: c.Backend.Temperature,
		MaxTokens:   c.Backend.MaxTokens,
	}
}

// configKey turns a validator namespace such as Config.Backend.BaseURL into
// the dotted key path users write.
func configKey(namespace string) string {
	_, rest, _ := strings.Cut(namespace, ".")
	return strings.ToLower(rest)
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
