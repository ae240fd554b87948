// Package config loads the bot configuration from a YAML file with
// environment variable overrides.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("PERSONABOT").
//	    Load()
//
// Precedence: defaults → YAML file → environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration.
type Config struct {
	Telegram     TelegramConfig     `yaml:"telegram" env:"TELEGRAM"`
	LLM          LLMConfig          `yaml:"llm" env:"LLM"`
	Characters   CharactersConfig   `yaml:"characters" env:"CHARACTERS"`
	Conversation ConversationConfig `yaml:"conversation" env:"CONVERSATION"`
	Log          LogConfig          `yaml:"log" env:"LOG"`
	Metrics      MetricsConfig      `yaml:"metrics" env:"METRICS"`
}

// TelegramConfig configures the transport adapter.
type TelegramConfig struct {
	// Bot API token.
	Token string `yaml:"token" env:"TOKEN"`
	// Base URL override, for tests.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Chat ids allowed to run operator commands (/broadcast, /shutdown).
	AdminChatIDs []int64 `yaml:"admin_chat_ids" env:"ADMIN_CHAT_IDS"`
	// Long polling timeout.
	PollTimeout time.Duration `yaml:"poll_timeout" env:"POLL_TIMEOUT"`
	// Minimum delay between sends to one chat.
	SendInterval time.Duration `yaml:"send_interval" env:"SEND_INTERVAL"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	// Provider selects the adapter: "yandexgpt" or "openai-compat".
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API key for the selected provider.
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// FolderID is required for the yandexgpt provider.
	FolderID string `yaml:"folder_id" env:"FOLDER_ID"`
	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Model name.
	Model string `yaml:"model" env:"MODEL"`
	// Sampling temperature, fixed for the process lifetime.
	Temperature float32 `yaml:"temperature" env:"TEMPERATURE"`
	// Completion length cap.
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// Request timeout.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// CharactersConfig configures the character catalog.
type CharactersConfig struct {
	// Path to the YAML catalog, re-read on every lookup.
	Path string `yaml:"path" env:"PATH"`
	// Label used for user turns when rendering transcripts.
	DefaultUserLabel string `yaml:"default_user_label" env:"DEFAULT_USER_LABEL"`
}

// ConversationConfig configures multi-agent runs.
type ConversationConfig struct {
	// Minimum delay between emitted turns.
	TurnDelay time.Duration `yaml:"turn_delay" env:"TURN_DELAY"`
	// Rounds per run when the command does not specify one.
	DefaultRounds int `yaml:"default_rounds" env:"DEFAULT_ROUNDS"`
}

// LogConfig configures zap.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// Output paths.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// MetricsConfig configures the prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	Port    int  `yaml:"port" env:"PORT"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout:  30 * time.Second,
			SendInterval: time.Second,
		},
		LLM: LLMConfig{
			Provider:    "yandexgpt",
			Model:       "yandexgpt",
			Temperature: 0.6,
			Timeout:     30 * time.Second,
		},
		Characters: CharactersConfig{
			Path:             "characters.yaml",
			DefaultUserLabel: "User",
		},
		Conversation: ConversationConfig{
			TurnDelay:     2 * time.Second,
			DefaultRounds: 2,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stderr"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Loader loads configuration with the builder pattern.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a loader with the default env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "PERSONABOT"}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load applies defaults, then the YAML file, then the environment.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		parts := strings.Split(value, ",")
		switch field.Type().Elem().Kind() {
		case reflect.String:
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				out = append(out, strings.TrimSpace(p))
			}
			field.Set(reflect.ValueOf(out))
		case reflect.Int64:
			out := make([]int64, 0, len(parts))
			for _, p := range parts {
				n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
				if err != nil {
					return err
				}
				out = append(out, n)
			}
			field.Set(reflect.ValueOf(out))
		}
	}

	return nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Telegram.Token == "" {
		errs = append(errs, "telegram token is required")
	}
	switch c.LLM.Provider {
	case "yandexgpt":
		if c.LLM.FolderID == "" {
			errs = append(errs, "llm folder_id is required for yandexgpt")
		}
	case "openai-compat":
		if c.LLM.BaseURL == "" {
			errs = append(errs, "llm base_url is required for openai-compat")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, "llm api_key is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}
	if c.Characters.Path == "" {
		errs = append(errs, "characters path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
