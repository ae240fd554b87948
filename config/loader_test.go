package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Telegram.PollTimeout)
	assert.Equal(t, time.Second, cfg.Telegram.SendInterval)
	assert.Equal(t, "yandexgpt", cfg.LLM.Provider)
	assert.InDelta(t, 0.6, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, "characters.yaml", cfg.Characters.Path)
	assert.Equal(t, "User", cfg.Characters.DefaultUserLabel)
	assert.Equal(t, 2*time.Second, cfg.Conversation.TurnDelay)
	assert.Equal(t, 2, cfg.Conversation.DefaultRounds)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoader_FromFile(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  poll_timeout: 10s
  admin_chat_ids: [42, 77]
llm:
  provider: openai-compat
  api_key: sk-test
  base_url: http://localhost:8080
  model: gpt-4o-mini
  temperature: 0.9
characters:
  path: /etc/personabot/characters.yaml
conversation:
  turn_delay: 500ms
  default_rounds: 3
log:
  level: debug
  format: console
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, 10*time.Second, cfg.Telegram.PollTimeout)
	assert.Equal(t, []int64{42, 77}, cfg.Telegram.AdminChatIDs)
	assert.Equal(t, "openai-compat", cfg.LLM.Provider)
	assert.InDelta(t, 0.9, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, "/etc/personabot/characters.yaml", cfg.Characters.Path)
	assert.Equal(t, 500*time.Millisecond, cfg.Conversation.TurnDelay)
	assert.Equal(t, 3, cfg.Conversation.DefaultRounds)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, time.Second, cfg.Telegram.SendInterval)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, "yandexgpt", cfg.LLM.Provider)
}

func TestLoader_MalformedFile(t *testing.T) {
	path := writeConfig(t, "telegram: [not a mapping")
	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: from-file
llm:
  api_key: from-file
`)

	t.Setenv("PERSONABOT_TELEGRAM_TOKEN", "from-env")
	t.Setenv("PERSONABOT_LLM_TEMPERATURE", "1.2")
	t.Setenv("PERSONABOT_TELEGRAM_POLL_TIMEOUT", "45s")
	t.Setenv("PERSONABOT_TELEGRAM_ADMIN_CHAT_IDS", "1, 2, 3")
	t.Setenv("PERSONABOT_LOG_OUTPUT_PATHS", "stdout,stderr")
	t.Setenv("PERSONABOT_METRICS_ENABLED", "false")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	assert.InDelta(t, 1.2, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 45*time.Second, cfg.Telegram.PollTimeout)
	assert.Equal(t, []int64{1, 2, 3}, cfg.Telegram.AdminChatIDs)
	assert.Equal(t, []string{"stdout", "stderr"}, cfg.Log.OutputPaths)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoader_EnvPrefixIsConfigurable(t *testing.T) {
	t.Setenv("MYBOT_TELEGRAM_TOKEN", "prefixed")

	cfg, err := NewLoader().WithEnvPrefix("MYBOT").Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Telegram.Token)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Telegram.Token = "123:abc"
		cfg.LLM.APIKey = "key"
		cfg.LLM.FolderID = "folder"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing token", func(t *testing.T) {
		cfg := valid()
		cfg.Telegram.Token = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telegram token")
	})

	t.Run("yandexgpt requires folder", func(t *testing.T) {
		cfg := valid()
		cfg.LLM.FolderID = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("openai-compat requires base url", func(t *testing.T) {
		cfg := valid()
		cfg.LLM.Provider = "openai-compat"
		cfg.LLM.BaseURL = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := valid()
		cfg.LLM.Provider = "mystery"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mystery")
	})

	t.Run("temperature out of range", func(t *testing.T) {
		cfg := valid()
		cfg.LLM.Temperature = 2.5
		require.Error(t, cfg.Validate())
	})

	t.Run("collects multiple errors", func(t *testing.T) {
		cfg := valid()
		cfg.Telegram.Token = ""
		cfg.LLM.APIKey = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telegram token")
		assert.Contains(t, err.Error(), "api_key")
	})
}
