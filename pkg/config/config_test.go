package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolate clears the variables LoadConfig reads and moves into an empty dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, name := range []string{
		envConfigPath, envTelegramBotToken, envTelegramAllowFrom,
		envWebhookSecret, envStrict, envImmediate, envStoreDSN,
	} {
		t.Setenv(name, "")
	}
	return dir
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.json")
	content := `{
	  "bot": {"username": "linebot", "strict": true},
	  "channels": {"telegram": {"token": "file-token", "client": "http", "allow_from": ["1"]}},
	  "gateway": {"host": "0.0.0.0", "port": 18790},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(envConfigPath, path)

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging.level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if !cfg.Logging.AddSource {
		t.Fatal("logging.add_source = false, want true")
	}
	require.True(t, cfg.Bot.Strict)
	require.Equal(t, "linebot", cfg.Bot.Username)
	require.Equal(t, ClientHTTP, cfg.Channels.Telegram.Client)
	require.Equal(t, ModePolling, cfg.Channels.Telegram.Mode)
	require.Equal(t, "0.0.0.0:18790", cfg.Gateway.Addr())
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	isolate(t)
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(nil); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	require.Equal(t, ClientTelego, cfg.Channels.Telegram.Client)
	require.Equal(t, 30, cfg.Channels.Telegram.PollTimeoutSeconds)
	require.Equal(t, "/telegram/webhook", cfg.Webhook.Path)
	require.Equal(t, StoreMemory, cfg.Store.Driver)
	require.Equal(t, 30, cfg.Bot.CallTimeoutSeconds)
}

func TestLoadConfigEnvOverridesAndDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BOTLINE_IMMEDIATE=true\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv(envImmediate) })
	os.Unsetenv(envImmediate)

	t.Setenv(envTelegramBotToken, "env-token")
	t.Setenv(envTelegramAllowFrom, " 1, ,alice ")
	t.Setenv(envStrict, "1")

	cfg, err := LoadConfig(func(string) (string, error) {
		t.Fatal("keychain must not be consulted when a token is set")
		return "", nil
	})
	require.NoError(t, err)
	require.Equal(t, "env-token", cfg.Channels.Telegram.Token)
	require.Equal(t, []string{"1", "alice"}, cfg.Channels.Telegram.AllowFrom)
	require.True(t, cfg.Bot.Strict)
	require.True(t, cfg.Bot.Immediate)
}

func TestLoadConfigRejectsBadBool(t *testing.T) {
	isolate(t)
	t.Setenv(envStrict, "sometimes")

	_, err := LoadConfig(nil)
	require.ErrorContains(t, err, envStrict)
}

func TestLoadConfigKeychainFallback(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig(func(name string) (string, error) {
		require.Equal(t, TokenSecretName, name)
		return " stored-token ", nil
	})
	require.NoError(t, err)
	require.Equal(t, "stored-token", cfg.Channels.Telegram.Token)

	_, err = LoadConfig(func(string) (string, error) { return "", errors.New("locked") })
	require.ErrorContains(t, err, "locked")
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	require.NoError(t, cfg.Validate())

	cfg.Store.Driver = StorePostgres
	require.ErrorContains(t, cfg.Validate(), "store.dsn")
	cfg.Store.DSN = "postgres://localhost/botline"
	require.NoError(t, cfg.Validate())

	cfg.Channels.Telegram.Mode = "carrier-pigeon"
	require.Error(t, cfg.Validate())

	cfg.Channels.Telegram.Mode = ModeWebhook
	cfg.Webhook.Path = "hook"
	require.Error(t, cfg.Validate())
}
