package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

const (
	envConfigPath        = "BOTLINE_CONFIG"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envWebhookSecret     = "TELEGRAM_WEBHOOK_SECRET"
	envStrict            = "BOTLINE_STRICT"
	envImmediate         = "BOTLINE_IMMEDIATE"
	envStoreDSN          = "BOTLINE_STORE_DSN"

	// TokenSecretName is the keychain entry holding the bot token.
	TokenSecretName = "telegram-bot-token"
)

const (
	ClientTelego = "telego"
	ClientHTTP   = "http"

	ModePolling = "polling"
	ModeWebhook = "webhook"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Bot      BotConfig      `json:"bot"`
	Channels ChannelsConfig `json:"channels"`
	Webhook  WebhookConfig  `json:"webhook"`
	Store    StoreConfig    `json:"store"`
	Gateway  GatewayConfig  `json:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// BotConfig controls update parsing and outbound delivery.
type BotConfig struct {
	Username           string `json:"username"`
	Strict             bool   `json:"strict"`
	Immediate          bool   `json:"immediate"`
	CallTimeoutSeconds int    `json:"call_timeout_seconds"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Token string `json:"token"`
	// Client selects the outbound implementation: telego or http.
	Client string `json:"client"`
	// Mode selects how updates arrive: polling or webhook.
	Mode               string   `json:"mode"`
	AllowFrom          []string `json:"allow_from"`
	BaseURL            string   `json:"base_url"`
	PollTimeoutSeconds int      `json:"poll_timeout_seconds"`
}

// WebhookConfig configures the inbound webhook route on the gateway server.
type WebhookConfig struct {
	Path   string `json:"path"`
	Secret string `json:"secret"`
}

// StoreConfig selects the conversation store backend.
type StoreConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// GatewayConfig configures HTTP gateway bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the host:port listen address.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// SecretLookup reads a named secret, for example from the OS keychain. It
// returns an empty string when the secret does not exist.
type SecretLookup func(name string) (string, error)

// LoadConfig loads .env, resolves config.json, unmarshals it and applies
// environment overrides and defaults. When no token is configured, lookup is
// asked for one.
func LoadConfig(lookup SecretLookup) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Channels.Telegram.Token) == "" && lookup != nil {
		token, err := lookup(TokenSecretName)
		if err != nil {
			return nil, fmt.Errorf("read token from keychain: %w", err)
		}
		cfg.Channels.Telegram.Token = strings.TrimSpace(token)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDotEnv reads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}

	if secret := strings.TrimSpace(os.Getenv(envWebhookSecret)); secret != "" {
		cfg.Webhook.Secret = secret
	}

	if dsn := strings.TrimSpace(os.Getenv(envStoreDSN)); dsn != "" {
		cfg.Store.DSN = dsn
	}

	var err error
	if cfg.Bot.Strict, err = envBool(envStrict, cfg.Bot.Strict); err != nil {
		return err
	}
	if cfg.Bot.Immediate, err = envBool(envImmediate, cfg.Bot.Immediate); err != nil {
		return err
	}

	return nil
}

func envBool(name string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a boolean: %q", name, raw)
	}
	return value, nil
}

func applyDefaults(cfg *Config) {
	tg := &cfg.Channels.Telegram
	if tg.Client == "" {
		tg.Client = ClientTelego
	}
	if tg.Mode == "" {
		tg.Mode = ModePolling
	}
	if tg.PollTimeoutSeconds <= 0 {
		tg.PollTimeoutSeconds = 30
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = "/telegram/webhook"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreMemory
	}
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18790
	}
	if cfg.Bot.CallTimeoutSeconds <= 0 {
		cfg.Bot.CallTimeoutSeconds = 30
	}
}

// Validate checks enumerated settings and their dependencies.
func (c *Config) Validate() error {
	tg := c.Channels.Telegram
	switch tg.Client {
	case ClientTelego, ClientHTTP:
	default:
		return fmt.Errorf("channels.telegram.client must be %q or %q, got %q", ClientTelego, ClientHTTP, tg.Client)
	}

	switch tg.Mode {
	case ModePolling:
	case ModeWebhook:
		if !strings.HasPrefix(c.Webhook.Path, "/") {
			return fmt.Errorf("webhook.path must start with /, got %q", c.Webhook.Path)
		}
	default:
		return fmt.Errorf("channels.telegram.mode must be %q or %q, got %q", ModePolling, ModeWebhook, tg.Mode)
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return errors.New("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store.Driver)
	}

	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port out of range: %d", c.Gateway.Port)
	}

	return nil
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is BOTLINE_CONFIG first, then cwd-local fallback paths. An empty
// path means no file was found and defaults apply.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
