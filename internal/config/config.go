package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the relay. It is built once at
// startup and passed by value to the components that need it.
type Config struct {
	Misskey MisskeyConfig `yaml:"misskey"`
	Webhook WebhookConfig `yaml:"webhook"`
	Relay   RelayConfig   `yaml:"relay"`
	Format  FormatConfig  `yaml:"format"`
	Log     LogConfig     `yaml:"log"`
}

type MisskeyConfig struct {
	Host           string        `yaml:"host" env:"MISSKEY_HOST"`
	Token          string        `yaml:"token" env:"MISSKEY_TOKEN"`
	TargetUserID   string        `yaml:"targetUserId" env:"TARGET_USER_ID"`
	Channel        string        `yaml:"channel" env:"MISSKEY_CHANNEL"`
	SubscriptionID string        `yaml:"subscriptionId,omitempty" env:"MISSKEY_SUBSCRIPTION_ID"` // random when empty
	DialTimeout    time.Duration `yaml:"dialTimeout" env:"MISSKEY_DIAL_TIMEOUT"`
}

type WebhookConfig struct {
	URL     string        `yaml:"url" env:"DISCORD_WEBHOOK_URL"`
	Kind    string        `yaml:"kind" env:"WEBHOOK_KIND"` // "webhook" | "discord" | "slack"
	Timeout time.Duration `yaml:"timeout" env:"WEBHOOK_TIMEOUT"`
}

type RelayConfig struct {
	Interval         time.Duration `yaml:"interval" env:"RELAY_INTERVAL"`
	IdleWait         time.Duration `yaml:"idleWait" env:"RELAY_IDLE_WAIT"`
	ReconnectOnIdle  bool          `yaml:"reconnectOnIdle" env:"RELAY_RECONNECT_ON_IDLE"`
	ReconnectOnClose bool          `yaml:"reconnectOnClose" env:"RELAY_RECONNECT_ON_CLOSE"`
}

type FormatConfig struct {
	NoteLabel       string `yaml:"noteLabel" env:"FORMAT_NOTE_LABEL"`
	AttachmentLabel string `yaml:"attachmentLabel" env:"FORMAT_ATTACHMENT_LABEL"` // %d is the 1-based index
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // debug | info | warn | error
	Format string `yaml:"format" env:"LOG_FORMAT"` // text | json
}

// DefaultConfigDir returns the default config directory (~/.misskeyrelay).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".misskeyrelay"
	}
	return filepath.Join(home, ".misskeyrelay")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and the environment, in that order, then validates it. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	return load(path, env.Options{})
}

func load(path string, opts env.Options) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Misskey.SubscriptionID == "" {
		cfg.Misskey.SubscriptionID = uuid.NewString()
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	path = ExpandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	// The file may hold the stream token and webhook URL.
	return os.WriteFile(path, data, 0o600)
}

// ErrMissingSecret is wrapped by Validate when a required value is empty.
var ErrMissingSecret = errors.New("required value not set")

// Validate checks that the config has usable values.
func Validate(cfg *Config) error {
	var errs []string

	required := []struct{ name, value string }{
		{"MISSKEY_HOST", cfg.Misskey.Host},
		{"MISSKEY_TOKEN", cfg.Misskey.Token},
		{"TARGET_USER_ID", cfg.Misskey.TargetUserID},
		{"DISCORD_WEBHOOK_URL", cfg.Webhook.URL},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Sprintf("%s must be set", strings.Join(missing, ", ")))
	}

	if strings.Contains(cfg.Misskey.Host, "/") {
		errs = append(errs, "misskey.host must be a bare host name (no scheme or path)")
	}
	if cfg.Webhook.URL != "" {
		if u, err := url.Parse(cfg.Webhook.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "webhook.url must be an absolute http(s) URL")
		}
	}
	switch cfg.Webhook.Kind {
	case "", "webhook", "discord", "slack":
	default:
		errs = append(errs, "webhook.kind must be one of: webhook, discord, slack")
	}
	if cfg.Webhook.Timeout <= 0 {
		errs = append(errs, "webhook.timeout must be > 0")
	}
	if cfg.Misskey.DialTimeout <= 0 {
		errs = append(errs, "misskey.dialTimeout must be > 0")
	}
	if cfg.Relay.Interval <= 0 {
		errs = append(errs, "relay.interval must be > 0")
	}
	if cfg.Relay.IdleWait <= 0 {
		errs = append(errs, "relay.idleWait must be > 0")
	}
	if cfg.Format.AttachmentLabel != "" && strings.Count(cfg.Format.AttachmentLabel, "%d") != 1 {
		errs = append(errs, "format.attachmentLabel must contain exactly one %d")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be one of: debug, info, warn, error")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, "log.format must be one of: text, json")
	}

	if len(errs) > 0 {
		err := fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
		if len(missing) > 0 {
			return fmt.Errorf("%w: %w", ErrMissingSecret, err)
		}
		return err
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Sanitize returns a copy of the config with secrets masked.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	if out.Misskey.Token != "" {
		out.Misskey.Token = maskString(out.Misskey.Token)
	}
	if out.Webhook.URL != "" {
		out.Webhook.URL = maskURL(out.Webhook.URL)
	}
	return &out
}

// maskString shows first 4 and last 4 chars, masks the rest.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// maskURL keeps scheme and host; webhook paths usually embed a token.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Scheme + "://" + u.Host + "/***"
}
