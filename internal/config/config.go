// Package config loads application configuration from an optional YAML
// file layered under environment variables.
//
// Environment variables use the SOC_RELAY_ prefix with "__" as the
// hierarchy separator, e.g. SOC_RELAY_TELEGRAM__BOT_TOKEN or
// SOC_RELAY_INGEST__API_KEY.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	koanffile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SOC_RELAY_"

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Telegram TelegramConfig `koanf:"telegram"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Storage  StorageConfig  `koanf:"storage"`
	Dispatch DispatchConfig `koanf:"dispatch"`
	Bot      BotConfig      `koanf:"bot"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig configures the ingest HTTP server and the metrics listener.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// TelegramConfig configures the Bot API client. The process refuses to
// start without a bot token.
type TelegramConfig struct {
	BotToken  string        `koanf:"bot_token" validate:"required"`
	RateLimit float64       `koanf:"rate_limit"`
	Timeout   time.Duration `koanf:"timeout"`
}

// IngestConfig configures ingest authentication. An empty APIKey means
// open mode: no authentication on the ingest endpoint.
type IngestConfig struct {
	APIKey string `koanf:"api_key"`
}

// StorageConfig configures the recipient registry file.
type StorageConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// DispatchConfig configures fan-out delivery.
type DispatchConfig struct {
	AttemptTimeout time.Duration `koanf:"attempt_timeout"`
}

// BotConfig configures the command poller.
type BotConfig struct {
	PollTimeout   time.Duration `koanf:"poll_timeout"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	SuperAdminIDs []int64       `koanf:"super_admin_ids"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Telegram: TelegramConfig{
			RateLimit: 25,
			Timeout:   10 * time.Second,
		},
		Storage: StorageConfig{
			Path: "data/recipients.json",
		},
		Dispatch: DispatchConfig{
			AttemptTimeout: 10 * time.Second,
		},
		Bot: BotConfig{
			PollTimeout: 30 * time.Second,
			RetryDelay:  5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the optional YAML file at path (empty
// path skips the file), overlays environment variables and validates
// the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(koanffile.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// transformEnv maps SOC_RELAY_SECTION__KEY to section.key. Comma-joined
// values become lists (for super_admin_ids).
func transformEnv(key, value string) (string, any) {
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ReplaceAll(strings.ToLower(key), "__", ".")

	if strings.Contains(value, ",") {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}
