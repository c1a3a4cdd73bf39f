package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	cfile "k3clevel/common/file"
)

const (
	EnvPrefix  = "BEDLEVEL_"
	EnvConfig  = EnvPrefix + "CONFIG"
	defaultLog = "~/printer_data/logs/leveling.log"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

type LogConfig struct {
	Level      string `koanf:"level"`
	File       string `koanf:"file"`
	Color      bool   `koanf:"color"`
	MaxSize    int    `koanf:"max_size"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"`
}

type StreamConfig struct {
	// Debug logs every rewritten motion line.
	Debug            bool   `koanf:"debug"`
	MetricsNamespace string `koanf:"metrics_namespace"`
}

type Config struct {
	Log    LogConfig    `koanf:"log"`
	Stream StreamConfig `koanf:"stream"`
}

func New() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			File:       defaultLog,
			Color:      true,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Stream: StreamConfig{
			MetricsNamespace: "k3c",
		},
	}
}

// Load layers defaults, the YAML file at path (or $BEDLEVEL_CONFIG when path
// is empty) and BEDLEVEL_ environment variables, in that order.
// BEDLEVEL_LOG_MAX_SIZE maps to log.max_size.
func Load(path string) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path = cfile.Resolve(path); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.Replace(s, "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	cfg.Log.File = cfile.Resolve(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NormalizeLevel maps a log level spelling to debug, info, warn or error.
// An empty level is info.
func NormalizeLevel(level string) (string, error) {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "debug", "info", "warn", "error":
		return l, nil
	case "":
		return "info", nil
	case "warning":
		return "warn", nil
	}
	return "", fmt.Errorf("unknown log level %q, want one of debug, info, warn, error", level)
}

func (self *Config) Validate() error {
	if _, err := NormalizeLevel(self.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	if self.Log.MaxSize <= 0 {
		return fmt.Errorf("%w: log.max_size must be positive", ErrInvalidConfig)
	}
	if self.Log.MaxBackups < 0 || self.Log.MaxAge < 0 {
		return fmt.Errorf("%w: log.max_backups and log.max_age must not be negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(self.Stream.MetricsNamespace) == "" {
		return fmt.Errorf("%w: stream.metrics_namespace must not be empty", ErrInvalidConfig)
	}
	return nil
}
