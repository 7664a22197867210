// Package config loads revq settings from defaults, an optional YAML file,
// REVQ_* environment variables and command-line flags, in that order.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/revq/internal/interval"
	"github.com/conorfennell/revq/internal/validate"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels: REVQ_HTTP__READ_TIMEOUT sets http.read_timeout.
const EnvPrefix = "REVQ_"

type Config struct {
	DB        DBConfig        `koanf:"db" validate:"required"`
	HTTP      HTTPConfig      `koanf:"http" validate:"required"`
	Log       LogConfig       `koanf:"log" validate:"required"`
	Scheduler SchedulerConfig `koanf:"scheduler" validate:"required"`
	Policy    interval.Params `koanf:"policy"`
	Import    ImportConfig    `koanf:"import" validate:"required"`
}

type DBConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type HTTPConfig struct {
	Addr           string        `koanf:"addr" validate:"required"`
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `koanf:"write_timeout" validate:"gt=0"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type SchedulerConfig struct {
	MaxAttempts int `koanf:"max_attempts" validate:"min=1,max=10"`
}

type ImportConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		DB: DBConfig{Path: "revq.db"},
		HTTP: HTTPConfig{
			Addr:           "127.0.0.1:8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{MaxAttempts: 3},
		Policy:    *interval.DefaultParams(),
		Import:    ImportConfig{ReposDir: "repos"},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"db":           "db.path",
	"addr":         "http.addr",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"max-attempts": "scheduler.max_attempts",
	"repos-dir":    "import.repos_dir",
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "Path to a YAML configuration file")
	fs.String("db", d.DB.Path, "Path to the SQLite database file")
	fs.String("addr", d.HTTP.Addr, "HTTP listen address")
	fs.String("log-level", d.Log.Level, "Log level: debug, info, warn or error")
	fs.String("log-format", d.Log.Format, "Log format: text or json")
	fs.Int("max-attempts", d.Scheduler.MaxAttempts, "Attempts per answer on version conflicts")
	fs.String("repos-dir", d.Import.ReposDir, "Directory git sources are cloned into")
}

// Load builds the configuration. fs must have been parsed; pass nil to skip
// flags entirely.
func Load(fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	var path string
	if fs != nil {
		path, _ = fs.GetString("config")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				// Command flags that are not settings live under "cli" and
				// are ignored by Unmarshal.
				key = "cli." + f.Name
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, fmt.Errorf("failed to read flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and the interval policy parameters.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Policy.Validate()
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// NewLogger builds the slog logger described by the log section.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
