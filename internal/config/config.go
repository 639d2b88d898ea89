package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix marks environment overrides. A double underscore separates
// nesting levels: OPTSVC_WORKERS__MAX_CONCURRENT -> workers.max_concurrent.
const EnvPrefix = "OPTSVC_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Optimizer OptimizerConfig `koanf:"optimizer"`
	Workers   WorkersConfig   `koanf:"workers"`
	Retention RetentionConfig `koanf:"retention"`
	Log       LogConfig       `koanf:"log"`
	Redis     RedisConfig     `koanf:"redis"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type OptimizerConfig struct {
	Binary     string        `koanf:"binary"`
	Subcommand string        `koanf:"subcommand"`
	Timeout    time.Duration `koanf:"timeout"` // 0 = unbounded
}

type WorkersConfig struct {
	MaxConcurrent int `koanf:"max_concurrent"`
}

// RetentionConfig drives the periodic sweeper. Interval 0 disables it; the
// cleanup endpoint works either way.
type RetentionConfig struct {
	MaxAge   time.Duration `koanf:"max_age"`
	Interval time.Duration `koanf:"interval"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // console | json
	File   string `koanf:"file"`
}

// RedisConfig enables lifecycle events when Addr is set.
type RedisConfig struct {
	Addr       string `koanf:"addr"`
	Channel    string `koanf:"channel"`
	EventsKey  string `koanf:"events_key"`
	EventsSize int64  `koanf:"events_size"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Optimizer: OptimizerConfig{
			Binary:     "cortex-mem-cli",
			Subcommand: "optimize",
		},
		Workers:   WorkersConfig{MaxConcurrent: 4},
		Retention: RetentionConfig{MaxAge: 7 * 24 * time.Hour, Interval: time.Hour},
		Log:       LogConfig{Level: "info", Format: "console"},
		Redis: RedisConfig{
			Channel:    "optimization:events",
			EventsKey:  "optimization:events:recent",
			EventsSize: 500,
		},
	}
}

func defaultsMap() map[string]any {
	def := Default()
	return map[string]any{
		"server.addr":             def.Server.Addr,
		"server.read_timeout":     def.Server.ReadTimeout,
		"server.write_timeout":    def.Server.WriteTimeout,
		"server.shutdown_timeout": def.Server.ShutdownTimeout,

		"optimizer.binary":     def.Optimizer.Binary,
		"optimizer.subcommand": def.Optimizer.Subcommand,
		"optimizer.timeout":    def.Optimizer.Timeout,

		"workers.max_concurrent": def.Workers.MaxConcurrent,

		"retention.max_age":  def.Retention.MaxAge,
		"retention.interval": def.Retention.Interval,

		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"redis.addr":        def.Redis.Addr,
		"redis.channel":     def.Redis.Channel,
		"redis.events_key":  def.Redis.EventsKey,
		"redis.events_size": def.Redis.EventsSize,
	}
}

// BindFlags registers one flag per key. Only flags the user actually sets
// override env and defaults.
func BindFlags(flags *pflag.FlagSet) {
	def := Default()

	flags.String("server.addr", def.Server.Addr, "HTTP listen address")
	flags.Duration("server.read_timeout", def.Server.ReadTimeout, "HTTP read timeout")
	flags.Duration("server.write_timeout", def.Server.WriteTimeout, "HTTP write timeout")
	flags.Duration("server.shutdown_timeout", def.Server.ShutdownTimeout, "graceful shutdown limit")

	flags.String("optimizer.binary", def.Optimizer.Binary, "optimizer executable")
	flags.String("optimizer.subcommand", def.Optimizer.Subcommand, "optimizer subcommand")
	flags.Duration("optimizer.timeout", def.Optimizer.Timeout, "per-run optimizer timeout (0 = none)")

	flags.Int("workers.max_concurrent", def.Workers.MaxConcurrent, "max optimizer runs at once")

	flags.Duration("retention.max_age", def.Retention.MaxAge, "age after which jobs are swept")
	flags.Duration("retention.interval", def.Retention.Interval, "sweep period (0 = disabled)")

	flags.String("log.level", def.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log.format", def.Log.Format, "log format (console, json)")
	flags.String("log.file", def.Log.File, "also write logs to this file, rotated")

	flags.String("redis.addr", def.Redis.Addr, "Redis address for lifecycle events (empty = disabled)")
	flags.String("redis.channel", def.Redis.Channel, "Redis pub/sub channel")
	flags.String("redis.events_key", def.Redis.EventsKey, "Redis list holding recent events")
	flags.Int64("redis.events_size", def.Redis.EventsSize, "recent events kept")
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Load merges defaults < environment < flags. flags may be nil.
func Load(flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Optimizer.Binary == "" {
		errs = append(errs, errors.New("optimizer.binary is required"))
	}
	if c.Optimizer.Timeout < 0 {
		errs = append(errs, errors.New("optimizer.timeout must not be negative"))
	}
	if c.Workers.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("workers.max_concurrent must be positive"))
	}
	if c.Retention.MaxAge < 0 || c.Retention.Interval < 0 {
		errs = append(errs, errors.New("retention durations must not be negative"))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want console or json", c.Log.Format))
	}
	if c.Redis.Addr != "" && c.Redis.EventsSize <= 0 {
		errs = append(errs, errors.New("redis.events_size must be positive"))
	}
	return errors.Join(errs...)
}
