// Package config provides configuration management for heap-dump.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/heap-dump/internal/sizing"
	"github.com/heap-dump/pkg/model"
	"github.com/heap-dump/pkg/roots"
	"github.com/heap-dump/pkg/utils"

	apperrors "github.com/heap-dump/pkg/errors"
)

// EnvPrefix prefixes environment overrides: HEAPDUMP_DUMP_STRATEGY=eager.
const EnvPrefix = "HEAPDUMP"

// Config holds all configuration for the application.
type Config struct {
	Dump     DumpConfig      `mapstructure:"dump"`
	Platform sizing.Platform `mapstructure:"platform"`
	Output   OutputConfig    `mapstructure:"output"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Database DatabaseConfig  `mapstructure:"database"`
	Server   ServerConfig    `mapstructure:"server"`
	Log      LogConfig       `mapstructure:"log"`
}

// DumpConfig controls traversal.
type DumpConfig struct {
	Strategy       string   `mapstructure:"strategy"` // queued or eager
	Access         string   `mapstructure:"access"`   // all, public or nonpublic
	SkipEmptyTypes bool     `mapstructure:"skip_empty_types"`
	InlineStructs  bool     `mapstructure:"inline_structs"`
	Include        []string `mapstructure:"include"`
	Exclude        []string `mapstructure:"exclude"`
	MaxValueLen    int      `mapstructure:"max_value_len"`
}

// OutputConfig controls how reports are written.
type OutputConfig struct {
	Format      string `mapstructure:"format"`      // xml or json
	Compression string `mapstructure:"compression"` // none, gzip or zstd
	FlameGraph  bool   `mapstructure:"flamegraph"`
	Top         int    `mapstructure:"top"`
	TopDepth    int    `mapstructure:"top_depth"`
}

// StorageConfig holds report storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
}

// DatabaseConfig holds the dump history database. An empty type disables
// history.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // postgres, mysql or sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Path     string `mapstructure:"path"` // sqlite file
	MaxConns int    `mapstructure:"max_conns"`
}

// Enabled reports whether dump history is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Type != ""
}

// ServerConfig holds the HTTP trigger.
type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	Path     string `mapstructure:"path"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string              `mapstructure:"level"`
	File   string              `mapstructure:"file"` // empty logs to stderr
	Rotate utils.RotateOptions `mapstructure:",squash"`
}

// Load reads configuration from the specified file path. A missing file
// leaves the defaults in place.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("heap-dump")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/heap-dump")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "read config file", err)
		}
	}
	return unmarshal(v)
}

// LoadFromReader loads configuration from content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "read config", err)
	}
	return unmarshal(v)
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	host := sizing.HostPlatform()

	v.SetDefault("dump.strategy", string(model.StrategyQueued))
	v.SetDefault("dump.access", "all")
	v.SetDefault("dump.skip_empty_types", false)
	v.SetDefault("dump.inline_structs", false)
	v.SetDefault("dump.include", []string{})
	v.SetDefault("dump.exclude", []string{})
	v.SetDefault("dump.max_value_len", 64)

	v.SetDefault("platform.pointer_width", host.PointerWidth)
	v.SetDefault("platform.char_width", host.CharWidth)
	v.SetDefault("platform.length_prefix_width", host.LengthPrefixWidth)

	v.SetDefault("output.format", "xml")
	v.SetDefault("output.compression", "none")
	v.SetDefault("output.flamegraph", false)
	v.SetDefault("output.top", 10)
	v.SetDefault("output.top_depth", 3)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./heapdumps")

	v.SetDefault("database.type", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.path", "./heap-dump.db")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("server.addr", ":6061")
	v.SetDefault("server.path", "/debug/heapdump")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, ok := model.ParseStrategy(c.Dump.Strategy); !ok {
		return apperrors.Newf(apperrors.CodeConfigError, "unknown strategy %q", c.Dump.Strategy)
	}
	if _, err := roots.ParseAccess(c.Dump.Access); err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "dump.access", err)
	}
	if err := c.Platform.Validate(); err != nil {
		return err
	}

	switch c.Output.Format {
	case "xml", "json":
	default:
		return apperrors.Newf(apperrors.CodeConfigError, "unsupported output format: %s", c.Output.Format)
	}
	switch c.Output.Compression {
	case "", "none", "gzip", "zstd":
	default:
		return apperrors.Newf(apperrors.CodeConfigError, "unsupported compression: %s", c.Output.Compression)
	}

	switch c.Database.Type {
	case "", "postgres", "postgresql", "mysql", "sqlite":
	default:
		return apperrors.Newf(apperrors.CodeConfigError, "unsupported database type: %s", c.Database.Type)
	}
	if c.Database.Type == "sqlite" && c.Database.Path == "" {
		return apperrors.New(apperrors.CodeConfigError, "sqlite database path is required")
	}

	// Storage config validation is delegated to storage package
	return nil
}

// Strategy returns the parsed traversal strategy.
func (c *Config) Strategy() model.Strategy {
	s, _ := model.ParseStrategy(c.Dump.Strategy)
	return s
}

// Access returns the parsed static field access.
func (c *Config) Access() roots.Access {
	a, err := roots.ParseAccess(c.Dump.Access)
	if err != nil {
		return roots.AccessAll
	}
	return a
}

// String renders the effective dump settings for logs.
func (d DumpConfig) String() string {
	return fmt.Sprintf("strategy=%s access=%s include=%v exclude=%v", d.Strategy, d.Access, d.Include, d.Exclude)
}
