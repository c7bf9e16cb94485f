// Package config loads the runtime configuration from defaults, an
// optional YAML or JSON file, FASTRT_* environment variables and flags,
// each layer overriding the one before.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/searchktools/fast-runtime/core/binding"
	"github.com/searchktools/fast-runtime/core/http"
	"github.com/searchktools/fast-runtime/core/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FASTRT"

// Config holds all application configuration.
type Config struct {
	Port         int           `config:"port" yaml:"port" json:"port"`
	ReadTimeout  time.Duration `config:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `config:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `config:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout"`
	Env          string        `config:"env" yaml:"env" json:"env"`

	Binding     binding.Config `config:"binding" yaml:"binding" json:"binding"`
	Parser      Parser         `config:"parser" yaml:"parser" json:"parser"`
	Logging     logging.Config `config:"logging" yaml:"logging" json:"logging"`
	Diagnostics Diagnostics    `config:"diagnostics" yaml:"diagnostics" json:"diagnostics"`
}

// Parser bounds what a single request may carry.
type Parser struct {
	MaxHeaderBytes int   `config:"max_header_bytes" yaml:"max_header_bytes" json:"max_header_bytes"`
	MaxBodyBytes   int64 `config:"max_body_bytes" yaml:"max_body_bytes" json:"max_body_bytes"`
}

// Limits converts the section to parser limits.
func (p Parser) Limits() http.Limits {
	return http.Limits{MaxHeaderBytes: p.MaxHeaderBytes, MaxBodyBytes: p.MaxBodyBytes}
}

// Diagnostics configures the status and metrics listener. An empty Addr
// disables it.
type Diagnostics struct {
	Addr string `config:"addr" yaml:"addr" json:"addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Port:         8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		Env:          "development",
		Binding:      binding.DefaultConfig(),
		Parser: Parser{
			MaxHeaderBytes: http.DefaultMaxHeaderBytes,
			MaxBodyBytes:   10 << 20,
		},
		Logging: logging.Config{Level: "info"},
	}
}

// New loads configuration from the process arguments and environment,
// exiting on error.
func New() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return cfg
}

// Load builds the configuration from args and the process environment.
func Load(args []string) (*Config, error) {
	return load(args, os.Environ())
}

func load(args, environ []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("fast-runtime", flag.ContinueOnError)
	file := fs.String("config", "", "YAML or JSON configuration file")
	fs.Int("port", cfg.Port, "HTTP server port")
	fs.Duration("read-timeout", cfg.ReadTimeout, "HTTP read timeout")
	fs.Duration("write-timeout", cfg.WriteTimeout, "HTTP write timeout")
	fs.Duration("idle-timeout", cfg.IdleTimeout, "keep-alive idle timeout")
	fs.String("env", cfg.Env, "Environment (development/production)")
	fs.Bool("binding.enabled", cfg.Binding.Enabled, "load the accelerator when available")
	fs.Bool("binding.verbose", cfg.Binding.Verbose, "log every accelerator load attempt")
	fs.Int("binding.max-cache-size", cfg.Binding.MaxCacheSize, "route match cache entries (0 disables)")
	fs.String("binding.search-paths", strings.Join(cfg.Binding.SearchPaths, ","), "comma separated accelerator locations")
	fs.Int("parser.max-header-bytes", cfg.Parser.MaxHeaderBytes, "request line and header limit")
	fs.Int64("parser.max-body-bytes", cfg.Parser.MaxBodyBytes, "request body limit (0 unlimited)")
	fs.String("logging.level", cfg.Logging.Level, "debug, info, warn, error or none")
	fs.String("logging.file", cfg.Logging.File, "log file (empty for stdout)")
	fs.String("diagnostics.addr", cfg.Diagnostics.Addr, "status and metrics listen address")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	m := NewManager()
	if *file != "" {
		if err := m.LoadFromFile(*file); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	m.loadFromEnviron(EnvPrefix, environ)

	// explicitly set flags win
	fs.Visit(func(f *flag.Flag) {
		if f.Name != "config" {
			m.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
		}
	})

	if err := m.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.Binding.MaxCacheSize < 0 {
		return fmt.Errorf("config: binding.max_cache_size must not be negative")
	}
	if c.Parser.MaxHeaderBytes < 0 || c.Parser.MaxBodyBytes < 0 {
		return fmt.Errorf("config: parser limits must not be negative")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
