// Package config loads server configuration from, in order of
// increasing precedence: a yaml config file, QBANK_* environment
// variables, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds everything the server needs to run. Keys are the flag
// names; QBANK_JWT_SECRET and friends map onto them with underscores.
type Config struct {
	Addr            string        `koanf:"addr"`
	Port            int           `koanf:"port"`
	DSN             string        `koanf:"dsn"`
	DataDir         string        `koanf:"data-dir"`
	Mode            string        `koanf:"mode"`
	JWTSecret       string        `koanf:"jwt-secret"`
	AccessTokenTTL  time.Duration `koanf:"access-token-ttl"`
	RefreshTokenTTL time.Duration `koanf:"refresh-token-ttl"`
	CORSOrigins     []string      `koanf:"cors-origins"`
}

// IsDev reports whether the server runs outside production.
func (c *Config) IsDev() bool {
	return c.Mode != "prod"
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

// Flags defines the command-line flag set. Flag defaults double as the
// configuration defaults.
func Flags(name string) *pflag.FlagSet {
	f := pflag.NewFlagSet(name, pflag.ExitOnError)
	f.String("config", "", "Path to a yaml config file")
	f.String("addr", "", "Bind address")
	f.Int("port", 8080, "Bind port")
	f.String("dsn", "qbank.db", "Path to the SQLite database file")
	f.String("data-dir", "data", "Directory for import source checkouts")
	f.String("mode", "dev", "Run mode: dev or prod")
	f.String("jwt-secret", "", "Secret used to sign session tokens")
	f.Duration("access-token-ttl", 15*time.Minute, "Access token lifetime")
	f.Duration("refresh-token-ttl", 30*24*time.Hour, "Refresh token lifetime")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed CORS origins")
	return f
}

// Load layers the config file (if given), environment and flags into a
// Config. Unchanged flags do not override file or env values.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: "QBANK_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "QBANK_"))
			return strings.ReplaceAll(key, "_", "-"), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt-secret must be set (--jwt-secret or QBANK_JWT_SECRET)")
	}
	return &cfg, nil
}
