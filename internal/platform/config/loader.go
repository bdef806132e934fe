package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Defaults applied before the config file and flags.
const (
	DefaultListenAddr    = ":8000"
	DefaultLoggingLevel  = "info"
	DefaultStoreDriver   = "memory"
	DefaultExpirySeconds = 600
	DefaultUpstream      = "https://github.com"
)

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but missing or invalid, loading fails.
	ConfigPath string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warnings during loading. If nil, slog.Default().
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
// A nil pointer or empty string means "unset".
type FlagOverrides struct {
	ListenAddr   *string
	LoggingLevel *string
	StoreDriver  *string
	GitUpstream  *string
	GitAccount   *string
	GitUsername  *string
	GitToken     *string
}

// fileConfig mirrors Config with pointer sections to detect presence.
type fileConfig struct {
	ListenAddr string          `toml:"listen_addr"`
	Logging    *LoggingConfig  `toml:"logging"`
	Store      *storeConfig    `toml:"store"`
	Mailbox    *MailboxConfig  `toml:"mailbox"`
	GitProxy   *GitProxyConfig `toml:"gitproxy"`
}

type storeConfig struct {
	Driver  string                    `toml:"driver"`
	Drivers map[string]map[string]any `toml:"drivers"`
}

// Load builds the effective configuration with precedence:
// defaults -> TOML file -> environment -> CLI flags.
func Load(opts LoaderOptions) (*Config, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	cfg := &Config{
		ListenAddr: DefaultListenAddr,
		Logging:    LoggingConfig{Level: DefaultLoggingLevel},
		Store:      StoreConfig{Driver: DefaultStoreDriver},
		Mailbox:    MailboxConfig{ExpirySeconds: DefaultExpirySeconds},
		GitProxy:   GitProxyConfig{Upstream: DefaultUpstream},
	}

	if opts.ConfigPath != "" {
		var fc fileConfig
		md, err := toml.DecodeFile(opts.ConfigPath, &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", opts.ConfigPath, err)
		}
		for _, key := range md.Undecoded() {
			log.Warn("unknown config key", "key", key.String(), "path", opts.ConfigPath)
		}
		applyFile(cfg, &fc)
	}

	applyEnv(cfg)
	applyFlags(cfg, opts.FlagOverrides)

	// The upstream account segment defaults to the credential username,
	// matching the usual deployment where both are the same bot account.
	if cfg.GitProxy.Account == "" {
		cfg.GitProxy.Account = cfg.GitProxy.Username
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.Logging != nil && fc.Logging.Level != "" {
		cfg.Logging.Level = fc.Logging.Level
	}
	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		cfg.Store.Drivers = fc.Store.Drivers
	}
	if fc.Mailbox != nil && fc.Mailbox.ExpirySeconds != 0 {
		cfg.Mailbox.ExpirySeconds = fc.Mailbox.ExpirySeconds
	}
	if fc.GitProxy != nil {
		if fc.GitProxy.Upstream != "" {
			cfg.GitProxy.Upstream = fc.GitProxy.Upstream
		}
		if fc.GitProxy.Account != "" {
			cfg.GitProxy.Account = fc.GitProxy.Account
		}
		if fc.GitProxy.Username != "" {
			cfg.GitProxy.Username = fc.GitProxy.Username
		}
		if fc.GitProxy.Token != "" {
			cfg.GitProxy.Token = fc.GitProxy.Token
		}
	}
}

// applyEnv picks up the deployment environment variables the relay has
// historically been configured with.
func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}
	if v := os.Getenv("GH_USERNAME"); v != "" {
		cfg.GitProxy.Username = v
	}
	if v := os.Getenv("GH_TOKEN"); v != "" {
		cfg.GitProxy.Token = v
	}
}

func applyFlags(cfg *Config, f FlagOverrides) {
	setIf := func(dst *string, src *string) {
		if src != nil && *src != "" {
			*dst = *src
		}
	}
	setIf(&cfg.ListenAddr, f.ListenAddr)
	setIf(&cfg.Logging.Level, f.LoggingLevel)
	setIf(&cfg.Store.Driver, f.StoreDriver)
	setIf(&cfg.GitProxy.Upstream, f.GitUpstream)
	setIf(&cfg.GitProxy.Account, f.GitAccount)
	setIf(&cfg.GitProxy.Username, f.GitUsername)
	setIf(&cfg.GitProxy.Token, f.GitToken)
}
