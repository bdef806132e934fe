// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
)

// Config holds the relay configuration.
type Config struct {
	// ListenAddr is the address to listen on. Example: ":8000"
	ListenAddr string `toml:"listen_addr"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`

	// Store configuration
	Store StoreConfig `toml:"store"`

	// Mailbox configuration
	Mailbox MailboxConfig `toml:"mailbox"`

	// GitProxy configuration for the world-sync reverse proxy
	GitProxy GitProxyConfig `toml:"gitproxy"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level"`
}

// StoreConfig selects and configures the key-value store driver.
// Driver-specific settings live under [store.drivers.<driver>].
type StoreConfig struct {
	// Driver is the driver name: memory, valkey, sqlite.
	Driver string `toml:"driver"`

	// Drivers maps driver names to their raw config maps.
	// Each driver decodes its own map (see platform/cfg).
	Drivers map[string]map[string]any `toml:"drivers"`
}

// MailboxConfig holds mailbox behavior settings.
type MailboxConfig struct {
	// ExpirySeconds is the sliding idle window of a mailbox. Every write
	// restarts it; a mailbox with no writes for this long is dropped by
	// the store. Default: 600.
	ExpirySeconds int `toml:"expiry_seconds"`
}

// GitProxyConfig holds settings for the /git reverse proxy.
type GitProxyConfig struct {
	// Upstream is the repository host requests are forwarded to.
	// Default: "https://github.com"
	Upstream string `toml:"upstream"`

	// Account is the upstream account segment spliced into rewritten
	// paths: /git/<rest> -> /<account>/<rest>. Defaults to Username.
	Account string `toml:"account"`

	// Username and Token form the Basic credential injected into every
	// forwarded request, replacing whatever the caller sent.
	Username string `toml:"username"`
	Token    string `toml:"token"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.Mailbox.ExpirySeconds <= 0 {
		return fmt.Errorf("mailbox.expiry_seconds must be positive, got %d", c.Mailbox.ExpirySeconds)
	}
	if c.Store.Driver == "" {
		return fmt.Errorf("store.driver must not be empty")
	}

	u, err := url.Parse(c.GitProxy.Upstream)
	if err != nil {
		return fmt.Errorf("gitproxy.upstream is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gitproxy.upstream must be http or https, got %q", c.GitProxy.Upstream)
	}
	if u.Host == "" {
		return fmt.Errorf("gitproxy.upstream has no host: %q", c.GitProxy.Upstream)
	}

	return nil
}

// Redacted returns a copy safe for logging: the git token is masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.GitProxy.Token != "" {
		out.GitProxy.Token = "***"
	}
	// Driver config maps may carry passwords; drop them from the log view.
	out.Store.Drivers = nil
	return out
}
