// Package valkey implements the store driver for Redis/Valkey servers.
//
// This is the production driver: counters, secrets, and mailboxes live on a
// shared server, so any number of relay instances can serve traffic against
// the same state.
package valkey

import (
	"context"
	"fmt"
	"net"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/havenworlds/haven-relay/internal/platform/cfg"
	"github.com/havenworlds/haven-relay/internal/platform/store"
)

func init() {
	store.Register("valkey", func(raw map[string]any) (store.Store, error) {
		var dc driverConfig
		if raw != nil {
			if err := cfg.Decode(raw, &dc); err != nil {
				return nil, fmt.Errorf("invalid valkey driver config: %w", err)
			}
		}
		c := DefaultConfig()
		if dc.Addr != "" {
			c.Addr = dc.Addr
		}
		c.Password = dc.Password
		c.DB = dc.DB
		if dc.DialTimeoutMS > 0 {
			c.DialTimeout = time.Duration(dc.DialTimeoutMS) * time.Millisecond
		}
		return New(c)
	})
}

// driverConfig is the [store.drivers.valkey] TOML shape.
type driverConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	DialTimeoutMS int    `mapstructure:"dial_timeout_ms"`
}

// Config holds Valkey connection configuration.
type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// DefaultConfig returns sensible defaults for a local server.
func DefaultConfig() *Config {
	return &Config{
		Addr:        "localhost:6379",
		DialTimeout: 5 * time.Second,
	}
}

// drainScript reads a whole hash and deletes it in one server-side step,
// so no write can slip in between the read and the delete.
var drainScript = valkeygo.NewLuaScript(`
local fields = redis.call('HGETALL', KEYS[1])
redis.call('DEL', KEYS[1])
return fields
`)

// Store is a Valkey-backed store.
type Store struct {
	client valkeygo.Client
}

// New connects to the configured server and verifies it with a PING.
func New(c *Config) (*Store, error) {
	if c == nil {
		c = DefaultConfig()
	}

	client, err := valkeygo.NewClient(valkeygo.ClientOption{
		InitAddress:  []string{c.Addr},
		Password:     c.Password,
		SelectDB:     c.DB,
		Dialer:       net.Dialer{Timeout: c.DialTimeout},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", c.Addr, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.DialTimeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey health check failed for %s: %w", c.Addr, err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return s.client.Do(ctx, s.client.B().Incrby().Key(key).Increment(delta).Build()).AsInt64()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.client.Do(ctx, s.client.B().Set().Key(key).Value(value).Build()).Error()
}

func (s *Store) HashSet(ctx context.Context, key, field, value string) error {
	return s.client.Do(ctx, s.client.B().Hset().Key(key).FieldValue().FieldValue(field, value).Build()).Error()
}

func (s *Store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.Do(ctx, s.client.B().Hgetall().Key(key).Build()).AsStrMap()
}

func (s *Store) HashGetAllDelete(ctx context.Context, key string) (map[string]string, error) {
	return drainScript.Exec(ctx, s.client, []string{key}, nil).AsStrMap()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error()
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	seconds := int64(ttl / time.Second)
	return s.client.Do(ctx, s.client.B().Expire().Key(key).Seconds(seconds).Build()).Error()
}

func (s *Store) Close() error {
	s.client.Close()
	return nil
}

var _ store.Store = (*Store)(nil)
