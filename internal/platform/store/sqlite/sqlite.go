// Package sqlite implements a SQLite-backed store driver using GORM.
//
// Intended for single-node deployments that want relay state to survive
// restarts without running a Redis/Valkey server. SQLite serializes writers,
// which gives Increment and HashGetAllDelete the required atomicity on one
// node; it cannot coordinate multiple relay instances.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/havenworlds/haven-relay/internal/platform/cfg"
	"github.com/havenworlds/haven-relay/internal/platform/store"
)

func init() {
	store.Register("sqlite", func(raw map[string]any) (store.Store, error) {
		c := &Config{}
		if raw != nil {
			if err := cfg.Decode(raw, c); err != nil {
				return nil, fmt.Errorf("invalid sqlite driver config: %w", err)
			}
		}
		return New(c)
	})
}

// Config holds SQLite driver configuration.
type Config struct {
	// DataDir is the directory holding the database file.
	DataDir string `mapstructure:"data_dir"`
}

type kvEntry struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

type hashEntry struct {
	Key   string `gorm:"primaryKey"`
	Field string `gorm:"primaryKey"`
	Value string
}

type ttlEntry struct {
	Key       string `gorm:"primaryKey"`
	ExpiresAt int64 // unix milliseconds
}

// Store is a SQLite-backed store.
type Store struct {
	db *gorm.DB

	// now is swappable in tests.
	now func() time.Time
}

// New opens (or creates) the database file and runs migrations.
func New(c *Config) (*Store, error) {
	if c == nil || c.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	dbPath := filepath.Join(c.DataDir, "haven.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&kvEntry{}, &hashEntry{}, &ttlEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// SetNowFunc overrides the clock used for expiry checks. Test use only.
func (s *Store) SetNowFunc(now func() time.Time) { s.now = now }

// purge removes key if its TTL has elapsed. Runs inside the caller's tx.
func (s *Store) purge(tx *gorm.DB, key string) error {
	var t ttlEntry
	err := tx.First(&t, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.now().UnixMilli() < t.ExpiresAt {
		return nil
	}
	return s.remove(tx, key)
}

// remove deletes every row associated with key.
func (s *Store) remove(tx *gorm.DB, key string) error {
	if err := tx.Delete(&kvEntry{}, "key = ?", key).Error; err != nil {
		return err
	}
	if err := tx.Delete(&hashEntry{}, "key = ?", key).Error; err != nil {
		return err
	}
	return tx.Delete(&ttlEntry{}, "key = ?", key).Error
}

func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	var result int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.purge(tx, key); err != nil {
			return err
		}

		var e kvEntry
		err := tx.First(&e, "key = ?", key).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			result = delta
		case err != nil:
			return err
		default:
			n, perr := strconv.ParseInt(e.Value, 10, 64)
			if perr != nil {
				return fmt.Errorf("value at %q is not an integer: %w", key, perr)
			}
			result = n + delta
		}

		e = kvEntry{Key: key, Value: strconv.FormatInt(result, 10)}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&e).Error
	})
	return result, err
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.purge(tx, key); err != nil {
			return err
		}
		var e kvEntry
		if err := tx.First(&e, "key = ?", key).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return err
		}
		value = e.Value
		return nil
	})
	return value, err
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&kvEntry{Key: key, Value: value}).Error; err != nil {
			return err
		}
		return tx.Delete(&ttlEntry{}, "key = ?", key).Error
	})
}

func (s *Store) HashSet(ctx context.Context, key, field, value string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.purge(tx, key); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}, {Name: "field"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&hashEntry{Key: key, Field: field, Value: value}).Error
	})
}

func (s *Store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.purge(tx, key); err != nil {
			return err
		}
		var rows []hashEntry
		if err := tx.Find(&rows, "key = ?", key).Error; err != nil {
			return err
		}
		for _, row := range rows {
			out[row.Field] = row.Value
		}
		return nil
	})
	return out, err
}

func (s *Store) HashGetAllDelete(ctx context.Context, key string) (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.purge(tx, key); err != nil {
			return err
		}
		var rows []hashEntry
		if err := tx.Find(&rows, "key = ?", key).Error; err != nil {
			return err
		}
		for _, row := range rows {
			out[row.Field] = row.Value
		}
		return s.remove(tx, key)
	})
	return out, err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.remove(tx, key)
	})
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.purge(tx, key); err != nil {
			return err
		}

		var kvCount, hashCount int64
		if err := tx.Model(&kvEntry{}).Where("key = ?", key).Count(&kvCount).Error; err != nil {
			return err
		}
		if err := tx.Model(&hashEntry{}).Where("key = ?", key).Count(&hashCount).Error; err != nil {
			return err
		}
		if kvCount == 0 && hashCount == 0 {
			return nil
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
		}).Create(&ttlEntry{Key: key, ExpiresAt: s.now().Add(ttl).UnixMilli()}).Error
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ store.Store = (*Store)(nil)
