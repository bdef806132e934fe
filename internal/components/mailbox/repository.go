package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/havenworlds/haven-relay/internal/platform/logutil"
	"github.com/havenworlds/haven-relay/internal/platform/store"
)

// DefaultExpiry is the sliding idle window of a mailbox.
const DefaultExpiry = 600 * time.Second

func inboxKey(tag string) string { return "inbox:" + tag }

// Repository persists mailboxes in the shared store.
type Repository struct {
	store  store.Store
	expiry time.Duration
	logger *slog.Logger
}

// NewRepository creates a mailbox repository. A non-positive expiry falls
// back to DefaultExpiry.
func NewRepository(s store.Store, expiry time.Duration, logger *slog.Logger) *Repository {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Repository{
		store:  s,
		expiry: expiry,
		logger: logutil.NoopIfNil(logger),
	}
}

// Deposit files a notification in tag's mailbox under senderKey, replacing
// any pending notification from the same sender, and restarts the mailbox's
// expiry window. The target tag is never checked for existence: depositing
// into an unregistered tag simply creates its mailbox.
//
// The two store calls are not transactional. If Expire fails after HashSet
// succeeded, the entry is retained under whatever window the mailbox already
// had; the caller sees the error.
func (r *Repository) Deposit(ctx context.Context, tag, senderKey string, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to serialize notification: %w", err)
	}

	key := inboxKey(tag)
	if err := r.store.HashSet(ctx, key, senderKey, string(data)); err != nil {
		return fmt.Errorf("failed to write mailbox entry: %w", err)
	}
	if err := r.store.Expire(ctx, key, r.expiry); err != nil {
		return fmt.Errorf("failed to reset mailbox expiry: %w", err)
	}
	return nil
}

// Drain atomically empties tag's mailbox and returns its entries sorted by
// sender key. An absent mailbox yields an empty slice. Entries that fail to
// deserialize are dropped with a warning rather than failing the poll; they
// are already gone from the store either way.
func (r *Repository) Drain(ctx context.Context, tag string) ([]Delivery, error) {
	fields, err := r.store.HashGetAllDelete(ctx, inboxKey(tag))
	if err != nil {
		return nil, fmt.Errorf("failed to drain mailbox: %w", err)
	}

	out := make([]Delivery, 0, len(fields))
	for senderKey, raw := range fields {
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			r.logger.Warn("dropping undecodable mailbox entry",
				"tag", tag, "sender_key", senderKey, "error", err)
			continue
		}
		out = append(out, Delivery{From: senderKey, Notification: n})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out, nil
}
