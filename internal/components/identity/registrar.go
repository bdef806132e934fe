// Package identity issues tags and authenticates their owners.
//
// A tag is a human-readable identity of the form "name#n", with n strictly
// increasing per name. The secret handed out with a tag is the sole bearer
// credential for draining that tag's mailbox.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/havenworlds/haven-relay/internal/platform/logutil"
	"github.com/havenworlds/haven-relay/internal/platform/store"
)

// MaxUsernameLength is the upper bound on registration usernames.
const MaxUsernameLength = 16

// ErrInvalidUsername is returned for empty or oversized usernames.
var ErrInvalidUsername = errors.New("invalid username")

func counterKey(username string) string { return "counter:" + username }
func secretKey(tag string) string       { return "secret:" + tag }

// Registrar issues tags backed by atomic counters in the shared store.
type Registrar struct {
	store  store.Store
	logger *slog.Logger
}

// NewRegistrar creates a registrar.
func NewRegistrar(s store.Store, logger *slog.Logger) *Registrar {
	return &Registrar{
		store:  s,
		logger: logutil.NoopIfNil(logger),
	}
}

// ValidUsername reports whether a username is registrable: non-empty and at
// most MaxUsernameLength characters.
func ValidUsername(username string) bool {
	return username != "" && utf8.RuneCountInString(username) <= MaxUsernameLength
}

// Register issues a fresh tag for username and a secret bound to it.
// Uniqueness of the numeric suffix rests entirely on the store's atomic
// increment; concurrent registrations for the same username each get their
// own number. Store failures surface immediately, without retry.
func (r *Registrar) Register(ctx context.Context, username string) (tag, secret string, err error) {
	if !ValidUsername(username) {
		return "", "", ErrInvalidUsername
	}

	n, err := r.store.Increment(ctx, counterKey(username), 1)
	if err != nil {
		return "", "", fmt.Errorf("failed to allocate tag number: %w", err)
	}
	tag = fmt.Sprintf("%s#%d", username, n)

	secret, err = newSecret()
	if err != nil {
		return "", "", err
	}

	// Secrets are permanent: no TTL, no rotation, no removal path.
	if err := r.store.Set(ctx, secretKey(tag), secret); err != nil {
		return "", "", fmt.Errorf("failed to persist secret: %w", err)
	}

	r.logger.Info("registered new tag", "tag", tag)
	return tag, secret, nil
}

// Authenticate checks a tag/secret pair against the stored secret.
// An unregistered tag authenticates as false without error, so callers
// cannot distinguish "no such tag" from "wrong secret".
func (r *Registrar) Authenticate(ctx context.Context, tag, secret string) (bool, error) {
	stored, err := r.store.Get(ctx, secretKey(tag))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch secret: %w", err)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(secret)) == 1, nil
}

// newSecret returns 256 bits of hex-encoded randomness.
func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
