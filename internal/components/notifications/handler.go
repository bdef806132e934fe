// Package notifications implements the mailbox polling endpoint.
package notifications

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/havenworlds/haven-relay/internal/components/api"
	"github.com/havenworlds/haven-relay/internal/components/mailbox"
	"github.com/havenworlds/haven-relay/internal/platform/appctx"
)

// Authenticator verifies a tag/secret pair.
type Authenticator interface {
	Authenticate(ctx context.Context, tag, secret string) (bool, error)
}

// Drainer empties a tag's mailbox.
type Drainer interface {
	Drain(ctx context.Context, tag string) ([]mailbox.Delivery, error)
}

// PollRequest is the body of POST /api/notifications.
type PollRequest struct {
	Tag    string `json:"tag"`
	Secret string `json:"secret"`
}

// PollResponse is the success body of POST /api/notifications.
type PollResponse struct {
	Notifications []mailbox.Delivery `json:"notifications"`
}

// Handler handles the polling endpoint.
type Handler struct {
	auth      Authenticator
	mailboxes Drainer
}

// NewHandler creates a notifications handler.
func NewHandler(auth Authenticator, mailboxes Drainer) *Handler {
	return &Handler{auth: auth, mailboxes: mailboxes}
}

// HandlePoll handles POST /api/notifications.
//
// Authentication runs before any mailbox access, so an unauthenticated
// caller learns nothing about whether a mailbox exists or how full it is.
// A successful poll drains the mailbox: each notification is delivered at
// most once, with no redelivery if the client dies before reading the
// response.
func (h *Handler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req PollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidJSON, "failed to parse request body")
		return
	}

	ok, err := h.auth.Authenticate(r.Context(), req.Tag, req.Secret)
	if err != nil {
		log.Error("secret lookup failed", "tag", req.Tag, "error", err)
		api.WriteStorageFailure(w)
		return
	}
	if !ok {
		api.WriteForbidden(w, api.ReasonUnauthorized, "unauthorized")
		return
	}

	deliveries, err := h.mailboxes.Drain(r.Context(), req.Tag)
	if err != nil {
		log.Error("mailbox drain failed", "tag", req.Tag, "error", err)
		api.WriteStorageFailure(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PollResponse{Notifications: deliveries})
}
