// Package invites implements the invite/respond micro-protocol.
package invites

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/havenworlds/haven-relay/internal/components/api"
	"github.com/havenworlds/haven-relay/internal/components/mailbox"
	"github.com/havenworlds/haven-relay/internal/platform/appctx"
)

// Actions accepted by POST /api/respond.
const (
	ActionDeny = "DENY"
	ActionJoin = "JOIN"
)

// Depositor files notifications into mailboxes.
type Depositor interface {
	Deposit(ctx context.Context, tag, senderKey string, n mailbox.Notification) error
}

// InviteRequest is the body of POST /api/invite.
type InviteRequest struct {
	TargetTag string `json:"targetTag"`
	SenderTag string `json:"senderTag"`
	IP        string `json:"ip"`
	WorldName string `json:"worldName"`
}

// RespondRequest is the body of POST /api/respond. SenderTag is the original
// inviter (who receives the outcome); TargetTag is the invitee who is
// responding now.
type RespondRequest struct {
	SenderTag string `json:"senderTag"`
	TargetTag string `json:"targetTag"`
	Action    string `json:"action"`
}

// SuccessResponse is the shared success body of invite and respond.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// Handler handles the invite protocol endpoints.
type Handler struct {
	mailboxes Depositor

	// now is swappable in tests.
	now func() time.Time
}

// NewHandler creates an invites handler.
func NewHandler(mailboxes Depositor) *Handler {
	return &Handler{
		mailboxes: mailboxes,
		now:       time.Now,
	}
}

// SetNowFunc overrides the timestamp clock. Test use only.
func (h *Handler) SetNowFunc(now func() time.Time) { h.now = now }

// HandleInvite handles POST /api/invite. The target tag is never checked
// against the registry: inviting a tag that does not exist just parks the
// invite in a mailbox nobody can drain until it expires.
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidJSON, "failed to parse request body")
		return
	}
	if req.TargetTag == "" || req.SenderTag == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "targetTag and senderTag are required")
		return
	}

	n := mailbox.NewInvite(req.IP, req.WorldName, h.now().UnixMilli())
	if err := h.mailboxes.Deposit(r.Context(), req.TargetTag, req.SenderTag, n); err != nil {
		log.Error("failed to deliver invite", "target_tag", req.TargetTag, "error", err)
		api.WriteStorageFailure(w)
		return
	}

	log.Info("invite delivered", "sender_tag", req.SenderTag, "target_tag", req.TargetTag, "world", req.WorldName)
	writeSuccess(w)
}

// HandleRespond handles POST /api/respond.
//
// DENY restores a denial notice to the original inviter's mailbox, filed
// under a SYSTEM sender key so it cannot collide with a pending invite from
// the responder. JOIN deliberately touches nothing: the accepting client
// pulls world data through the git proxy on its own.
func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidJSON, "failed to parse request body")
		return
	}
	if req.SenderTag == "" || req.TargetTag == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "senderTag and targetTag are required")
		return
	}

	switch req.Action {
	case ActionJoin:
		log.Info("invite accepted", "sender_tag", req.SenderTag, "target_tag", req.TargetTag)
		writeSuccess(w)

	case ActionDeny:
		n := mailbox.NewReject(h.now().UnixMilli())
		if err := h.mailboxes.Deposit(r.Context(), req.SenderTag, mailbox.SystemKey(req.TargetTag), n); err != nil {
			log.Error("failed to deliver denial", "sender_tag", req.SenderTag, "error", err)
			api.WriteStorageFailure(w)
			return
		}
		log.Info("invite denied", "sender_tag", req.SenderTag, "target_tag", req.TargetTag)
		writeSuccess(w)

	default:
		api.WriteBadRequest(w, api.ReasonInvalidField, "action must be DENY or JOIN")
	}
}

func writeSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SuccessResponse{Success: true})
}
