package identity

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/havenworlds/haven-relay/internal/components/api"
	"github.com/havenworlds/haven-relay/internal/platform/appctx"
)

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Username string `json:"username"`
}

// RegisterResponse is the success body of POST /api/register.
type RegisterResponse struct {
	Tag    string `json:"tag"`
	Secret string `json:"secret"`
}

// Handler handles identity endpoints.
type Handler struct {
	registrar *Registrar
}

// NewHandler creates an identity handler.
func NewHandler(registrar *Registrar) *Handler {
	return &Handler{registrar: registrar}
}

// HandleRegister handles POST /api/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidJSON, "failed to parse request body")
		return
	}

	tag, secret, err := h.registrar.Register(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, ErrInvalidUsername) {
			api.WriteBadRequest(w, api.ReasonInvalidUsername, "invalid username")
			return
		}
		log.Error("registration failed", "error", err)
		api.WriteStorageFailure(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RegisterResponse{Tag: tag, Secret: secret})
}
