package identity_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/havenworlds/haven-relay/internal/components/identity"
	"github.com/havenworlds/haven-relay/internal/platform/store/memory"
)

func newHandler(t *testing.T) *identity.Handler {
	t.Helper()
	m := memory.New()
	t.Cleanup(func() { m.Close() })
	return identity.NewHandler(identity.NewRegistrar(m, nil))
}

func TestHandleRegister_Success(t *testing.T) {
	handler := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString(`{"username":"Andy"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.HandleRegister(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp identity.RegisterResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Tag != "Andy#1" {
		t.Errorf("expected Andy#1, got %q", resp.Tag)
	}
	if resp.Secret == "" {
		t.Error("expected non-empty secret")
	}
}

func TestHandleRegister_InvalidInput(t *testing.T) {
	handler := newHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty username", `{"username":""}`},
		{"missing username", `{}`},
		{"oversized username", `{"username":"` + strings.Repeat("a", 17) + `"}`},
		{"malformed json", `{"username":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.HandleRegister(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}
