package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/havenworlds/haven-relay/internal/components/gitproxy"
	"github.com/havenworlds/haven-relay/internal/components/identity"
	"github.com/havenworlds/haven-relay/internal/components/mailbox"
	"github.com/havenworlds/haven-relay/internal/platform/config"
	"github.com/havenworlds/haven-relay/internal/platform/http/server"
	"github.com/havenworlds/haven-relay/internal/platform/store/memory"
)

func newTestServer(t *testing.T, upstream string) *httptest.Server {
	t.Helper()

	st := memory.New()
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		ListenAddr: ":0",
		Store:      config.StoreConfig{Driver: "memory"},
		Mailbox:    config.MailboxConfig{ExpirySeconds: 600},
		GitProxy: config.GitProxyConfig{
			Upstream: upstream,
			Account:  "worlds-bot",
			Username: "worlds-bot",
			Token:    "tok",
		},
	}

	proxy, err := gitproxy.New(cfg.GitProxy, nil)
	if err != nil {
		t.Fatalf("failed to create proxy: %v", err)
	}

	srv := server.New(cfg, nil, &server.Deps{
		Registrar: identity.NewRegistrar(st, nil),
		Mailboxes: mailbox.NewRepository(st, time.Duration(cfg.Mailbox.ExpirySeconds)*time.Second, nil),
		GitProxy:  proxy,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response from %s: %v", path, err)
	}
	return resp, decoded
}

func TestEndToEndScenario(t *testing.T) {
	ts := newTestServer(t, "https://github.com")

	// Two registrations for Andy yield increasing suffixes and distinct secrets.
	resp, reg1 := postJSON(t, ts, "/api/register", `{"username":"Andy"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: expected 200, got %d", resp.StatusCode)
	}
	if reg1["tag"] != "Andy#1" {
		t.Fatalf("expected Andy#1, got %v", reg1["tag"])
	}
	secret1 := reg1["secret"].(string)

	_, reg2 := postJSON(t, ts, "/api/register", `{"username":"Andy"}`)
	if reg2["tag"] != "Andy#2" {
		t.Fatalf("expected Andy#2, got %v", reg2["tag"])
	}
	if reg2["secret"].(string) == secret1 {
		t.Error("secrets must differ between registrations")
	}

	// Steve invites Andy#1.
	resp, inv := postJSON(t, ts, "/api/invite",
		`{"targetTag":"Andy#1","senderTag":"Steve#1","ip":"1.2.3.4","worldName":"MyWorld"}`)
	if resp.StatusCode != http.StatusOK || inv["success"] != true {
		t.Fatalf("invite failed: %d %v", resp.StatusCode, inv)
	}

	// Andy#1 polls with the right secret and gets exactly the invite.
	body := fmt.Sprintf(`{"tag":"Andy#1","secret":%q}`, secret1)
	resp, poll := postJSON(t, ts, "/api/notifications", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notifications: expected 200, got %d", resp.StatusCode)
	}
	list := poll["notifications"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %v", poll)
	}
	n := list[0].(map[string]any)
	if n["from"] != "Steve#1" || n["type"] != "INVITE" || n["ip"] != "1.2.3.4" || n["worldName"] != "MyWorld" {
		t.Errorf("unexpected notification: %v", n)
	}
	if _, ok := n["timestamp"].(float64); !ok {
		t.Errorf("expected numeric timestamp, got %v", n["timestamp"])
	}

	// A repeat poll returns an empty list.
	_, poll = postJSON(t, ts, "/api/notifications", body)
	if len(poll["notifications"].([]any)) != 0 {
		t.Errorf("expected drained mailbox, got %v", poll)
	}
}

func TestDenyFlow(t *testing.T) {
	ts := newTestServer(t, "https://github.com")

	_, reg := postJSON(t, ts, "/api/register", `{"username":"Andy"}`)
	secret := reg["secret"].(string)

	// Bob denies Andy's invite.
	resp, _ := postJSON(t, ts, "/api/respond",
		`{"senderTag":"Andy#1","targetTag":"Bob#1","action":"DENY"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("respond: expected 200, got %d", resp.StatusCode)
	}

	body := fmt.Sprintf(`{"tag":"Andy#1","secret":%q}`, secret)
	_, poll := postJSON(t, ts, "/api/notifications", body)
	list := poll["notifications"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %v", poll)
	}
	n := list[0].(map[string]any)
	if n["from"] != "SYSTEM:Bob#1" || n["type"] != "REJECT" {
		t.Errorf("unexpected denial notification: %v", n)
	}
}

func TestWrongSecretForbidden(t *testing.T) {
	ts := newTestServer(t, "https://github.com")

	postJSON(t, ts, "/api/register", `{"username":"Andy"}`)

	resp, _ := postJSON(t, ts, "/api/notifications", `{"tag":"Andy#1","secret":"wrong"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

func TestUnknownPathForbidden(t *testing.T) {
	ts := newTestServer(t, "https://github.com")

	resp, err := http.Get(ts.URL + "/elsewhere")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for unknown path, got %d", resp.StatusCode)
	}
}

func TestGitProxyRouting(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("refs"))
	}))
	defer upstream.Close()

	ts := newTestServer(t, upstream.URL)

	resp, err := http.Get(ts.URL + "/git/my-world/info/refs")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotPath != "/worlds-bot/my-world/info/refs" {
		t.Errorf("unexpected upstream path %q", gotPath)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, "https://github.com")

	resp, err := http.Get(ts.URL + "/api/healthz")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
