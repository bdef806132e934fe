package mailbox_test

import (
	"encoding/json"
	"testing"

	"github.com/havenworlds/haven-relay/internal/components/mailbox"
)

func TestNotificationRoundTrip(t *testing.T) {
	inv := mailbox.NewInvite("1.2.3.4", "MyWorld", 1700000000000)

	data, err := json.Marshal(inv)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var m map[string]any
	json.Unmarshal(data, &m)
	if m["type"] != "INVITE" || m["ip"] != "1.2.3.4" || m["worldName"] != "MyWorld" {
		t.Errorf("unexpected wire shape: %s", data)
	}
	if _, ok := m["from"]; ok {
		t.Errorf("stored notification must not carry a from field: %s", data)
	}

	var back mailbox.Notification
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Type != mailbox.TypeInvite || back.Invite == nil {
		t.Fatalf("expected INVITE union arm, got %+v", back)
	}
	if back.Invite.IP != "1.2.3.4" || back.Invite.WorldName != "MyWorld" || back.Invite.Timestamp != 1700000000000 {
		t.Errorf("payload lost in round trip: %+v", back.Invite)
	}
}

func TestRejectHasNoInviteFields(t *testing.T) {
	rej := mailbox.NewReject(1700000000000)

	data, err := json.Marshal(rej)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var m map[string]any
	json.Unmarshal(data, &m)
	if m["type"] != "REJECT" {
		t.Errorf("expected REJECT type, got %s", data)
	}
	if _, ok := m["ip"]; ok {
		t.Errorf("REJECT must not carry invite fields: %s", data)
	}
}

func TestUnknownTypeRejected(t *testing.T) {
	var n mailbox.Notification
	err := json.Unmarshal([]byte(`{"type":"BANANA","timestamp":1}`), &n)
	if err == nil {
		t.Fatal("expected error for unknown notification type")
	}
}

func TestDeliveryMarshal(t *testing.T) {
	d := mailbox.Delivery{
		From:         "Steve#1",
		Notification: mailbox.NewInvite("1.2.3.4", "MyWorld", 42),
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var m map[string]any
	json.Unmarshal(data, &m)
	if m["from"] != "Steve#1" || m["type"] != "INVITE" {
		t.Errorf("unexpected delivery shape: %s", data)
	}
}

func TestSystemKey(t *testing.T) {
	key := mailbox.SystemKey("Bob#2")
	if key != "SYSTEM:Bob#2" {
		t.Errorf("unexpected system key %q", key)
	}
	if !mailbox.IsSystemKey(key) {
		t.Error("IsSystemKey should accept system keys")
	}
	if mailbox.IsSystemKey("Bob#2") {
		t.Error("IsSystemKey should reject plain tags")
	}
}
