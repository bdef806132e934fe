// Package mailbox implements the per-tag notification mailbox.
//
// A mailbox is a hash in the shared store keyed by sender: at most one
// pending notification is kept per sender, and a newer write from the same
// sender replaces the older one. Every write restarts the mailbox's idle
// expiry window; a successful poll drains the whole mailbox at once.
package mailbox

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type discriminates notification payloads on the wire.
type Type string

const (
	// TypeInvite is an invitation to join a world.
	TypeInvite Type = "INVITE"
	// TypeReject is a denial notice for a previously sent invite.
	TypeReject Type = "REJECT"
)

// systemKeyPrefix namespaces denial notices so a REJECT from a tag cannot
// collide with a pending INVITE from that same tag.
const systemKeyPrefix = "SYSTEM:"

// SystemKey returns the sender key under which tag's denial notices are filed.
func SystemKey(tag string) string { return systemKeyPrefix + tag }

// IsSystemKey reports whether a sender key carries a denial notice.
func IsSystemKey(key string) bool { return strings.HasPrefix(key, systemKeyPrefix) }

// Invite is an invitation to join a world at a host.
type Invite struct {
	IP        string
	WorldName string
	Timestamp int64 // unix milliseconds
}

// Reject is a denial notice for a previously sent invite.
type Reject struct {
	Timestamp int64 // unix milliseconds
}

// Notification is the tagged union of payloads a mailbox can hold.
// Exactly one of Invite and Reject is set, matching Type.
type Notification struct {
	Type   Type
	Invite *Invite
	Reject *Reject
}

// NewInvite wraps an Invite payload.
func NewInvite(ip, worldName string, timestamp int64) Notification {
	return Notification{
		Type:   TypeInvite,
		Invite: &Invite{IP: ip, WorldName: worldName, Timestamp: timestamp},
	}
}

// NewReject wraps a Reject payload.
func NewReject(timestamp int64) Notification {
	return Notification{
		Type:   TypeReject,
		Reject: &Reject{Timestamp: timestamp},
	}
}

// wireNotification is the flat JSON shape stored in the hash and returned to
// polling clients. The optional fields belong to INVITE only.
type wireNotification struct {
	From      string `json:"from,omitempty"`
	Type      Type   `json:"type"`
	IP        string `json:"ip,omitempty"`
	WorldName string `json:"worldName,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// MarshalJSON serializes the union into its flat wire shape.
func (n Notification) MarshalJSON() ([]byte, error) {
	w, err := n.wire("")
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (n Notification) wire(from string) (wireNotification, error) {
	switch n.Type {
	case TypeInvite:
		if n.Invite == nil {
			return wireNotification{}, fmt.Errorf("INVITE notification without payload")
		}
		return wireNotification{
			From:      from,
			Type:      TypeInvite,
			IP:        n.Invite.IP,
			WorldName: n.Invite.WorldName,
			Timestamp: n.Invite.Timestamp,
		}, nil
	case TypeReject:
		if n.Reject == nil {
			return wireNotification{}, fmt.Errorf("REJECT notification without payload")
		}
		return wireNotification{
			From:      from,
			Type:      TypeReject,
			Timestamp: n.Reject.Timestamp,
		}, nil
	default:
		return wireNotification{}, fmt.Errorf("unknown notification type %q", n.Type)
	}
}

// UnmarshalJSON parses the flat wire shape back into the union.
// Unknown types are an error, never a silent pass-through.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var w wireNotification
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch w.Type {
	case TypeInvite:
		*n = NewInvite(w.IP, w.WorldName, w.Timestamp)
	case TypeReject:
		*n = NewReject(w.Timestamp)
	default:
		return fmt.Errorf("unknown notification type %q", w.Type)
	}
	return nil
}

// Delivery is a drained notification annotated with the sender key it was
// filed under.
type Delivery struct {
	From string
	Notification
}

// MarshalJSON flattens the delivery into {from, type, ...payload fields}.
func (d Delivery) MarshalJSON() ([]byte, error) {
	w, err := d.wire(d.From)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}
