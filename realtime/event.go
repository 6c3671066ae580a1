package realtime

import "encoding/json"

// Frame kinds pushed over a session's sink.
const (
	KindPresenceSnapshot = "presence_snapshot"
	KindPeerJoined       = "peer_joined"
	KindPeerLeft         = "peer_left"
	KindMessage          = "message"
	KindAlert            = "alert"
	KindHeartbeat        = "heartbeat"
)

// Event is a payload handed to the hub for delivery. Channel routes the
// event: empty means every session, otherwise only sessions registered with
// exactly that channel key. Body is opaque to the hub.
type Event struct {
	Kind    string          `json:"kind"`
	Channel string          `json:"channel,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// PresenceEntry is a subscriber's visible online record within a scope.
// There is at most one entry per subscriber id regardless of how many
// sessions (tabs) it holds open.
type PresenceEntry struct {
	Subscriber  string `json:"subscriber"`
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role,omitempty"`
	Channel     string `json:"channel,omitempty"`
}
