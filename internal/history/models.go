package history

import "time"

// Direction of an accepted connection relative to the local peer.
const (
	Outbound = "outbound"
	Inbound  = "inbound"
)

// Transfer outcomes.
const (
	StatusCompleted    = "completed"
	StatusNotFound     = "not_found"
	StatusFailed       = "failed"
	StatusUnauthorized = "unauthorized"
)

type AcceptedPeer struct {
	ID         string
	PeerAddr   string
	Username   string
	Direction  string
	AcceptedAt time.Time
}

type Transfer struct {
	ID        string
	PeerAddr  string
	Filename  string
	Bytes     int64
	Status    string
	Verified  bool
	CreatedAt time.Time
}
