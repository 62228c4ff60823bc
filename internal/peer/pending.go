package peer

import (
	"net"
	"sync"
	"time"
)

// PendingRequest is an inbound REQUEST_CONNECT waiting for a decision.
// The socket stays open until the decision is sent.
type PendingRequest struct {
	ID          string
	Username    string
	ClaimedAddr string
	ReceivedAt  time.Time

	conn net.Conn
}

type pendingQueue struct {
	mu    sync.Mutex
	items []*PendingRequest
}

func (q *pendingQueue) push(r *PendingRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, r)
}

// take empties the queue and returns what was in it, so every request is
// resolved exactly once.
func (q *pendingQueue) take() []*PendingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *pendingQueue) snapshot() []PendingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingRequest, 0, len(q.items))
	for _, r := range q.items {
		out = append(out, PendingRequest{ID: r.ID, Username: r.Username, ClaimedAddr: r.ClaimedAddr, ReceivedAt: r.ReceivedAt})
	}
	return out
}
