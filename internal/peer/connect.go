package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/history"
)

// RequestConnect asks the peer listening at addr for a connection and
// blocks until that peer's user decides or ctx ends. On acceptance the
// connection joins the pool under addr. A denial returns
// common.ErrConnectionDenied and leaves no state behind.
func (n *Node) RequestConnect(ctx context.Context, addr string) (Connection, error) {
	if addr == n.Addr() {
		return Connection{}, fmt.Errorf("%w: refusing to connect to self", common.ErrProtocol)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Connection{}, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}

	reply, err := n.handshake(ctx, conn)
	if err != nil {
		conn.Close()
		return Connection{}, err
	}

	accepted, remoteUser, err := ParseReply(reply)
	if err != nil {
		conn.Close()
		return Connection{}, err
	}
	if !accepted {
		conn.Close()
		n.log.Info(ctx, "connection denied", "addr", addr, "by", remoteUser)
		return Connection{}, fmt.Errorf("%w by %s", common.ErrConnectionDenied, remoteUser)
	}

	c := n.activate(conn, addr, remoteUser, history.Outbound)
	n.log.Info(ctx, "connection accepted", "addr", addr, "by", remoteUser)
	n.record(ctx, func(r Recorder) error { return r.PeerAccepted(ctx, addr, remoteUser, history.Outbound) })
	return c.Connection, nil
}

func (n *Node) handshake(ctx context.Context, conn net.Conn) (string, error) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := io.WriteString(conn, FormatRequestConnect(n.Username(), n.port)); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}

	buf := make([]byte, n.opts.BufferSize)
	k, err := conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: no reply to connection request: %w", common.ErrUnavailable, err)
	}
	return string(buf[:k]), nil
}

// activate puts conn in the pool and starts its drain goroutine.
func (n *Node) activate(conn net.Conn, addr, username, direction string) *activeConn {
	c := &activeConn{
		Connection: Connection{Addr: addr, Username: username, Direction: direction, Since: n.now()},
		conn:       conn,
		dead:       make(chan struct{}),
	}
	go c.drain(n.opts.BufferSize)
	n.pool.add(c)
	return c
}

// PendingRequests lists requests waiting for a decision.
func (n *Node) PendingRequests() []PendingRequest {
	return n.pending.snapshot()
}

// Decision is returned by a decide callback.
type Decision struct {
	Accepted []PendingRequest
	Denied   []PendingRequest
}

// RespondToPending resolves every queued request with decide, which runs
// outside any lock so it may prompt the user. The queue is emptied up front;
// requests arriving meanwhile wait for the next call.
func (n *Node) RespondToPending(ctx context.Context, decide func(PendingRequest) bool) (Decision, error) {
	reqs := n.pending.take()
	if len(reqs) == 0 {
		return Decision{}, common.ErrNoPendingRequest
	}

	var out Decision
	for _, r := range reqs {
		view := PendingRequest{ID: r.ID, Username: r.Username, ClaimedAddr: r.ClaimedAddr, ReceivedAt: r.ReceivedAt}
		accept := decide(view)

		_ = r.conn.SetWriteDeadline(time.Now().Add(n.opts.ProbeTimeout))
		_, err := io.WriteString(r.conn, formatReply(accept, n.Username()))
		_ = r.conn.SetWriteDeadline(time.Time{})

		if err != nil || !accept {
			r.conn.Close()
			if err != nil {
				n.log.Warn(ctx, "requester went away", "addr", r.ClaimedAddr, "error", err)
			}
			if !accept {
				n.log.Info(ctx, "connection request denied", "from", r.Username, "addr", r.ClaimedAddr)
				out.Denied = append(out.Denied, view)
			}
			continue
		}

		n.activate(r.conn, r.ClaimedAddr, r.Username, history.Inbound)
		n.log.Info(ctx, "connection request accepted", "from", r.Username, "addr", r.ClaimedAddr)
		n.record(ctx, func(rec Recorder) error {
			return rec.PeerAccepted(ctx, r.ClaimedAddr, r.Username, history.Inbound)
		})
		out.Accepted = append(out.Accepted, view)
	}
	return out, nil
}

// Connections returns the active pool, sorted by address.
func (n *Node) Connections() []Connection {
	return n.pool.list()
}

// IsConnected reports whether addr is in the active pool.
func (n *Node) IsConnected(addr string) bool {
	return n.pool.has(addr)
}

// Prune probes every active connection and drops the dead ones. It returns
// the removed addresses.
func (n *Node) Prune(ctx context.Context) []string {
	removed := n.pool.prune(n.opts.ProbeTimeout)
	for _, addr := range removed {
		n.log.Info(ctx, "connection pruned", "addr", addr)
	}
	return removed
}

// DisconnectAll closes every active connection and empties the pool.
func (n *Node) DisconnectAll() int {
	return n.pool.closeAll()
}

// Discover returns the registry's peers except this one.
func (n *Node) Discover(ctx context.Context) ([]string, error) {
	peers, err := n.opts.Registry.Peers(ctx)
	if err != nil {
		return nil, err
	}
	self := n.Addr()
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		if p != self {
			out = append(out, p)
		}
	}
	return out, nil
}

// Register announces this peer once.
func (n *Node) Register(ctx context.Context) error {
	if err := n.opts.Registry.Register(ctx, n.opts.ListenIP, n.port); err != nil {
		return err
	}
	n.heartbeats.Add(1)
	return nil
}

// Unregister removes this peer from the registry.
func (n *Node) Unregister(ctx context.Context) error {
	return n.opts.Registry.Unregister(ctx, n.opts.ListenIP, n.port)
}

// Heartbeats is the number of successful registrations so far.
func (n *Node) Heartbeats() uint64 {
	return n.heartbeats.Load()
}

// RunHeartbeat registers immediately and then every interval until ctx is
// done. Failures are logged and retried on the next tick.
func (n *Node) RunHeartbeat(ctx context.Context, interval time.Duration) {
	beat := func() {
		if err := n.Register(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				n.log.Warn(ctx, "heartbeat failed", "error", err)
			}
			return
		}
		n.log.Debug(ctx, "heartbeat sent", "count", n.Heartbeats())
	}

	beat()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			beat()
		case <-ctx.Done():
			return
		}
	}
}
