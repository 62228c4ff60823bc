package peer

import (
	"io"
	"net"
	"sort"
	"sync"
	"time"
)

// Connection describes one active connection.
type Connection struct {
	// Addr is the peer's advertised listener address.
	Addr      string
	Username  string
	Direction string
	Since     time.Time
}

type activeConn struct {
	Connection
	conn net.Conn
	dead chan struct{}
}

// drain consumes whatever the other side sends (probes) and marks the
// connection dead once the stream ends.
func (c *activeConn) drain(bufSize int) {
	defer close(c.dead)
	_, _ = io.CopyBuffer(io.Discard, c.conn, make([]byte, bufSize))
}

func (c *activeConn) isDead() bool {
	select {
	case <-c.dead:
		return true
	default:
		return false
	}
}

// pool is the active-connection table keyed by logical address.
type pool struct {
	mu    sync.Mutex
	conns map[string]*activeConn
}

func newPool() *pool {
	return &pool{conns: make(map[string]*activeConn)}
}

// add installs c, replacing (and closing) any previous connection to the
// same logical peer.
func (p *pool) add(c *activeConn) {
	p.mu.Lock()
	old := p.conns[c.Addr]
	p.conns[c.Addr] = c
	p.mu.Unlock()

	if old != nil && old != c {
		old.conn.Close()
	}
}

func (p *pool) has(addr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.conns[addr]
	return ok
}

func (p *pool) list() []Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Connection, 0, len(p.conns))
	for _, c := range p.conns {
		out = append(out, c.Connection)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// prune probes every connection while holding the lock and removes the
// ones that are gone. Writes are bounded by timeout.
func (p *pool) prune(timeout time.Duration) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var removed []string
	for addr, c := range p.conns {
		if !c.isDead() {
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			_, err := io.WriteString(c.conn, pingFrame)
			_ = c.conn.SetWriteDeadline(time.Time{})
			if err == nil {
				continue
			}
		}
		c.conn.Close()
		delete(p.conns, addr)
		removed = append(removed, addr)
	}
	sort.Strings(removed)
	return removed
}

// closeAll closes and forgets every connection.
func (p *pool) closeAll() int {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*activeConn)
	p.mu.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
	return len(conns)
}
