// Package peer is the peer connection manager: it listens for other peers,
// runs the REQUEST_CONNECT handshake with a manual accept/deny step, keeps
// the pool of active connections, announces itself to the registry and
// drives file downloads.
package peer

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/history"
	"github.com/dmitrijs2005/peershare/internal/logging"
	"github.com/dmitrijs2005/peershare/internal/sharing"
	"github.com/dmitrijs2005/peershare/internal/transfer"
	"github.com/google/uuid"
)

const (
	// firstMessageTimeout bounds how long an inbound connection may stay
	// silent before its first message.
	firstMessageTimeout = 30 * time.Second
	defaultProbeTimeout = 2 * time.Second
)

// Registry is the subset of registry.Client used by a Node.
type Registry interface {
	Register(ctx context.Context, ip string, port int) error
	Unregister(ctx context.Context, ip string, port int) error
	Peers(ctx context.Context) ([]string, error)
}

// FileSource resolves what this peer serves; *sharing.Engine implements it.
type FileSource interface {
	SharedPath(filename string) (string, error)
	Lookup(filename string) (sharing.Entry, error)
}

// Identity is the logged-in user; *users.Session implements it.
type Identity interface {
	Username() string
	PrivateKey() (*rsa.PrivateKey, error)
}

// Recorder receives accepted connections and finished downloads;
// *history.Store implements it.
type Recorder interface {
	PeerAccepted(ctx context.Context, addr, username, direction string) error
	TransferFinished(ctx context.Context, addr, filename string, n int64, status string, verified bool) error
}

// Options configure a Node.
type Options struct {
	ListenIP     string
	ListenPort   int // 0 picks a free port, useful in tests
	BufferSize   int
	DownloadDir  string
	ProbeTimeout time.Duration

	Registry Registry
	Files    FileSource
	Identity Identity
	Recorder Recorder // optional
	Logger   logging.Logger
}

// Node is one running peer.
type Node struct {
	opts    Options
	log     logging.Logger
	port    int
	ln      net.Listener
	pool    *pool
	pending pendingQueue
	now     func() time.Time

	heartbeats atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) (*Node, error) {
	if opts.Registry == nil || opts.Files == nil || opts.Identity == nil {
		return nil, errors.New("peer: registry, files and identity are required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = transfer.DefaultBufferSize
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.DownloadDir == "" {
		return nil, errors.New("peer: download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o700); err != nil {
		return nil, err
	}

	return &Node{
		opts: opts,
		log:  opts.Logger.With("module", "peer", "user", opts.Identity.Username()),
		port: opts.ListenPort,
		pool: newPool(),
		now:  time.Now,
	}, nil
}

// Username is the local user's name.
func (n *Node) Username() string { return n.opts.Identity.Username() }

// Addr is the advertised "ip:port" of this peer.
func (n *Node) Addr() string {
	return net.JoinHostPort(n.opts.ListenIP, strconv.Itoa(n.port))
}

// Port is the advertised listening port.
func (n *Node) Port() int { return n.port }

// Start binds the listener and serves inbound connections until ctx is
// cancelled or Close is called.
func (n *Node) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", n.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", n.Addr(), err)
	}
	n.ln = ln
	n.port = ln.Addr().(*net.TCPAddr).Port

	ctx, n.cancel = context.WithCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		<-ctx.Done()
		ln.Close()
	}()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.acceptLoop(ctx)
	}()

	n.log.Info(ctx, "listening for peers", "addr", n.Addr())
	return nil
}

func (n *Node) acceptLoop(ctx context.Context) {
	for {
		conn, err := n.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			n.log.Warn(ctx, "accept failed", "error", err)
			continue
		}
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.handleInbound(ctx, conn)
		}()
	}
}

// handleInbound reads the first message and dispatches on its command.
// Only REQUEST_CONNECT keeps the socket open (as a pending request).
func (n *Node) handleInbound(ctx context.Context, conn net.Conn) {
	// Close unblocks the handler; a kept socket is closed on shutdown too.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	keep := false
	defer func() {
		if !keep {
			stop()
			conn.Close()
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(firstMessageTimeout))
	buf := make([]byte, n.opts.BufferSize)
	k, err := conn.Read(buf)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			n.log.Debug(ctx, "inbound read failed", "remote", conn.RemoteAddr().String(), "error", err)
		}
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	msg := string(buf[:k])

	switch command(msg) {
	case MsgRequestConnect:
		keep = n.queueRequest(ctx, conn, msg)

	case transfer.CmdGetFile:
		n.serveFile(ctx, conn, msg)

	case MsgGetEntry:
		n.serveEntry(ctx, conn, msg)

	case Probe:
		// stray probe on a fresh socket; nothing to answer

	default:
		n.log.Warn(ctx, "unexpected message", "remote", conn.RemoteAddr().String(), "error", fmt.Errorf("%w: %q", common.ErrProtocol, msg))
	}
}

func (n *Node) queueRequest(ctx context.Context, conn net.Conn, msg string) bool {
	username, port, err := ParseRequestConnect(msg)
	if err != nil {
		n.log.Warn(ctx, "bad connection request", "remote", conn.RemoteAddr().String(), "error", err)
		return false
	}

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		n.log.Warn(ctx, "bad remote address", "remote", conn.RemoteAddr().String(), "error", err)
		return false
	}

	req := &PendingRequest{
		ID:          uuid.NewString(),
		Username:    username,
		ClaimedAddr: net.JoinHostPort(host, strconv.Itoa(port)),
		ReceivedAt:  n.now(),
		conn:        conn,
	}
	n.pending.push(req)
	n.log.Info(ctx, "connection request received", "from", username, "addr", req.ClaimedAddr)
	return true
}

// Close stops the listener, drops pending requests and active connections.
// It does not unregister; see Shutdown.
func (n *Node) Close() {
	if n.cancel != nil {
		n.cancel()
	}
	for _, r := range n.pending.take() {
		r.conn.Close()
	}
	n.pool.closeAll()
	n.wg.Wait()
}

// Shutdown is the full exit path: disconnect everyone, unregister from the
// registry, stop listening.
func (n *Node) Shutdown(ctx context.Context) {
	closed := n.DisconnectAll()
	n.log.Info(ctx, "disconnected all peers", "count", closed)

	if err := n.Unregister(ctx); err != nil && !errors.Is(err, common.ErrPeerNotFound) {
		n.log.Warn(ctx, "unregister failed", "error", err)
	}
	n.Close()
}

func (n *Node) record(ctx context.Context, f func(r Recorder) error) {
	if n.opts.Recorder == nil {
		return
	}
	if err := f(n.opts.Recorder); err != nil {
		n.log.Warn(ctx, "history write failed", "error", err)
	}
}

var _ Recorder = (*history.Store)(nil)
