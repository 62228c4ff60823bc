package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/custody"
	"github.com/dmitrijs2005/peershare/internal/history"
	"github.com/dmitrijs2005/peershare/internal/logging"
	"github.com/dmitrijs2005/peershare/internal/peer"
	"github.com/dmitrijs2005/peershare/internal/peer/config"
	"github.com/dmitrijs2005/peershare/internal/registry"
	"github.com/dmitrijs2005/peershare/internal/sharing"
	"github.com/dmitrijs2005/peershare/internal/users"
)

// registryTimeout bounds one registry round trip.
const registryTimeout = 5 * time.Second

type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

type App struct {
	config   *config.Config
	log      logging.Logger
	users    *users.Service
	registry *registry.Client
	health   *registry.HealthChecker
	history  *history.Store
	files    *sharing.Engine

	mu      sync.Mutex
	mode    Mode
	session *users.Session
	node    *peer.Node
	stopBg  context.CancelFunc
	closed  bool

	reader *bufio.Reader
	out    io.Writer
	exitFn func(int)
}

// NewApp opens the local stores under c.DataDir and prepares the registry
// clients. Nothing listens until a user logs in.
func NewApp(ctx context.Context, c *config.Config, l logging.Logger) (*App, error) {
	keys, err := custody.NewStore(c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("key store: %w", err)
	}
	store := users.NewStore(c.DataDir)

	files, err := sharing.NewEngine(c.DataDir, store, l)
	if err != nil {
		return nil, fmt.Errorf("sharing engine: %w", err)
	}

	hist, err := history.Open(ctx, filepath.Join(c.DataDir, common.HistoryFileName))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	health, err := registry.NewHealthChecker(c.RegistryHealthAddr)
	if err != nil {
		hist.Close()
		return nil, err
	}

	return &App{
		config:   c,
		log:      l.With("module", "cli"),
		users:    users.NewService(store, keys, l),
		registry: registry.NewClient(c.RegistryAddr, registryTimeout),
		health:   health,
		history:  hist,
		files:    files,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		exitFn:   os.Exit,
	}, nil
}

// Run starts the registry watcher and blocks in the REPL until the user
// exits. Everything is shut down before it returns.
func (a *App) Run(ctx context.Context) error {
	defer a.Close(ctx)

	fmt.Fprintln(a.out, "Welcome to PeerShare (type 'help' for commands)")

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.StartOnlineStatusWatcher(watchCtx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.log.Info(ctx, "registry status changed", "mode", string(mode))
	}
}

func (a *App) currentMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) getStatus() string {
	s := ""
	if sess := a.currentSession(); sess != nil {
		s = sess.Username() + " "
	}
	if m := a.currentMode(); m != "" {
		s = s + string(m)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// StartOnlineStatusWatcher pings the registry health endpoint every interval
// and flips the mode between online and offline.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.health.Ping(pctx)
			cancel()

			if err != nil {
				a.setMode(ctx, ModeOffline)
			} else {
				a.setMode(ctx, ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) currentSession() *users.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *App) currentNode() *peer.Node {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.node
}

func (a *App) isLoggedIn() bool {
	return a.currentSession() != nil
}

func (a *App) touch() {
	if s := a.currentSession(); s != nil {
		s.Touch()
	}
}

// goOnline starts the peer node for sess, its heartbeat and the session
// monitor.
func (a *App) goOnline(ctx context.Context, sess *users.Session) error {
	node, err := peer.New(peer.Options{
		ListenIP:    a.config.ListenIP,
		ListenPort:  a.config.ListenPort,
		BufferSize:  a.config.BufferSize,
		DownloadDir: filepath.Join(a.config.DataDir, common.DownloadDirName),
		Registry:    a.registry,
		Files:       a.files,
		Identity:    sess,
		Recorder:    a.history,
		Logger:      a.log,
	})
	if err != nil {
		return err
	}

	bg, cancel := context.WithCancel(ctx)
	if err := node.Start(bg); err != nil {
		cancel()
		return err
	}

	a.mu.Lock()
	a.session, a.node, a.stopBg = sess, node, cancel
	a.mu.Unlock()

	go node.RunHeartbeat(bg, a.config.HeartbeatInterval)
	go users.WatchSession(bg, sess, a.config.SessionTimeout, a.config.SessionCheckInterval, func() {
		a.expire(ctx)
	})
	return nil
}

// endSession disconnects all peers, unregisters and discards the key
// material. It is a no-op without a session.
func (a *App) endSession(ctx context.Context) {
	a.mu.Lock()
	sess, node, stop := a.session, a.node, a.stopBg
	a.session, a.node, a.stopBg = nil, nil, nil
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
	if node != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), registryTimeout)
		node.Shutdown(sctx)
		cancel()
	}
	if sess != nil {
		sess.Close()
		a.log.Info(ctx, "session ended", "user", sess.Username())
	}
}

// expire is the forced exit on session timeout. It does not wait for the
// REPL, which may be blocked reading input.
func (a *App) expire(ctx context.Context) {
	warn(a.out, "Session expired, shutting down")
	a.Close(ctx)
	a.exitFn(0)
}

// Close ends the session and releases the local stores. It is safe to call
// more than once.
func (a *App) Close(ctx context.Context) {
	a.endSession(ctx)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	if err := a.history.Close(); err != nil {
		a.log.Warn(ctx, "history close failed", "error", err)
	}
	if err := a.health.Close(); err != nil {
		a.log.Warn(ctx, "health client close failed", "error", err)
	}
}
