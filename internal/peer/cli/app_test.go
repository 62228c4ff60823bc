package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/logging"
	"github.com/dmitrijs2005/peershare/internal/peer/config"
	"github.com/dmitrijs2005/peershare/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is written by the session watcher and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.DataDir = t.TempDir()
	c.ListenPort = 0
	// nothing listens here; registry calls fail fast
	c.RegistryAddr = "127.0.0.1:1"
	c.RegistryHealthAddr = "127.0.0.1:1"
	c.HeartbeatInterval = time.Hour
	return c
}

func newTestApp(t *testing.T, c *config.Config, input string) (*App, *syncBuffer) {
	t.Helper()
	ctx := context.Background()

	app, err := NewApp(ctx, c, logging.Nop{})
	require.NoError(t, err)

	out := &syncBuffer{}
	app.reader = bufio.NewReader(strings.NewReader(input))
	app.out = out
	app.exitFn = func(int) {}
	t.Cleanup(func() { app.Close(ctx) })
	return app, out
}

func stubPasswords(t *testing.T, pws ...string) {
	t.Helper()
	old := readPassword
	var mu sync.Mutex
	readPassword = func(int) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(pws) == 0 {
			return nil, io.EOF
		}
		p := []byte(pws[0])
		pws = pws[1:]
		return p, nil
	}
	t.Cleanup(func() { readPassword = old })
}

func TestApp_RegisterLoginLogout(t *testing.T) {
	ctx := context.Background()
	stubPasswords(t, "pw", "pw", "pw")
	app, out := newTestApp(t, testConfig(t), "alice\nalice\n")

	require.NoError(t, app.Register(ctx))
	assert.Contains(t, out.String(), "Registered alice")
	assert.False(t, app.isLoggedIn())

	require.NoError(t, app.Login(ctx))
	require.True(t, app.isLoggedIn())
	assert.Contains(t, out.String(), "Logged in as alice")
	assert.Equal(t, "(alice )", app.getStatus())
	require.NotNil(t, app.currentNode())
	assert.NotZero(t, app.currentNode().Port())

	require.NoError(t, app.SessionDetails(ctx))
	assert.Contains(t, out.String(), "Session(username=alice, active_for=")
	assert.NotContains(t, out.String(), "PRIVATE KEY")

	require.NoError(t, app.Logout(ctx))
	assert.False(t, app.isLoggedIn())
	assert.Nil(t, app.currentNode())
	assert.ErrorIs(t, app.SessionDetails(ctx), common.ErrSessionClosed)
	assert.ErrorIs(t, app.ViewPeers(ctx), common.ErrSessionClosed)
}

func TestApp_RegisterErrors(t *testing.T) {
	ctx := context.Background()

	stubPasswords(t, "pw", "other")
	app, _ := newTestApp(t, testConfig(t), "bob\n")
	assert.ErrorIs(t, app.Register(ctx), errPasswordMismatch)

	stubPasswords(t, "pw", "pw")
	app, _ = newTestApp(t, testConfig(t), "../bob\n")
	assert.ErrorIs(t, app.Register(ctx), common.ErrInvalidUsername)
}

func TestApp_LoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	stubPasswords(t, "pw", "pw", "nope")
	app, _ := newTestApp(t, testConfig(t), "carol\ncarol\n")

	require.NoError(t, app.Register(ctx))
	assert.ErrorIs(t, app.Login(ctx), common.ErrInvalidCredentials)
	assert.False(t, app.isLoggedIn())
}

func TestApp_ShareListUnshare(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)

	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("meeting notes"), 0o600))

	stubPasswords(t, "pw", "pw")
	input := "bob\n" + src + "\nbob, ghost\n1\n"
	app, out := newTestApp(t, c, input)

	require.NoError(t, app.Register(ctx))
	require.NoError(t, app.Share(ctx))
	assert.Contains(t, out.String(), "Shared notes.txt")
	assert.Contains(t, out.String(), "Only these recipients are known: bob")
	assert.FileExists(t, filepath.Join(c.DataDir, common.SharedDirName, "notes.txt"))

	require.NoError(t, app.Unshare(ctx))
	assert.Contains(t, out.String(), "1. notes.txt  [encrypted]")
	assert.Contains(t, out.String(), "Unshared notes.txt")
	assert.NoFileExists(t, filepath.Join(c.DataDir, common.SharedDirName, "notes.txt"))

	require.NoError(t, app.ListShared(ctx))
	assert.Contains(t, out.String(), "No shared files")
}

func TestApp_ShareNeedsRecipients(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t), "/tmp/whatever\n , \n")
	assert.Error(t, app.Share(context.Background()))
}

func TestApp_SessionExpiryForcesExit(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	c.SessionTimeout = 20 * time.Millisecond
	c.SessionCheckInterval = 5 * time.Millisecond

	stubPasswords(t, "pw", "pw", "pw")
	app, out := newTestApp(t, c, "dave\ndave\n")

	exited := make(chan int, 1)
	app.exitFn = func(code int) { exited <- code }

	require.NoError(t, app.Register(ctx))
	require.NoError(t, app.Login(ctx))

	select {
	case code := <-exited:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not expire")
	}
	assert.False(t, app.isLoggedIn())
	assert.Contains(t, out.String(), "Session expired")
}

func TestApp_HistoryEmpty(t *testing.T) {
	app, out := newTestApp(t, testConfig(t), "")
	require.NoError(t, app.History(context.Background()))
	assert.Equal(t, "Accepted peers:\n  none\nTransfers:\n  none\n", out.String())
}

func TestApp_OnlineStatusWatcher(t *testing.T) {
	hs := registry.NewHealthServer("127.0.0.1:0", logging.Nop{})
	require.NoError(t, hs.Listen())

	hctx, hcancel := context.WithCancel(context.Background())
	defer hcancel()
	go func() { _ = hs.Run(hctx) }()

	c := testConfig(t)
	c.RegistryHealthAddr = hs.Addr().String()
	app, _ := newTestApp(t, c, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.StartOnlineStatusWatcher(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool { return app.currentMode() == ModeOnline }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "(online)", app.getStatus())

	hcancel()
	require.Eventually(t, func() bool { return app.currentMode() == ModeOffline }, 5*time.Second, 10*time.Millisecond)
}

func TestApp_RunExits(t *testing.T) {
	app, out := newTestApp(t, testConfig(t), "help\nexit\n")
	orig := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = orig })

	require.NoError(t, app.Run(context.Background()))
	assert.Contains(t, out.String(), "Welcome to PeerShare")
}
