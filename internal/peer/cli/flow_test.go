package cli

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/logging"
	"github.com/dmitrijs2005/peershare/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRegistry(t *testing.T) string {
	t.Helper()
	srv := registry.NewServer("127.0.0.1:0", registry.NewTable(90*time.Second, nil), logging.Nop{}, time.Second, 0)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv.Addr().String()
}

func feed(a *App, lines ...string) {
	a.reader = bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func TestFlow_ConnectShareDownload(t *testing.T) {
	ctx := context.Background()
	regAddr := startRegistry(t)

	newPeer := func(name string) (*App, *syncBuffer) {
		c := testConfig(t)
		c.RegistryAddr = regAddr
		app, out := newTestApp(t, c, "")
		feed(app, name, name)
		stubPasswords(t, "pw", "pw", "pw")
		require.NoError(t, app.Register(ctx))
		require.NoError(t, app.Login(ctx))
		return app, out
	}
	alice, aliceOut := newPeer("alice")
	bob, bobOut := newPeer("bob")

	aliceAddr := alice.currentNode().Addr()
	bobAddr := bob.currentNode().Addr()

	// both announce themselves on login
	require.Eventually(t, func() bool {
		return alice.currentNode().Heartbeats() > 0 && bob.currentNode().Heartbeats() > 0
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.ViewPeers(ctx))
	assert.Contains(t, aliceOut.String(), "1. "+bobAddr)

	// separate data dirs: bob learns alice's public key out of band
	rec, err := alice.users.Store().Get("alice")
	require.NoError(t, err)
	require.NoError(t, bob.users.Store().Create("alice", rec))

	// bob shares a file with alice
	src := filepath.Join(t.TempDir(), "plan.txt")
	require.NoError(t, os.WriteFile(src, []byte("launch on friday"), 0o600))
	feed(bob, src, "alice")
	require.NoError(t, bob.Share(ctx))

	// alice asks, bob accepts
	feed(alice, bobAddr)
	connected := make(chan error, 1)
	go func() { connected <- alice.Connect(ctx) }()

	require.Eventually(t, func() bool {
		return len(bob.currentNode().PendingRequests()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	feed(bob, "y")
	require.NoError(t, bob.RespondPending(ctx))
	assert.Contains(t, bobOut.String(), "Accepted alice at "+aliceAddr)

	require.NoError(t, <-connected)
	assert.Contains(t, aliceOut.String(), "Connected to bob at "+bobAddr)

	require.NoError(t, alice.ShowConnected(ctx))
	assert.Contains(t, aliceOut.String(), "1. "+bobAddr+"  bob  outbound")

	feed(alice, bobAddr, "plan.txt")
	require.NoError(t, alice.RequestFile(ctx))
	assert.Contains(t, aliceOut.String(), "integrity verified")

	got, err := os.ReadFile(filepath.Join(alice.config.DataDir, common.DownloadDirName, "decrypted_plan.txt"))
	require.NoError(t, err)
	assert.Equal(t, "launch on friday", string(got))

	require.NoError(t, alice.History(ctx))
	assert.Contains(t, aliceOut.String(), "bob  outbound")
	assert.Contains(t, aliceOut.String(), "plan.txt")
	assert.Contains(t, aliceOut.String(), "completed  verified")

	// nothing pending any more
	require.NoError(t, bob.RespondPending(ctx))
	assert.Contains(t, bobOut.String(), "No pending connection requests")

	// logging out unregisters
	require.NoError(t, bob.Logout(ctx))
	require.NoError(t, alice.ViewPeers(ctx))
	assert.Contains(t, aliceOut.String(), "No other peers online")
}
