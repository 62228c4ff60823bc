package registry

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_PingWhileServing(t *testing.T) {
	hs := NewHealthServer("127.0.0.1:0", logging.Nop{})
	require.NoError(t, hs.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hs.Run(ctx) }()

	checker, err := NewHealthChecker(hs.Addr().String())
	require.NoError(t, err)
	defer checker.Close()

	require.Eventually(t, func() bool {
		pctx, pcancel := context.WithTimeout(context.Background(), time.Second)
		defer pcancel()
		return checker.Ping(pctx) == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("health server did not stop")
	}

	pctx, pcancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer pcancel()
	assert.ErrorIs(t, checker.Ping(pctx), common.ErrUnavailable)
}
