package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/peer"
)

// decisionTimeout bounds how long a connection request waits for the other
// user to answer.
const decisionTimeout = 2 * time.Minute

func (a *App) requireNode() (*peer.Node, error) {
	n := a.currentNode()
	if n == nil {
		return nil, common.ErrSessionClosed
	}
	return n, nil
}

// ViewPeers lists the addresses the registry knows, except our own.
func (a *App) ViewPeers(ctx context.Context) error {
	n, err := a.requireNode()
	if err != nil {
		return err
	}

	peers, err := n.Discover(ctx)
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		warn(a.out, "No other peers online")
		return nil
	}
	fmt.Fprintf(a.out, "Peers registered at %s:\n", a.registry.Address())
	for i, p := range peers {
		fmt.Fprintf(a.out, "%d. %s\n", i+1, p)
	}
	return nil
}

// Connect asks a peer for a connection and waits for its user's decision.
func (a *App) Connect(ctx context.Context) error {
	n, err := a.requireNode()
	if err != nil {
		return err
	}

	addr, err := GetSimpleText(a.reader, "Enter peer address (ip:port)", a.out)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, decisionTimeout)
	defer cancel()

	s := newSpinner(a.out, "Waiting for "+addr+" to respond...")
	s.Start()
	c, err := n.RequestConnect(cctx, addr)
	s.Stop()
	if err != nil {
		return err
	}

	success(a.out, fmt.Sprintf("Connected to %s at %s", c.Username, c.Addr))
	return nil
}

// ShowConnected prunes dead connections, then lists the active ones.
func (a *App) ShowConnected(ctx context.Context) error {
	n, err := a.requireNode()
	if err != nil {
		return err
	}

	for _, addr := range n.Prune(ctx) {
		warn(a.out, "Lost connection to "+addr)
	}

	conns := n.Connections()
	if len(conns) == 0 {
		warn(a.out, "No connected peers")
		return nil
	}
	for i, c := range conns {
		fmt.Fprintf(a.out, "%d. %s  %s  %s  since %s\n",
			i+1, c.Addr, c.Username, c.Direction, c.Since.Format(time.DateTime))
	}
	return nil
}

// RespondPending asks the user about every queued connection request.
func (a *App) RespondPending(ctx context.Context) error {
	n, err := a.requireNode()
	if err != nil {
		return err
	}

	var promptErr error
	dec, err := n.RespondToPending(ctx, func(r peer.PendingRequest) bool {
		if promptErr != nil {
			return false
		}
		ok, err := Confirm(a.reader, fmt.Sprintf("Accept connection from %s at %s?", r.Username, r.ClaimedAddr), a.out)
		if err != nil {
			promptErr = err
			return false
		}
		return ok
	})
	if errors.Is(err, common.ErrNoPendingRequest) {
		warn(a.out, "No pending connection requests")
		return nil
	}
	if err != nil {
		return err
	}

	for _, r := range dec.Accepted {
		success(a.out, fmt.Sprintf("Accepted %s at %s", r.Username, r.ClaimedAddr))
	}
	for _, r := range dec.Denied {
		warn(a.out, fmt.Sprintf("Denied %s at %s", r.Username, r.ClaimedAddr))
	}
	return promptErr
}
