package registry

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
)

// maxResponseSize bounds a GETPEERS answer read by the client.
const maxResponseSize = 1 << 20

// Client talks to a registry. Every call is a fresh connection carrying a
// single request.
type Client struct {
	address string
	timeout time.Duration
}

// NewClient returns a Client for the registry at address. timeout bounds
// each exchange including the dial.
func NewClient(address string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{address: address, timeout: timeout}
}

func (c *Client) Address() string { return c.address }

// Register announces (or refreshes) the listener at ip:port.
func (c *Client) Register(ctx context.Context, ip string, port int) error {
	resp, err := c.roundTrip(ctx, fmt.Sprintf("%s|%s|%d", CmdRegister, ip, port))
	if err != nil {
		return err
	}
	if resp != RespRegistered {
		return fmt.Errorf("%w: unexpected register response %q", common.ErrProtocol, resp)
	}
	return nil
}

// Unregister removes ip:port. It returns common.ErrPeerNotFound when the
// registry had no such record.
func (c *Client) Unregister(ctx context.Context, ip string, port int) error {
	resp, err := c.roundTrip(ctx, fmt.Sprintf("%s|%s|%d", CmdUnregister, ip, port))
	if err != nil {
		return err
	}
	switch resp {
	case RespUnregistered:
		return nil
	case RespPeerNotFound:
		return common.ErrPeerNotFound
	}
	return fmt.Errorf("%w: unexpected unregister response %q", common.ErrProtocol, resp)
}

// Peers returns every live address known to the registry.
func (c *Client) Peers(ctx context.Context) ([]string, error) {
	resp, err := c.roundTrip(ctx, CmdGetPeers)
	if err != nil {
		return nil, err
	}
	if resp == RespUnknownCommand {
		return nil, fmt.Errorf("%w: registry rejected %s", common.ErrProtocol, CmdGetPeers)
	}
	return ParsePeers(resp), nil
}

func (c *Client) roundTrip(ctx context.Context, msg string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := io.WriteString(conn, msg); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}

	// the registry closes after replying
	data, err := io.ReadAll(io.LimitReader(conn, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	return string(data), nil
}
