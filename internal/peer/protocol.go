package peer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/users"
)

// Peer-to-peer control messages. Fields are separated by '|'.
const (
	MsgRequestConnect = "REQUEST_CONNECT"
	MsgAcceptConnect  = "ACCEPT_CONNECT"
	MsgDenyConnect    = "DENY_CONNECT"
	MsgGetEntry       = "GET_ENTRY"

	// Probe is written on active connections by Prune. The other side reads
	// and discards it.
	Probe = "PING"

	sep = "|"

	// pingFrame is what goes on the wire. The leading separator keeps a
	// probe that lands in the same read as a reply out of the reply's
	// username field.
	pingFrame = sep + Probe
)

// FormatRequestConnect builds the handshake request. port is the sender's
// own listening port, never the ephemeral port of the dialing socket.
func FormatRequestConnect(username string, port int) string {
	return MsgRequestConnect + sep + username + sep + strconv.Itoa(port)
}

// ParseRequestConnect is the inverse of FormatRequestConnect.
func ParseRequestConnect(msg string) (username string, port int, err error) {
	parts := strings.Split(msg, sep)
	if len(parts) != 3 || parts[0] != MsgRequestConnect {
		return "", 0, fmt.Errorf("%w: bad connect request %q", common.ErrProtocol, msg)
	}
	if !users.ValidUsername(parts[1]) {
		return "", 0, fmt.Errorf("%w: bad username %q", common.ErrProtocol, parts[1])
	}
	port, err = strconv.Atoi(parts[2])
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("%w: bad listen port %q", common.ErrProtocol, parts[2])
	}
	return parts[1], port, nil
}

// ParseReply parses ACCEPT_CONNECT|<user> or DENY_CONNECT|<user>. Probes
// that arrived in the same read trail as extra "|PING" fields and are
// dropped.
func ParseReply(msg string) (accepted bool, username string, err error) {
	parts := strings.Split(msg, sep)
	if len(parts) < 2 {
		return false, "", fmt.Errorf("%w: bad connect reply %q", common.ErrProtocol, msg)
	}
	for _, extra := range parts[2:] {
		if extra != Probe {
			return false, "", fmt.Errorf("%w: bad connect reply %q", common.ErrProtocol, msg)
		}
	}
	if !users.ValidUsername(parts[1]) {
		return false, "", fmt.Errorf("%w: bad username in reply %q", common.ErrProtocol, msg)
	}

	switch parts[0] {
	case MsgAcceptConnect:
		return true, parts[1], nil
	case MsgDenyConnect:
		return false, parts[1], nil
	}
	return false, "", fmt.Errorf("%w: bad connect reply %q", common.ErrProtocol, msg)
}

func formatReply(accept bool, username string) string {
	if accept {
		return MsgAcceptConnect + sep + username
	}
	return MsgDenyConnect + sep + username
}

// command returns the first field of a message. A framed probe yields
// Probe.
func command(msg string) string {
	if strings.HasPrefix(msg, pingFrame) {
		return Probe
	}
	cmd, _, _ := strings.Cut(msg, sep)
	return cmd
}
