package registry

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/peershare/internal/common"
)

// Request commands and responses of the registry text protocol. Fields are
// separated by '|'; there is one exchange per connection.
const (
	CmdRegister   = "REGISTER"
	CmdUnregister = "UNREGISTER"
	CmdGetPeers   = "GETPEERS"

	RespRegistered     = "REGISTERED"
	RespUnregistered   = "UNREGISTERED"
	RespPeerNotFound   = "PEER_NOT_FOUND"
	RespUnknownCommand = "UNKNOWN_COMMAND"

	sep = "|"
)

// Request is a parsed registry request. Addr is set for REGISTER and
// UNREGISTER.
type Request struct {
	Cmd  string
	Addr string
}

// FormatAddr joins ip and port the way the registry keys records.
func FormatAddr(ip string, port int) string {
	return net.JoinHostPort(ip, strconv.Itoa(port))
}

// ParseRequest parses one message. Unknown commands come back with an empty
// Cmd and no error; a known command with bad arguments is an ErrProtocol.
func ParseRequest(msg string) (Request, error) {
	parts := strings.Split(strings.TrimRight(msg, "\r\n"), sep)

	switch parts[0] {
	case CmdGetPeers:
		if len(parts) != 1 {
			return Request{}, fmt.Errorf("%w: %s takes no arguments", common.ErrProtocol, CmdGetPeers)
		}
		return Request{Cmd: CmdGetPeers}, nil

	case CmdRegister, CmdUnregister:
		if len(parts) != 3 {
			return Request{}, fmt.Errorf("%w: %s needs ip and port", common.ErrProtocol, parts[0])
		}
		ip := parts[1]
		if !validHost(ip) {
			return Request{}, fmt.Errorf("%w: bad ip %q", common.ErrProtocol, ip)
		}
		port, err := strconv.Atoi(parts[2])
		if err != nil || port < 1 || port > 65535 {
			return Request{}, fmt.Errorf("%w: bad port %q", common.ErrProtocol, parts[2])
		}
		return Request{Cmd: parts[0], Addr: FormatAddr(ip, port)}, nil
	}

	return Request{}, nil
}

// validHost accepts a hostname or an IP literal; IPv6 must parse.
func validHost(h string) bool {
	if h == "" || strings.ContainsAny(h, " \t") {
		return false
	}
	if strings.Contains(h, ":") {
		return net.ParseIP(h) != nil
	}
	return true
}

// FormatPeers renders a GETPEERS response.
func FormatPeers(addrs []string) string {
	return strings.Join(addrs, sep)
}

// ParsePeers is the inverse of FormatPeers. An empty response means no peers.
func ParsePeers(resp string) []string {
	if resp == "" {
		return nil
	}
	return strings.Split(resp, sep)
}
