package peer

import (
	"testing"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestConnectRoundTrip(t *testing.T) {
	msg := FormatRequestConnect("alice", 10001)
	assert.Equal(t, "REQUEST_CONNECT|alice|10001", msg)

	user, port, err := ParseRequestConnect(msg)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	assert.Equal(t, 10001, port)

	for _, bad := range []string{
		"REQUEST_CONNECT|alice",
		"REQUEST_CONNECT||10001",
		"REQUEST_CONNECT|alice|0",
		"REQUEST_CONNECT|alice|x",
		"REQUEST_CONNECT|a|1|2",
		"ACCEPT_CONNECT|alice|1",
	} {
		_, _, err := ParseRequestConnect(bad)
		assert.ErrorIs(t, err, common.ErrProtocol, bad)
	}
}

func TestParseReply(t *testing.T) {
	ok, user, err := ParseReply(formatReply(true, "bob"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bob", user)

	ok, user, err = ParseReply(formatReply(false, "bob"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "bob", user)

	for _, bad := range []string{"", "ACCEPT_CONNECT", "MAYBE|bob", "FILE_FOUND"} {
		_, _, err := ParseReply(bad)
		assert.ErrorIs(t, err, common.ErrProtocol, bad)
	}
}

func TestParseReply_TrailingPing(t *testing.T) {
	for _, msg := range []string{
		formatReply(true, "bob") + pingFrame,
		formatReply(true, "bob") + pingFrame + pingFrame,
	} {
		ok, user, err := ParseReply(msg)
		require.NoError(t, err, msg)
		assert.True(t, ok)
		assert.Equal(t, "bob", user)
	}

	for _, bad := range []string{
		"ACCEPT_CONNECT|bob|x",
		"ACCEPT_CONNECT|bob|PING|x",
		"ACCEPT_CONNECT|",
		"ACCEPT_CONNECT|a b",
		"DENY_CONNECT|../bob",
	} {
		_, _, err := ParseReply(bad)
		assert.ErrorIs(t, err, common.ErrProtocol, bad)
	}
}

func TestParseRequestConnect_BadUsername(t *testing.T) {
	for _, bad := range []string{"REQUEST_CONNECT|a/b|4000", "REQUEST_CONNECT|..|4000", "REQUEST_CONNECT||4000"} {
		_, _, err := ParseRequestConnect(bad)
		assert.ErrorIs(t, err, common.ErrProtocol, bad)
	}
}

func TestCommand(t *testing.T) {
	assert.Equal(t, "PING", command(pingFrame))
	assert.Equal(t, "PING", command(pingFrame+pingFrame))
	assert.Equal(t, MsgRequestConnect, command(FormatRequestConnect("bob", 4000)))
	assert.Equal(t, MsgGetEntry, command(MsgGetEntry+sep+"a.txt"))
}
