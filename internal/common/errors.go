// Package common defines shared constants and sentinel errors used across the
// registry and peer layers. Callers should use errors.Is to match these values.
package common

import "errors"

// Transient network and protocol errors.
var (
	// ErrUnavailable wraps dial/read/write failures towards a remote process.
	ErrUnavailable = errors.New("remote unavailable")

	// ErrProtocol marks a malformed message or an unexpected response.
	ErrProtocol = errors.New("protocol error")
)

// Authorization and integrity errors raised on the receiving side.
var (
	ErrNotAuthorized = errors.New("not authorized to decrypt this file")
	ErrDecryptFailed = errors.New("decryption failed")
	ErrIntegrity     = errors.New("integrity check failed")
	ErrKeyCustody    = errors.New("private key could not be recovered")
)

// State errors: the requested object does not exist or is already present.
var (
	ErrFileNotFound     = errors.New("file not found")
	ErrPeerNotFound     = errors.New("peer not found")
	ErrNotConnected     = errors.New("peer is not connected")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrAlreadyShared    = errors.New("file already shared")
	ErrNoPendingRequest = errors.New("no pending connection requests")
	ErrConnectionDenied = errors.New("connection request denied")
)

// User and session errors.
var (
	ErrUserExists         = errors.New("username already exists")
	ErrUserNotFound       = errors.New("username not found")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionClosed      = errors.New("session closed")
)
