// Package cli provides the interactive peer command-line client.
//
// It wires configuration, the user store, key custody, the sharing engine,
// the local history database and the peer node into a REPL. Typical flow:
// register or log in, which starts the peer listener, the registry
// heartbeat and the session-expiry monitor; then run peer commands until
// exit, logout or session expiry.
//
// Key features:
//   - Register / Login / Logout
//   - Discover peers, connect, show connected peers, answer pending requests
//   - Share / list / unshare files, request a file from a connected peer
//   - Session details and transfer history
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
