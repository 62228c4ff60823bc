package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	touch()
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ViewPeers(ctx context.Context) error
	Connect(ctx context.Context) error
	ShowConnected(ctx context.Context) error
	RespondPending(ctx context.Context) error
	RequestFile(ctx context.Context) error
	Share(ctx context.Context) error
	ListShared(ctx context.Context) error
	Unshare(ctx context.Context) error
	SessionDetails(ctx context.Context) error
	History(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the peer CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. The loop exits on EOF or when the user types
// "exit" or "quit".
//
//	Not logged in:
//	  - help             show available commands
//	  - register         create an account
//	  - login            authenticate and go online
//	  - exit | quit      leave the program
//
//	Logged in:
//	  - peers            list peers known to the registry
//	  - connect          request a connection to a peer
//	  - connected        prune dead connections and list the rest
//	  - pending          accept or deny queued connection requests
//	  - get              download a file from a connected peer
//	  - share            encrypt and share a local file
//	  - (l)ist           list shared files
//	  - unshare          stop sharing a file
//	  - session          show session details
//	  - history          show accepted peers and transfers
//	  - logout           end the session and go offline
//	  - exit | quit      leave the program
//
// Errors returned by handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("peer%s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}

		if a.isLoggedIn() {
			a.touch()
		}

		var handler func(context.Context) error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: peers, connect, connected, pending, get, share, (l)ist, unshare, session, history, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}
			continue
		case "register":
			handler = a.Register
		case "login":
			handler = a.Login
		case "logout":
			handler = a.Logout
		case "peers":
			handler = a.ViewPeers
		case "connect":
			handler = a.Connect
		case "connected":
			handler = a.ShowConnected
		case "pending":
			handler = a.RespondPending
		case "get":
			handler = a.RequestFile
		case "share":
			handler = a.Share
		case "l", "list":
			handler = a.ListShared
		case "unshare":
			handler = a.Unshare
		case "session":
			handler = a.SessionDetails
		case "history":
			handler = a.History
		default:
			printlnFn("Unknown command:", cmd)
			continue
		}

		if needsLogin(cmd) != a.isLoggedIn() {
			if a.isLoggedIn() {
				printlnFn("Already logged in; logout first")
			} else {
				printlnFn("Please login first")
			}
			continue
		}

		if err := handler(ctx); err != nil {
			printlnFn(color.RedString("✗") + " " + err.Error())
		}
	}
}

func needsLogin(cmd string) bool {
	return cmd != "register" && cmd != "login"
}
