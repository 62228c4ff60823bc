package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	touches  int
	calls    []string
	failOn   string
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) touch()           { f.touches++ }

func (f *fakeExec) call(name string) error {
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return errors.New(name + " failed")
	}
	return nil
}

func (f *fakeExec) Register(context.Context) error { return f.call("register") }
func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.call("login")
}
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.call("logout")
}
func (f *fakeExec) ViewPeers(context.Context) error      { return f.call("peers") }
func (f *fakeExec) Connect(context.Context) error        { return f.call("connect") }
func (f *fakeExec) ShowConnected(context.Context) error  { return f.call("connected") }
func (f *fakeExec) RespondPending(context.Context) error { return f.call("pending") }
func (f *fakeExec) RequestFile(context.Context) error    { return f.call("get") }
func (f *fakeExec) Share(context.Context) error          { return f.call("share") }
func (f *fakeExec) ListShared(context.Context) error     { return f.call("list") }
func (f *fakeExec) Unshare(context.Context) error        { return f.call("unshare") }
func (f *fakeExec) SessionDetails(context.Context) error { return f.call("session") }
func (f *fakeExec) History(context.Context) error        { return f.call("history") }

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	out := captureOutput(t)

	input := strings.Join([]string{
		"",
		"share",
		"login",
		"register",
		"peers",
		"connect",
		"connected",
		"pending",
		"get",
		"share",
		"l",
		"unshare",
		"session",
		"history",
		"logout",
		"exit",
		"peers",
	}, "\n") + "\n"

	f := &fakeExec{}
	runREPL(context.Background(), f, func() string { return "" }, bufio.NewReader(strings.NewReader(input)))

	assert.Equal(t, []string{
		"login", "peers", "connect", "connected", "pending", "get",
		"share", "list", "unshare", "session", "history", "logout",
	}, f.calls)
	assert.Contains(t, *out, "Please login first")
	assert.Contains(t, *out, "Already logged in; logout first")
	assert.Contains(t, *out, "Bye!")
	assert.Equal(t, 12, f.touches)
}

func TestRunREPL_HelpUnknownAndErrors(t *testing.T) {
	out := captureOutput(t)

	f := &fakeExec{failOn: "register"}
	input := "help\nbogus\nregister\n"
	runREPL(context.Background(), f, func() string { return "(x)" }, bufio.NewReader(strings.NewReader(input)))

	assert.Contains(t, *out, "Available commands: register, login, exit")
	assert.Contains(t, *out, "Unknown command: bogus")
	assert.Contains(t, *out, "peer(x)> ")
	assert.Contains(t, strings.Join(*out, "\n"), "register failed")
	assert.Equal(t, []string{"register"}, f.calls)
}

func TestRunREPL_LastLineWithoutNewline(t *testing.T) {
	captureOutput(t)

	f := &fakeExec{}
	runREPL(context.Background(), f, func() string { return "" }, bufio.NewReader(strings.NewReader("login")))
	assert.Equal(t, []string{"login"}, f.calls)
}
