package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/peershare/internal/common"
)

var errPasswordMismatch = errors.New("passwords do not match")

// Register prompts for a username, a password and its confirmation, then
// creates the account. Key generation can take a moment, so a spinner runs
// meanwhile. Password buffers are wiped before returning.
func (a *App) Register(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := GetPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := GetPassword(a.out, "Confirm password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(password, confirm) {
		return errPasswordMismatch
	}
	if len(password) == 0 {
		return errors.New("password must not be empty")
	}

	s := newSpinner(a.out, "Generating keys...")
	s.Start()
	err = a.users.Register(ctx, username, password)
	s.Stop()
	if err != nil {
		return err
	}

	success(a.out, fmt.Sprintf("Registered %s", username))
	hint(a.out, "Use login to go online")
	return nil
}

// Login prompts for credentials, recovers the private key and brings the
// peer online: listener, registry heartbeat and session monitor.
func (a *App) Login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := GetPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	sess, err := a.users.Login(ctx, username, password)
	if err != nil {
		return err
	}

	if err := a.goOnline(ctx, sess); err != nil {
		sess.Close()
		return fmt.Errorf("could not start peer: %w", err)
	}

	success(a.out, fmt.Sprintf("Logged in as %s, listening on %s", username, a.currentNode().Addr()))
	return nil
}

// Logout disconnects from every peer, unregisters from the registry and
// discards the session keys.
func (a *App) Logout(ctx context.Context) error {
	a.endSession(ctx)
	success(a.out, "Logged out")
	return nil
}

// SessionDetails prints the non-secret session summary.
func (a *App) SessionDetails(ctx context.Context) error {
	sess := a.currentSession()
	if sess == nil {
		return common.ErrSessionClosed
	}
	fmt.Fprintln(a.out, sess.String())
	return nil
}
