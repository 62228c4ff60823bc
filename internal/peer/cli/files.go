package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
)

// historyLimit is how many rows of each kind History shows.
const historyLimit = 20

// RequestFile downloads a file from a connected peer and reports how
// decryption and verification went.
func (a *App) RequestFile(ctx context.Context) error {
	n, err := a.requireNode()
	if err != nil {
		return err
	}

	addr, err := GetSimpleText(a.reader, "Enter peer address (ip:port)", a.out)
	if err != nil {
		return err
	}
	filename, err := GetSimpleText(a.reader, "Enter file name", a.out)
	if err != nil {
		return err
	}

	s := newSpinner(a.out, "Downloading "+filename+"...")
	s.Start()
	res, err := n.Download(ctx, addr, filename)
	s.Stop()

	switch {
	case errors.Is(err, common.ErrNotAuthorized), errors.Is(err, common.ErrDecryptFailed):
		warn(a.out, fmt.Sprintf("Received %s but could not decrypt it: %v", res.Path, err))
		return nil
	case err != nil:
		return err
	}

	success(a.out, fmt.Sprintf("Received %s (%d bytes)", res.Path, res.Bytes))
	switch {
	case !res.Metadata:
		hint(a.out, "No sharing metadata found; file kept as received")
	case !res.Open.Encrypted:
		hint(a.out, "File is not encrypted")
	case res.Open.DecryptedPath == "":
		warn(a.out, "File could not be decrypted cleanly; it may be corrupted")
	case res.Open.Verified:
		success(a.out, fmt.Sprintf("Decrypted to %s, integrity verified", res.Open.DecryptedPath))
	default:
		warn(a.out, fmt.Sprintf("Decrypted to %s but the integrity check FAILED", res.Open.DecryptedPath))
	}
	return nil
}

// Share encrypts a local file for the listed recipients.
func (a *App) Share(ctx context.Context) error {
	path, err := GetSimpleText(a.reader, "Enter path of the file to share", a.out)
	if err != nil {
		return err
	}
	list, err := GetSimpleText(a.reader, "Enter recipient usernames (comma separated)", a.out)
	if err != nil {
		return err
	}
	recipients := SplitList(list)
	if len(recipients) == 0 {
		return errors.New("at least one recipient is required")
	}

	entry, err := a.files.Share(ctx, path, recipients)
	if err != nil {
		return err
	}

	success(a.out, fmt.Sprintf("Shared %s", entry.Filename))
	granted := entry.Recipients()
	if len(granted) < len(recipients) {
		warn(a.out, "Only these recipients are known: "+strings.Join(granted, ", "))
	} else {
		hint(a.out, "Recipients: "+strings.Join(granted, ", "))
	}
	return nil
}

// ListShared prints the manifest as a numbered list.
func (a *App) ListShared(ctx context.Context) error {
	entries, err := a.files.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		warn(a.out, "No shared files")
		return nil
	}
	for i, e := range entries {
		kind := "plain"
		if e.Encrypted {
			kind = "encrypted"
		}
		fmt.Fprintf(a.out, "%d. %s  [%s]  shared %s  for %s\n",
			i+1, e.Filename, kind, e.SharedAt.Local().Format(time.DateTime), strings.Join(e.Recipients(), ", "))
	}
	return nil
}

// Unshare removes a manifest entry, chosen by its number in ListShared,
// together with its ciphertext.
func (a *App) Unshare(ctx context.Context) error {
	if err := a.ListShared(ctx); err != nil {
		return err
	}
	n, err := GetNumber(a.reader, "Enter number of the file to unshare", a.out)
	if err != nil {
		return err
	}

	entry, err := a.files.Unshare(ctx, n-1)
	if err != nil {
		return err
	}
	success(a.out, fmt.Sprintf("Unshared %s", entry.Filename))
	return nil
}

// History shows recently accepted peers and transfers.
func (a *App) History(ctx context.Context) error {
	peers, transfers, err := a.history.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Accepted peers:")
	if len(peers) == 0 {
		fmt.Fprintln(a.out, "  none")
	}
	for _, p := range peers {
		fmt.Fprintf(a.out, "  %s  %s  %s  %s\n", p.AcceptedAt.Local().Format(time.DateTime), p.PeerAddr, p.Username, p.Direction)
	}

	fmt.Fprintln(a.out, "Transfers:")
	if len(transfers) == 0 {
		fmt.Fprintln(a.out, "  none")
	}
	for _, t := range transfers {
		verified := ""
		if t.Verified {
			verified = "  verified"
		}
		fmt.Fprintf(a.out, "  %s  %s  %s  %d bytes  %s%s\n",
			t.CreatedAt.Local().Format(time.DateTime), t.PeerAddr, t.Filename, t.Bytes, t.Status, verified)
	}
	return nil
}
