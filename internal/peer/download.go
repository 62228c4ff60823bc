package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/history"
	"github.com/dmitrijs2005/peershare/internal/sharing"
	"github.com/dmitrijs2005/peershare/internal/transfer"
)

// maxEntrySize bounds a GET_ENTRY answer.
const maxEntrySize = 1 << 20

// DownloadResult is the outcome of a successful transfer.
type DownloadResult struct {
	// Path holds the bytes as received (ciphertext for encrypted files).
	Path  string
	Bytes int64
	// Metadata is false when no manifest entry could be found for the file.
	Metadata bool
	Open     sharing.OpenResult
}

// Download fetches filename from the connected peer at addr over a fresh
// connection, then decrypts and verifies it when a manifest entry marks it
// encrypted. The received file is kept even if decryption is refused.
func (n *Node) Download(ctx context.Context, addr, filename string) (DownloadResult, error) {
	if !sharing.ValidFilename(filename) {
		return DownloadResult{}, fmt.Errorf("%w: invalid file name %q", common.ErrFileNotFound, filename)
	}
	if !n.pool.has(addr) {
		return DownloadResult{}, fmt.Errorf("%w: %s", common.ErrNotConnected, addr)
	}

	conn, err := n.dial(ctx, addr)
	if err != nil {
		return DownloadResult{}, err
	}
	defer conn.Close()

	dst := filepath.Join(n.opts.DownloadDir, filename)
	size, err := transfer.Fetch(ctx, conn, filename, dst, n.opts.BufferSize)
	if err != nil {
		status := history.StatusFailed
		if errors.Is(err, common.ErrFileNotFound) {
			status = history.StatusNotFound
		}
		n.record(ctx, func(r Recorder) error { return r.TransferFinished(ctx, addr, filename, size, status, false) })
		return DownloadResult{Bytes: size}, err
	}
	n.log.Info(ctx, "file received", "file", filename, "from", addr, "bytes", size)

	res := DownloadResult{Path: dst, Bytes: size}

	entry, ok := n.resolveEntry(ctx, addr, filename)
	if !ok {
		n.record(ctx, func(r Recorder) error {
			return r.TransferFinished(ctx, addr, filename, size, history.StatusCompleted, false)
		})
		return res, nil
	}
	res.Metadata = true

	priv, err := n.opts.Identity.PrivateKey()
	if err != nil {
		return res, err
	}

	res.Open, err = sharing.Open(ctx, n.log, &entry, dst, n.Username(), priv)
	if err != nil {
		status := history.StatusFailed
		if errors.Is(err, common.ErrNotAuthorized) || errors.Is(err, common.ErrDecryptFailed) {
			status = history.StatusUnauthorized
		}
		n.record(ctx, func(r Recorder) error { return r.TransferFinished(ctx, addr, filename, size, status, false) })
		return res, err
	}

	n.record(ctx, func(r Recorder) error {
		return r.TransferFinished(ctx, addr, filename, size, history.StatusCompleted, res.Open.Verified)
	})
	return res, nil
}

// resolveEntry asks the sender for the entry first and falls back to the
// local manifest, which is the same file when peers share a data dir.
func (n *Node) resolveEntry(ctx context.Context, addr, filename string) (sharing.Entry, bool) {
	entry, err := n.FetchEntry(ctx, addr, filename)
	if err == nil {
		return entry, true
	}
	n.log.Debug(ctx, "remote entry unavailable", "file", filename, "error", err)

	entry, err = n.opts.Files.Lookup(filename)
	if err != nil {
		return sharing.Entry{}, false
	}
	return entry, true
}

// FetchEntry asks the peer at addr for its manifest entry of filename.
func (n *Node) FetchEntry(ctx context.Context, addr, filename string) (sharing.Entry, error) {
	conn, err := n.dial(ctx, addr)
	if err != nil {
		return sharing.Entry{}, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := io.WriteString(conn, MsgGetEntry+sep+filename); err != nil {
		return sharing.Entry{}, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	data, err := io.ReadAll(io.LimitReader(conn, maxEntrySize))
	if err != nil {
		return sharing.Entry{}, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	if string(data) == transfer.StatusNotFound {
		return sharing.Entry{}, fmt.Errorf("%w: %s", common.ErrFileNotFound, filename)
	}

	var entry sharing.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return sharing.Entry{}, fmt.Errorf("%w: bad entry: %w", common.ErrProtocol, err)
	}
	if entry.Filename != filename {
		return sharing.Entry{}, fmt.Errorf("%w: entry for %q, asked for %q", common.ErrProtocol, entry.Filename, filename)
	}
	return entry, nil
}

func (n *Node) dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	return conn, nil
}

func (n *Node) serveFile(ctx context.Context, conn net.Conn, msg string) {
	filename, ok := transfer.ParseRequest(msg)
	if !ok {
		n.log.Warn(ctx, "bad file request", "error", fmt.Errorf("%w: %q", common.ErrProtocol, msg))
		return
	}

	sent, err := transfer.Serve(conn, filename, transfer.OpenFile(n.opts.Files.SharedPath), n.opts.BufferSize)
	switch {
	case errors.Is(err, common.ErrFileNotFound):
		n.log.Info(ctx, "requested file not found", "file", filename, "remote", conn.RemoteAddr().String())
	case err != nil:
		n.log.Warn(ctx, "file transfer failed", "file", filename, "sent", sent, "error", err)
	default:
		n.log.Info(ctx, "file sent", "file", filename, "bytes", sent, "remote", conn.RemoteAddr().String())
	}
}

func (n *Node) serveEntry(ctx context.Context, conn net.Conn, msg string) {
	_, filename, _ := strings.Cut(msg, sep)

	var reply []byte
	entry, err := n.opts.Files.Lookup(filename)
	if err != nil {
		reply = []byte(transfer.StatusNotFound)
	} else if reply, err = json.Marshal(entry); err != nil {
		n.log.Error(ctx, "encode entry failed", "file", filename, "error", err)
		return
	}

	if _, err := conn.Write(reply); err != nil {
		n.log.Warn(ctx, "entry reply failed", "file", filename, "error", err)
	}
}
