// Package transfer implements the GET_FILE exchange.
//
//	-> GET_FILE|<filename>
//	<- FILE_NOT_FOUND                 (then close)
//	<- FILE_FOUND<raw file bytes...>  (close marks end of file)
//
// There is no length prefix; the receiver cannot tell a complete file from
// one cut short by a broken connection.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/dmitrijs2005/peershare/internal/common"
)

const (
	CmdGetFile     = "GET_FILE"
	StatusFound    = "FILE_FOUND"
	StatusNotFound = "FILE_NOT_FOUND"

	// DefaultBufferSize is the copy buffer used when none is given.
	DefaultBufferSize = 4096
)

// Opener returns the content to send for a requested filename. Any error is
// answered with FILE_NOT_FOUND.
type Opener func(filename string) (io.ReadCloser, error)

// Request formats a GET_FILE request.
func Request(filename string) string {
	return CmdGetFile + "|" + filename
}

// ParseRequest extracts the filename from a GET_FILE message.
func ParseRequest(msg string) (string, bool) {
	cmd, name, ok := strings.Cut(msg, "|")
	if !ok || cmd != CmdGetFile || name == "" {
		return "", false
	}
	return name, true
}

// OpenFile adapts a path resolver into an Opener backed by os.Open.
func OpenFile(resolve func(filename string) (string, error)) Opener {
	return func(filename string) (io.ReadCloser, error) {
		path, err := resolve(filename)
		if err != nil {
			return nil, err
		}
		return os.Open(path)
	}
}

// Serve answers a GET_FILE request for filename on w. It returns the number
// of file bytes written and common.ErrFileNotFound if open failed.
// The caller closes the connection afterwards to signal end of file.
func Serve(w io.Writer, filename string, open Opener, bufSize int) (int64, error) {
	src, err := open(filename)
	if err != nil {
		if _, werr := io.WriteString(w, StatusNotFound); werr != nil {
			return 0, fmt.Errorf("%w: %w", common.ErrUnavailable, werr)
		}
		return 0, fmt.Errorf("%w: %s", common.ErrFileNotFound, filename)
	}
	defer src.Close()

	if _, err := io.WriteString(w, StatusFound); err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	n, err := io.CopyBuffer(w, src, make([]byte, bufferSize(bufSize)))
	if err != nil {
		return n, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	return n, nil
}

// ReadStatus consumes exactly the status token from r, so any file bytes
// sent in the same segment stay in the stream.
func ReadStatus(r io.Reader) (bool, error) {
	head := make([]byte, len(StatusFound))
	if _, err := io.ReadFull(r, head); err != nil {
		return false, fmt.Errorf("%w: short status: %w", common.ErrProtocol, err)
	}
	if string(head) == StatusFound {
		return true, nil
	}
	if string(head) != StatusNotFound[:len(head)] {
		return false, fmt.Errorf("%w: unexpected status %q", common.ErrProtocol, head)
	}

	tail := make([]byte, len(StatusNotFound)-len(head))
	if _, err := io.ReadFull(r, tail); err != nil || string(tail) != StatusNotFound[len(head):] {
		return false, fmt.Errorf("%w: unexpected status %q", common.ErrProtocol, string(head)+string(tail))
	}
	return false, nil
}

// Fetch sends a GET_FILE request for filename over conn and streams the
// answer into dstPath. dstPath is only created once the peer reports
// FILE_FOUND; a stream that breaks midway leaves the partial file behind.
// It returns common.ErrFileNotFound when the peer does not have the file.
func Fetch(ctx context.Context, conn net.Conn, filename, dstPath string, bufSize int) (int64, error) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := io.WriteString(conn, Request(filename)); err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}

	found, err := ReadStatus(conn)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", common.ErrFileNotFound, filename)
	}

	f, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := io.CopyBuffer(f, conn, make([]byte, bufferSize(bufSize)))
	if err != nil && !errors.Is(err, io.EOF) {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, fmt.Errorf("%w: transfer interrupted after %d bytes: %w", common.ErrUnavailable, n, err)
	}
	return n, nil
}

func bufferSize(n int) int {
	if n <= 0 {
		return DefaultBufferSize
	}
	return n
}
