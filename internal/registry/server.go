package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/peershare/internal/logging"
)

// DefaultReadBufferSize bounds a single request message.
const DefaultReadBufferSize = 1024

// DefaultSweepInterval is used when no sweep interval is configured.
const DefaultSweepInterval = 10 * time.Second

// connTimeout bounds how long a client may take to send its request and
// read the answer.
const connTimeout = 10 * time.Second

// Server accepts registry requests, one goroutine per connection, and runs
// the background eviction sweep.
type Server struct {
	address    string
	table      *Table
	logger     logging.Logger
	sweepEvery time.Duration
	bufSize    int

	ln net.Listener
	wg sync.WaitGroup
}

func NewServer(address string, table *Table, l logging.Logger, sweepEvery time.Duration, bufSize int) *Server {
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepInterval
	}
	return &Server{
		address:    address,
		table:      table,
		logger:     l.With("module", "registry_server"),
		sweepEvery: sweepEvery,
		bufSize:    bufSize,
	}
}

// Listen binds the server address. Run calls it when needed; tests call it
// first to learn the bound port.
func (s *Server) Listen() error {
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.address, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run serves until ctx is cancelled, then closes the listener and waits
// for in-flight connections.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep(ctx)
	}()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping registry server...")
		s.ln.Close()
	}()

	s.logger.Info(ctx, "Starting registry server", "address", s.ln.Addr().String())

	var err error
	for {
		conn, aerr := s.ln.Accept()
		if aerr != nil {
			if !errors.Is(aerr, net.ErrClosed) {
				err = aerr
				cancel()
			}
			break
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}

	s.wg.Wait()
	return err
}

func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, addr := range s.table.Evict() {
				s.logger.Info(ctx, "peer evicted", "addr", addr)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	buf := make([]byte, s.bufSize)
	n, err := conn.Read(buf)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.logger.Warn(ctx, "read request failed", "remote", conn.RemoteAddr().String(), "error", err)
		}
		return
	}

	reply, ok := s.Handle(ctx, string(buf[:n]))
	if !ok {
		return
	}
	if _, err := io.WriteString(conn, reply); err != nil {
		s.logger.Warn(ctx, "write response failed", "remote", conn.RemoteAddr().String(), "error", err)
	}
}

// Handle executes one request against the table and returns the reply.
// ok is false for malformed requests, which are dropped without a reply.
func (s *Server) Handle(ctx context.Context, msg string) (reply string, ok bool) {
	req, err := ParseRequest(msg)
	if err != nil {
		s.logger.Warn(ctx, "malformed request", "error", err)
		return "", false
	}

	switch req.Cmd {
	case CmdRegister:
		rec, isNew := s.table.Upsert(req.Addr)
		if isNew {
			s.logger.Info(ctx, "new peer registered", "addr", req.Addr, "peers", s.table.Len())
		} else {
			s.logger.Debug(ctx, "heartbeat received", "addr", req.Addr, "heartbeats", rec.Heartbeats)
		}
		return RespRegistered, true

	case CmdUnregister:
		rec, ok := s.table.Remove(req.Addr)
		if !ok {
			return RespPeerNotFound, true
		}
		s.logger.Info(ctx, "peer unregistered", "addr", req.Addr, "heartbeats", rec.Heartbeats)
		return RespUnregistered, true

	case CmdGetPeers:
		return FormatPeers(s.table.List()), true
	}

	return RespUnknownCommand, true
}
