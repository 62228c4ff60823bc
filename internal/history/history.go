// Package history is the peer's local sqlite log of accepted connections and
// downloads. It is informational only; nothing in the protocol reads it back.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/peershare/internal/dbx"
	"github.com/dmitrijs2005/peershare/internal/history/migrations"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Store owns the history database.
type Store struct {
	db        *sql.DB
	peers     PeerRepository
	transfers TransferRepository
	now       func() time.Time
}

// Open opens (creating if needed) the sqlite database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; serialize at the pool
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return NewStore(db), nil
}

// NewStore wraps an already migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:        db,
		peers:     NewSQLitePeerRepository(db),
		transfers: NewSQLiteTransferRepository(db),
		now:       time.Now,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PeerAccepted records an accepted connection.
func (s *Store) PeerAccepted(ctx context.Context, addr, username, direction string) error {
	return s.peers.Insert(ctx, AcceptedPeer{
		ID:         uuid.NewString(),
		PeerAddr:   addr,
		Username:   username,
		Direction:  direction,
		AcceptedAt: s.now(),
	})
}

// TransferFinished records the outcome of a download.
func (s *Store) TransferFinished(ctx context.Context, addr, filename string, n int64, status string, verified bool) error {
	return s.transfers.Insert(ctx, Transfer{
		ID:        uuid.NewString(),
		PeerAddr:  addr,
		Filename:  filename,
		Bytes:     n,
		Status:    status,
		Verified:  verified,
		CreatedAt: s.now(),
	})
}

// Recent returns up to limit of the newest rows of each kind.
func (s *Store) Recent(ctx context.Context, limit int) ([]AcceptedPeer, []Transfer, error) {
	peers, err := s.peers.List(ctx, limit)
	if err != nil {
		return nil, nil, err
	}
	transfers, err := s.transfers.List(ctx, limit)
	if err != nil {
		return nil, nil, err
	}
	return peers, transfers, nil
}

// Clear wipes both tables in one transaction.
func (s *Store) Clear(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := NewSQLitePeerRepository(tx).Clear(ctx); err != nil {
			return err
		}
		return NewSQLiteTransferRepository(tx).Clear(ctx)
	})
}
