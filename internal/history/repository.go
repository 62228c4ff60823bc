package history

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/peershare/internal/dbx"
)

// fixed width so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// PeerRepository persists accepted connections.
type PeerRepository interface {
	Insert(ctx context.Context, p AcceptedPeer) error
	List(ctx context.Context, limit int) ([]AcceptedPeer, error)
	Clear(ctx context.Context) error
}

// TransferRepository persists finished downloads.
type TransferRepository interface {
	Insert(ctx context.Context, t Transfer) error
	List(ctx context.Context, limit int) ([]Transfer, error)
	Clear(ctx context.Context) error
}

type SQLitePeerRepository struct {
	db dbx.DBTX
}

func NewSQLitePeerRepository(db dbx.DBTX) *SQLitePeerRepository {
	return &SQLitePeerRepository{db: db}
}

func (r *SQLitePeerRepository) Insert(ctx context.Context, p AcceptedPeer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accepted_peers (id, peer_addr, username, direction, accepted_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.PeerAddr, p.Username, p.Direction, p.AcceptedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert accepted peer %s: %w", p.PeerAddr, err)
	}
	return nil
}

// List returns the newest limit rows first.
func (r *SQLitePeerRepository) List(ctx context.Context, limit int) ([]AcceptedPeer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, peer_addr, username, direction, accepted_at
		FROM accepted_peers ORDER BY accepted_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list accepted peers: %w", err)
	}
	defer rows.Close()

	var out []AcceptedPeer
	for rows.Next() {
		var p AcceptedPeer
		var at string
		if err := rows.Scan(&p.ID, &p.PeerAddr, &p.Username, &p.Direction, &at); err != nil {
			return nil, fmt.Errorf("failed to scan accepted peer row: %w", err)
		}
		if p.AcceptedAt, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("failed to parse accepted_at %q: %w", at, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accepted peer rows: %w", err)
	}
	return out, nil
}

func (r *SQLitePeerRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM accepted_peers`); err != nil {
		return fmt.Errorf("failed to clear accepted peers: %w", err)
	}
	return nil
}

type SQLiteTransferRepository struct {
	db dbx.DBTX
}

func NewSQLiteTransferRepository(db dbx.DBTX) *SQLiteTransferRepository {
	return &SQLiteTransferRepository{db: db}
}

func (r *SQLiteTransferRepository) Insert(ctx context.Context, t Transfer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transfers (id, peer_addr, filename, bytes, status, verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.PeerAddr, t.Filename, t.Bytes, t.Status, t.Verified, t.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert transfer %s: %w", t.Filename, err)
	}
	return nil
}

// List returns the newest limit rows first.
func (r *SQLiteTransferRepository) List(ctx context.Context, limit int) ([]Transfer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, peer_addr, filename, bytes, status, verified, created_at
		FROM transfers ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var t Transfer
		var at string
		if err := rows.Scan(&t.ID, &t.PeerAddr, &t.Filename, &t.Bytes, &t.Status, &t.Verified, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}
		if t.CreatedAt, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("failed to parse created_at %q: %w", at, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfer rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteTransferRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transfers`); err != nil {
		return fmt.Errorf("failed to clear transfers: %w", err)
	}
	return nil
}
