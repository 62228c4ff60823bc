package users

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
)

// Session is a logged-in user. It is the only place where the derived key
// and the decrypted private key live, and neither is ever printed.
type Session struct {
	mu         sync.Mutex
	username   string
	loginTime  time.Time
	lastActive time.Time
	derivedKey []byte
	privateKey *rsa.PrivateKey
	closed     bool
	now        func() time.Time
}

func newSession(username string, derivedKey []byte, priv *rsa.PrivateKey, now func() time.Time) *Session {
	t := now()
	return &Session{
		username:   username,
		loginTime:  t,
		lastActive: t,
		derivedKey: derivedKey,
		privateKey: priv,
		now:        now,
	}
}

// Username returns the session owner.
func (s *Session) Username() string { return s.username }

// Touch records user activity.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.lastActive = s.now()
	}
}

// ActiveFor is the time elapsed since login.
func (s *Session) ActiveFor() time.Duration {
	return s.now().Sub(s.loginTime)
}

// Idle is the time elapsed since the last Touch.
func (s *Session) Idle() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.lastActive)
}

// Expired reports whether the session has been idle longer than timeout.
// A closed session is always expired.
func (s *Session) Expired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.now().Sub(s.lastActive) > timeout
}

// PrivateKey returns the in-memory identity key, or common.ErrSessionClosed.
func (s *Session) PrivateKey() (*rsa.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, common.ErrSessionClosed
	}
	return s.privateKey, nil
}

// Close discards the key material. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	common.WipeByteArray(s.derivedKey)
	s.derivedKey = nil
	s.privateKey = nil
	s.closed = true
}

// String shows only non-secret fields.
func (s *Session) String() string {
	return fmt.Sprintf("Session(username=%s, active_for=%ds)", s.username, int(s.ActiveFor().Seconds()))
}

// WatchSession polls s every interval and calls onExpire once when it has
// been idle longer than timeout. It returns when ctx is done or after
// onExpire returns.
func WatchSession(ctx context.Context, s *Session, timeout, interval time.Duration, onExpire func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Expired(timeout) {
				onExpire()
				return
			}
		}
	}
}
