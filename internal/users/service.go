// Package users manages local accounts: the JSON user store, registration
// with key custody, and login sessions.
package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/cryptox"
	"github.com/dmitrijs2005/peershare/internal/custody"
	"github.com/dmitrijs2005/peershare/internal/logging"
)

// Service implements Register and Login on top of a Store and a custody
// key store.
type Service struct {
	// mu serializes registrations from the existence check to the blob commit.
	mu      sync.Mutex
	store   *Store
	keys    *custody.Store
	log     logging.Logger
	keyBits int
	now     func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithKeyBits overrides the RSA modulus size for new accounts.
func WithKeyBits(bits int) Option {
	return func(s *Service) { s.keyBits = bits }
}

func NewService(store *Store, keys *custody.Store, log logging.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		keys:    keys,
		log:     log.With("module", "users"),
		keyBits: cryptox.RSAKeySize,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store exposes the underlying user store, e.g. as a public key resolver.
func (s *Service) Store() *Store { return s.store }

// Register creates an account: a password hash, a KDF salt, a fresh RSA key
// pair whose private half is stored encrypted under the derived key.
//
// The key blob is staged under a temporary name and only moved into place
// once the record is created, so a losing duplicate registration never
// touches the winner's blob.
func (s *Service) Register(ctx context.Context, username string, password []byte) error {
	if !ValidUsername(username) {
		return common.ErrInvalidUsername
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.store.Exists(username)
	if err != nil {
		return err
	}
	if exists {
		return common.ErrUserExists
	}

	priv, err := cryptox.GenerateRSAKeyPair(s.keyBits)
	if err != nil {
		return err
	}
	pubPEM, err := cryptox.MarshalPublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return err
	}

	salt := custody.NewSalt()
	derived := custody.DeriveKey(password, salt)
	defer common.WipeByteArray(derived)

	pending, err := s.keys.Stage(username, priv, derived)
	if err != nil {
		return err
	}

	rec := UserRecord{
		PasswordHash: cryptox.HashPassword(password),
		KDFSalt:      salt,
		PublicKey:    string(pubPEM),
	}
	if err := s.store.Create(username, rec); err != nil {
		if derr := pending.Discard(); derr != nil {
			s.log.Warn(ctx, "failed to remove staged key blob", "user", username, "error", derr)
		}
		return err
	}
	if err := pending.Commit(); err != nil {
		// no record without a key blob
		if derr := s.store.Delete(username); derr != nil {
			s.log.Error(ctx, "failed to roll back user record", "user", username, "error", derr)
		}
		return err
	}

	s.log.Info(ctx, "user registered", "user", username)
	return nil
}

// Login verifies the password, derives the custody key and decrypts the
// private key into a new Session. Unknown users and wrong passwords are both
// reported as common.ErrInvalidCredentials; an unreadable key blob as
// common.ErrKeyCustody.
func (s *Service) Login(ctx context.Context, username string, password []byte) (*Session, error) {
	rec, err := s.store.Get(username)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !cryptox.VerifyPassword(rec.PasswordHash, password) {
		s.log.Warn(ctx, "login failed", "user", username)
		return nil, common.ErrInvalidCredentials
	}

	derived := custody.DeriveKey(password, rec.KDFSalt)
	priv, err := s.keys.Load(username, derived)
	if err != nil {
		common.WipeByteArray(derived)
		return nil, fmt.Errorf("load private key: %w", err)
	}

	sess := newSession(username, derived, priv, s.now)
	s.log.Info(ctx, "user logged in", "user", username)
	return sess, nil
}
