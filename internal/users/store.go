package users

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/cryptox"
	"github.com/dmitrijs2005/peershare/internal/filex"
)

// Store is the JSON user database: a map of username to UserRecord.
// The file is re-read on every call so that several peer processes sharing
// a data directory see each other's registrations.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a Store backed by <dataDir>/userData.json.
func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, common.UserStoreFileName)}
}

func (s *Store) load() (map[string]UserRecord, error) {
	m := map[string]UserRecord{}
	if _, err := filex.ReadJSON(s.path, &m); err != nil {
		return nil, fmt.Errorf("load user store: %w", err)
	}
	return m, nil
}

// Get returns the record for username or common.ErrUserNotFound.
func (s *Store) Get(username string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return UserRecord{}, err
	}
	rec, ok := m[username]
	if !ok {
		return UserRecord{}, common.ErrUserNotFound
	}
	return rec, nil
}

// Create inserts a new record. It fails with common.ErrUserExists if the
// username is taken.
func (s *Store) Create(username string, rec UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[username]; ok {
		return common.ErrUserExists
	}
	m[username] = rec
	return filex.WriteJSON(s.path, m)
}

// Delete removes the record for username. A missing record is not an error.
func (s *Store) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[username]; !ok {
		return nil
	}
	delete(m, username)
	return filex.WriteJSON(s.path, m)
}

// Exists reports whether username is registered.
func (s *Store) Exists(username string) (bool, error) {
	_, err := s.Get(username)
	if errors.Is(err, common.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Usernames returns all registered usernames, sorted.
func (s *Store) Usernames() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// PublicKey resolves username to its RSA public key. It is used by the
// sharing engine to wrap file keys.
func (s *Store) PublicKey(username string) (*rsa.PublicKey, error) {
	rec, err := s.Get(username)
	if err != nil {
		return nil, err
	}
	return cryptox.ParsePublicKeyPEM([]byte(rec.PublicKey))
}
