// Package custody protects a user's RSA private key at rest with a key
// derived from the user's password.
package custody

import (
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/cryptox"
	"github.com/dmitrijs2005/peershare/internal/filex"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2-HMAC-SHA256 work factor.
	Iterations = 200_000
	// KeyLen is the derived key length (AES-256).
	KeyLen = 32
	// SaltLen is the per-user salt length generated at registration.
	SaltLen = 16

	blobSuffix = ".key.enc"
)

// NewSalt returns a fresh random per-user salt.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltLen)
}

// DeriveKey stretches password into a symmetric key. Same inputs always give
// the same key.
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, Iterations, KeyLen, sha256.New)
}

// EncryptPrivateKey serializes priv as PKCS#8 PEM and encrypts it, returning
// IV ‖ ciphertext.
func EncryptPrivateKey(priv *rsa.PrivateKey, derivedKey []byte) ([]byte, error) {
	pemBytes, err := cryptox.MarshalPrivateKeyPEM(priv)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(pemBytes)

	blob, err := cryptox.Encrypt(pemBytes, derivedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrKeyCustody, err)
	}
	return blob, nil
}

// DecryptPrivateKey is the inverse of EncryptPrivateKey. Every failure is
// returned as an error wrapping common.ErrKeyCustody.
func DecryptPrivateKey(blob, derivedKey []byte) (*rsa.PrivateKey, error) {
	pemBytes, err := cryptox.Decrypt(blob, derivedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrKeyCustody, err)
	}
	defer common.WipeByteArray(pemBytes)

	priv, err := cryptox.ParsePrivateKeyPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrKeyCustody, err)
	}
	return priv, nil
}

// Store keeps one encrypted key blob per user under a directory.
type Store struct {
	dir string
}

// NewStore creates (if needed) the private key directory under dataDir.
func NewStore(dataDir string) (*Store, error) {
	dir, err := filex.EnsureSubdDir(dataDir, common.PrivateKeyDirName)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Path returns the blob location for username.
func (s *Store) Path(username string) string {
	return filepath.Join(s.dir, username+blobSuffix)
}

// Pending is a key blob written under a temporary name in the key
// directory. It becomes visible at Store.Path only on Commit.
type Pending struct {
	tmp  string
	path string
}

// Stage encrypts priv under derivedKey and writes it next to the final
// blob location without replacing anything there.
func (s *Store) Stage(username string, priv *rsa.PrivateKey, derivedKey []byte) (*Pending, error) {
	blob, err := EncryptPrivateKey(priv, derivedKey)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(s.dir, "."+username+blobSuffix+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("%w: stage key blob: %w", common.ErrKeyCustody, err)
	}
	if _, err := f.Write(blob); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("%w: stage key blob: %w", common.ErrKeyCustody, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("%w: stage key blob: %w", common.ErrKeyCustody, err)
	}
	return &Pending{tmp: f.Name(), path: s.Path(username)}, nil
}

// Commit moves the staged blob to its final path.
func (p *Pending) Commit() error {
	if err := os.Rename(p.tmp, p.path); err != nil {
		os.Remove(p.tmp)
		return fmt.Errorf("%w: write key blob: %w", common.ErrKeyCustody, err)
	}
	return nil
}

// Discard removes the staged blob. The final path is never touched.
func (p *Pending) Discard() error {
	err := os.Remove(p.tmp)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Load reads and decrypts the blob for username.
func (s *Store) Load(username string, derivedKey []byte) (*rsa.PrivateKey, error) {
	blob, err := os.ReadFile(s.Path(username))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no key blob for %q", common.ErrKeyCustody, username)
		}
		return nil, fmt.Errorf("%w: read key blob: %w", common.ErrKeyCustody, err)
	}
	return DecryptPrivateKey(blob, derivedKey)
}
