// Package sharing owns the shared-file catalogue. Share encrypts a file
// under a fresh key and wraps that key for each recipient; Open is the
// receiving side that unwraps, decrypts and checks integrity.
package sharing

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/cryptox"
	"github.com/dmitrijs2005/peershare/internal/filex"
	"github.com/dmitrijs2005/peershare/internal/logging"
)

// KeyResolver looks up a recipient's public key.
type KeyResolver interface {
	PublicKey(username string) (*rsa.PublicKey, error)
}

// Engine implements share, list and unshare over a Manifest and the
// directory of ciphertexts.
type Engine struct {
	manifest  *Manifest
	sharedDir string
	keys      KeyResolver
	log       logging.Logger
	now       func() time.Time
}

func NewEngine(dataDir string, keys KeyResolver, log logging.Logger) (*Engine, error) {
	dir, err := filex.EnsureSubdDir(dataDir, common.SharedDirName)
	if err != nil {
		return nil, err
	}
	return &Engine{
		manifest:  NewManifest(dataDir),
		sharedDir: dir,
		keys:      keys,
		log:       log.With("module", "sharing"),
		now:       time.Now,
	}, nil
}

// Manifest exposes the underlying catalogue.
func (e *Engine) Manifest() *Manifest { return e.manifest }

// SharedPath maps a requested filename to its ciphertext path. Only bare
// file names are accepted.
func (e *Engine) SharedPath(filename string) (string, error) {
	if !ValidFilename(filename) {
		return "", fmt.Errorf("%w: %q", common.ErrFileNotFound, filename)
	}
	return filepath.Join(e.sharedDir, filename), nil
}

// ValidFilename reports whether name is a plain base name.
func ValidFilename(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

// Share hashes the plaintext at path, encrypts it under a new file key and
// wraps the key for each recipient whose public key can be resolved.
// Unresolvable recipients are skipped without error.
func (e *Engine) Share(ctx context.Context, path string, recipients []string) (Entry, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	name := filepath.Base(path)

	hash := cryptox.HashBytes(plaintext)

	fileKey := cryptox.GenerateFileKey()
	defer common.WipeByteArray(fileKey)

	ciphertext, err := cryptox.Encrypt(plaintext, fileKey)
	if err != nil {
		return Entry{}, err
	}

	access := make(map[string]string, len(recipients))
	for _, r := range recipients {
		pub, err := e.keys.PublicKey(r)
		if err != nil {
			e.log.Debug(ctx, "recipient skipped", "user", r, "error", err)
			continue
		}
		wrapped, err := cryptox.WrapKey(fileKey, pub)
		if err != nil {
			return Entry{}, fmt.Errorf("wrap key for %s: %w", r, err)
		}
		access[r] = base64.StdEncoding.EncodeToString(wrapped)
	}

	entry := Entry{
		Filename:     name,
		OriginalName: name,
		Encrypted:    true,
		SharedAt:     e.now().UTC().Truncate(time.Second),
		Hash:         hash,
		Access:       access,
	}

	dst := filepath.Join(e.sharedDir, name)
	err = e.manifest.Append(entry, func() error {
		return filex.WriteFileAtomic(dst, ciphertext, 0o600)
	})
	if err != nil {
		return Entry{}, err
	}

	e.log.Info(ctx, "file shared", "file", name, "recipients", len(access))
	return entry, nil
}

// List returns all shared entries in manifest order.
func (e *Engine) List() ([]Entry, error) {
	return e.manifest.List()
}

// Lookup returns the entry for filename or common.ErrFileNotFound.
func (e *Engine) Lookup(filename string) (Entry, error) {
	return e.manifest.Lookup(filename)
}

// Unshare removes entry index (0-based) and its ciphertext. The file is
// deleted first; if that fails the manifest is not changed. A file that is
// already gone counts as deleted.
func (e *Engine) Unshare(ctx context.Context, index int) (Entry, error) {
	entry, err := e.manifest.Remove(index, func(x Entry) error {
		path, err := e.SharedPath(x.Filename)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", x.Filename, err)
		}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}

	e.log.Info(ctx, "file unshared", "file", entry.Filename)
	return entry, nil
}
