package sharing

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/filex"
)

// Entry describes one shared file. Hash is always the SHA-256 of the
// plaintext, and Access maps a recipient username to the base64 of the
// RSA-OAEP wrapped file key.
type Entry struct {
	Filename     string            `json:"filename"`
	OriginalName string            `json:"original_name"`
	Encrypted    bool              `json:"encrypted"`
	SharedAt     time.Time         `json:"shared_at"`
	Hash         string            `json:"hash"`
	Access       map[string]string `json:"access"`
}

// WrappedKey returns the decoded wrapped key for username, or
// common.ErrNotAuthorized if the user is not a recipient.
func (e Entry) WrappedKey(username string) ([]byte, error) {
	enc, ok := e.Access[username]
	if !ok {
		return nil, common.ErrNotAuthorized
	}
	b, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: bad wrapped key encoding: %w", common.ErrDecryptFailed, err)
	}
	return b, nil
}

// Recipients returns the usernames in Access.
func (e Entry) Recipients() []string {
	out := make([]string, 0, len(e.Access))
	for u := range e.Access {
		out = append(out, u)
	}
	return out
}

// Manifest is the persisted, append-only catalogue of shared files. Every
// read-modify-write runs under one lock, including the disk side effect
// passed in by the caller.
type Manifest struct {
	mu   sync.Mutex
	path string
}

// NewManifest returns a Manifest stored at <dataDir>/shared_manifest.json.
func NewManifest(dataDir string) *Manifest {
	return &Manifest{path: filepath.Join(dataDir, common.ManifestFileName)}
}

func (m *Manifest) load() ([]Entry, error) {
	var entries []Entry
	if _, err := filex.ReadJSON(m.path, &entries); err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	return entries, nil
}

func (m *Manifest) save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	if err := filex.WriteJSON(m.path, entries); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	return nil
}

// List returns a snapshot of all entries.
func (m *Manifest) List() ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

// Lookup finds an entry by filename.
func (m *Manifest) Lookup(filename string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.load()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Filename == filename {
			return e, nil
		}
	}
	return Entry{}, common.ErrFileNotFound
}

// Append records e and then runs write. If write fails the entry is rolled
// back, so a crash in between leaves at most an entry without a file.
func (m *Manifest) Append(e Entry, write func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.load()
	if err != nil {
		return err
	}
	for _, x := range entries {
		if x.Filename == e.Filename {
			return fmt.Errorf("%w: %s", common.ErrAlreadyShared, e.Filename)
		}
	}

	if err := m.save(append(entries, e)); err != nil {
		return err
	}
	if err := write(); err != nil {
		if rerr := m.save(entries); rerr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rerr)
		}
		return err
	}
	return nil
}

// Remove deletes entry index after remove succeeds for it. When remove
// fails the manifest is left untouched.
func (m *Manifest) Remove(index int, remove func(Entry) error) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.load()
	if err != nil {
		return Entry{}, err
	}
	if index < 0 || index >= len(entries) {
		return Entry{}, fmt.Errorf("%w: %d (have %d)", common.ErrIndexOutOfRange, index, len(entries))
	}

	e := entries[index]
	if err := remove(e); err != nil {
		return Entry{}, err
	}

	rest := append(entries[:index:index], entries[index+1:]...)
	if err := m.save(rest); err != nil {
		return Entry{}, err
	}
	return e, nil
}
