package sharing

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/peershare/internal/common"
	"github.com/dmitrijs2005/peershare/internal/cryptox"
	"github.com/dmitrijs2005/peershare/internal/logging"
)

// DecryptedPrefix is prepended to the downloaded file name for the
// recovered plaintext.
const DecryptedPrefix = "decrypted_"

// OpenResult reports what happened to a downloaded file.
type OpenResult struct {
	// Encrypted is false when there was no decryption metadata.
	Encrypted bool
	// DecryptedPath is empty when no plaintext could be recovered.
	DecryptedPath string
	// Verified is true when the plaintext hash matches the entry.
	Verified bool
}

// Open decrypts the ciphertext at cipherPath for username and verifies it
// against entry.Hash. The plaintext is written next to the ciphertext.
//
// A missing access entry yields common.ErrNotAuthorized and a key that
// cannot be unwrapped common.ErrDecryptFailed; in both cases nothing is
// written. A hash mismatch, or a body that no longer decrypts cleanly, is
// not an error: Verified is false and a warning is logged.
func Open(ctx context.Context, log logging.Logger, entry *Entry, cipherPath, username string, priv *rsa.PrivateKey) (OpenResult, error) {
	if entry == nil || !entry.Encrypted {
		return OpenResult{}, nil
	}
	res := OpenResult{Encrypted: true}

	wrapped, err := entry.WrappedKey(username)
	if err != nil {
		return res, err
	}
	fileKey, err := cryptox.UnwrapKey(wrapped, priv)
	if err != nil {
		return res, err
	}
	defer common.WipeByteArray(fileKey)

	plaintext, err := cryptox.DecryptFile(cipherPath, fileKey)
	if err != nil {
		if errors.Is(err, common.ErrDecryptFailed) {
			log.Warn(ctx, "integrity check failed", "file", entry.Filename, "error", fmt.Errorf("%w: %w", common.ErrIntegrity, err))
			return res, nil
		}
		return res, err
	}

	out := filepath.Join(filepath.Dir(cipherPath), DecryptedPrefix+filepath.Base(cipherPath))
	if err := os.WriteFile(out, plaintext, 0o600); err != nil {
		return res, err
	}
	res.DecryptedPath = out

	// hash what landed on disk, not the buffer
	got, err := cryptox.HashFile(out)
	if err != nil {
		return res, err
	}
	if got == entry.Hash {
		res.Verified = true
	} else {
		log.Warn(ctx, "integrity check failed", "file", entry.Filename, "error", common.ErrIntegrity)
	}
	return res, nil
}
