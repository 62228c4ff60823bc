// Package cryptox is the hybrid crypto engine: AES-256-CBC for bulk data,
// RSA-OAEP(SHA-256) for wrapping per-file keys, SHA-256 for integrity and
// argon2id for password verification.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/peershare/internal/common"
)

const (
	// BlockSize is the AES block size; the IV has the same length.
	BlockSize = aes.BlockSize
	// KeySize selects AES-256.
	KeySize = 32
)

// ErrInvalidPadding is returned when the trailing pad bytes are inconsistent,
// which in practice means a wrong key or a modified ciphertext.
var ErrInvalidPadding = errors.New("invalid padding")

// GenerateFileKey returns a fresh uniformly random AES-256 key.
// A new key is drawn for every shared file.
func GenerateFileKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// Pad appends n bytes of value n so len(data)+n is a multiple of BlockSize.
// A full block is appended when data is already aligned.
func Pad(data []byte) []byte {
	n := BlockSize - len(data)%BlockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

// Unpad strips and validates the padding added by Pad.
func Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%BlockSize != 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > BlockSize {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}

// Encrypt returns IV ‖ AES-CBC(Pad(plaintext)) with a random IV.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := Pad(append([]byte(nil), plaintext...))
	out := make([]byte, BlockSize+len(padded))
	iv := out[:BlockSize]
	copy(iv, common.GenerateRandByteArray(BlockSize))

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[BlockSize:], padded)
	return out, nil
}

// Decrypt reverses Encrypt. It never returns partial plaintext: any failure
// yields nil and an error matching common.ErrDecryptFailed.
func Decrypt(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDecryptFailed, err)
	}
	if len(data) < 2*BlockSize || len(data)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext has invalid length %d", common.ErrDecryptFailed, len(data))
	}

	iv, body := data[:BlockSize], data[BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	out, err := Unpad(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDecryptFailed, err)
	}
	return out, nil
}

// EncryptFile reads the plaintext at path and returns its ciphertext.
func EncryptFile(path string, key []byte) ([]byte, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Encrypt(plaintext, key)
}

// DecryptFile reads the ciphertext at path and returns the plaintext.
func DecryptFile(path string, key []byte) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decrypt(data, key)
}
