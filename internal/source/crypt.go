package source

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// Encrypted sources are framed as magic(8) + salt(16) + nonce(12) + ciphertext + tag(16).
const (
	gcmMagic     = "GCM3NCR0"
	saltSize     = 16
	nonceSize    = 12
	kdfRounds    = 100000
	keySize      = 32
	minFrameSize = len(gcmMagic) + saltSize + nonceSize + 16
)

// ErrPasswordRequired is returned for an encrypted source when no password is configured.
var ErrPasswordRequired = errors.New("source is encrypted but no password is configured")

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfRounds, keySize, sha256.New)
}

// IsEncrypted reports whether the file starts with the encryption frame magic.
func IsEncrypted(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	head := make([]byte, len(gcmMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return string(head) == gcmMagic, nil
}

// Decrypt opens a framed payload with password.
func Decrypt(data []byte, password string) ([]byte, error) {
	if len(data) < minFrameSize {
		return nil, fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}
	if !bytes.HasPrefix(data, []byte(gcmMagic)) {
		return nil, errors.New("missing encryption header")
	}
	rest := data[len(gcmMagic):]
	salt := rest[:saltSize]
	nonce := rest[saltSize : saltSize+nonceSize]
	sealed := rest[saltSize+nonceSize:]

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt source: %w", err)
	}
	return plain, nil
}

// decrypt replaces an encrypted local file by a decrypted temp copy.
// Plain files pass through untouched.
func (f *Fetcher) decrypt(local *Local) (*Local, error) {
	enc, err := IsEncrypted(local.Path)
	if err != nil {
		return nil, err
	}
	if !enc {
		return local, nil
	}
	if f.Password == "" {
		return nil, ErrPasswordRequired
	}

	data, err := os.ReadFile(local.Path)
	if err != nil {
		return nil, err
	}
	plain, err := Decrypt(data, f.Password)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(f.TempDir, TempPrefix+"*.pdf")
	if err != nil {
		return nil, err
	}
	out := &Local{Path: tmp.Name(), Temp: true}
	_, err = tmp.Write(plain)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = out.Remove()
		return nil, err
	}
	_ = local.Remove()
	log.Debug().Int("size", len(plain)).Msg("decrypted source")
	return out, nil
}
