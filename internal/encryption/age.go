package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"photosync/internal/photosync"
)

// ErrWrongPassphrase is returned by Open when the passphrase does not unlock
// the key file.
var ErrWrongPassphrase = errors.New("incorrect passphrase")

// AgeKeyStore implements photosync.KeyStore with a single file encrypted by
// age's scrypt passphrase recipient.
type AgeKeyStore struct {
	path       string
	workFactor int
}

var _ photosync.KeyStore = (*AgeKeyStore)(nil)

// AgeOption configures an AgeKeyStore.
type AgeOption func(*AgeKeyStore)

// WithWorkFactor sets the scrypt work factor (log2 of N) used by Seal.
// Lower values make tests fast; 0 keeps age's default.
func WithWorkFactor(logN int) AgeOption {
	return func(s *AgeKeyStore) {
		s.workFactor = logN
	}
}

// NewAgeKeyStore creates a key store backed by the file at path.
func NewAgeKeyStore(path string, opts ...AgeOption) *AgeKeyStore {
	s := &AgeKeyStore{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the location of the key file.
func (s *AgeKeyStore) Path() string {
	return s.path
}

// Seal encrypts the secret with the passphrase and writes it owner-only.
// The file is replaced atomically so a failed write keeps the old key.
func (s *AgeKeyStore) Seal(secret, passphrase string) error {
	if secret == "" {
		return fmt.Errorf("secret must not be empty")
	}
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if s.workFactor > 0 {
		recipient.SetWorkFactor(s.workFactor)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, secret+"\n"); err != nil {
		return fmt.Errorf("writing encrypted key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted key: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".key-*")
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing key file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("setting key file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing key file: %w", err)
	}
	return nil
}

// Open decrypts the key file with the passphrase.
func (s *AgeKeyStore) Open(passphrase string) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("reading key file: %w", err)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return "", fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return "", ErrWrongPassphrase
		}
		return "", fmt.Errorf("decrypting key file: %w", err)
	}

	plain, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading decrypted key: %w", err)
	}

	secret := strings.TrimSpace(string(plain))
	if secret == "" {
		return "", fmt.Errorf("key file %s holds an empty key", s.path)
	}
	return secret, nil
}

// IsConfigured returns true if the key file exists.
func (s *AgeKeyStore) IsConfigured() bool {
	_, err := os.Stat(s.path)
	return err == nil
}
