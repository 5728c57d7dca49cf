package encryption

import (
	"fmt"
	"sync"

	"photosync/internal/photosync"
)

// MemoryKeyStore keeps the secret in memory. It checks the passphrase like
// the age store does but performs no cryptography. Use in tests.
type MemoryKeyStore struct {
	mu         sync.Mutex
	secret     string
	passphrase string
	opens      int
}

var _ photosync.KeyStore = (*MemoryKeyStore)(nil)

// NewMemoryKeyStore creates an empty MemoryKeyStore.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{}
}

func (s *MemoryKeyStore) Seal(secret, passphrase string) error {
	if secret == "" {
		return fmt.Errorf("secret must not be empty")
	}
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret, s.passphrase = secret, passphrase
	return nil
}

func (s *MemoryKeyStore) Open(passphrase string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.secret == "" {
		return "", fmt.Errorf("no key sealed")
	}
	if passphrase != s.passphrase {
		return "", ErrWrongPassphrase
	}
	return s.secret, nil
}

func (s *MemoryKeyStore) IsConfigured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secret != ""
}

// Opens returns how many times Open was called.
func (s *MemoryKeyStore) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}
