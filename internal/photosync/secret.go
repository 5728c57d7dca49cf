package photosync

// KeyStore keeps the catalog API key sealed with a passphrase.
type KeyStore interface {
	// Seal encrypts secret with the passphrase and stores it, replacing any
	// previously sealed secret.
	Seal(secret, passphrase string) error

	// Open decrypts the stored secret. A wrong passphrase is an error.
	Open(passphrase string) (string, error)

	// IsConfigured reports whether a sealed secret exists.
	IsConfigured() bool
}
