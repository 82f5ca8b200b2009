package rx

import "io"

// Encryptor seals medication files at rest.
// Encryption uses the public key only. Decryption requires a passphrase to
// unlock the private key, producing a DecryptionContext for the session.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `medrx keys init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase and returns a
	// DecryptionContext for the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the encryptor has the keys it needs.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked key in memory for the session.
type DecryptionContext interface {
	// Decrypt decrypts data read from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
