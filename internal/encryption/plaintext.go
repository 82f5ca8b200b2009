package encryption

import (
	"fmt"
	"io"

	"medrx/internal/rx"
)

// PlaintextEncryptor leaves data unchanged, so medication files hold the bare
// wire encoding. It is the default.
type PlaintextEncryptor struct{}

var _ rx.Encryptor = (*PlaintextEncryptor)(nil)

// NewPlaintextEncryptor creates a PlaintextEncryptor.
func NewPlaintextEncryptor() *PlaintextEncryptor {
	return &PlaintextEncryptor{}
}

// Setup is a no-op: there are no keys.
func (e *PlaintextEncryptor) Setup(string) error {
	return nil
}

func (e *PlaintextEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

// Unlock ignores the passphrase.
func (e *PlaintextEncryptor) Unlock(string) (rx.DecryptionContext, error) {
	return e, nil
}

func (e *PlaintextEncryptor) IsConfigured() bool {
	return true
}

func (e *PlaintextEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	return e.Encrypt(r, w)
}
