package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"medrx/internal/rx"
)

// testMagic marks data sealed by TestEncryptor.
var testMagic = []byte("RXTEST\x00\x01")

// errNotSealed is returned when data lacks the test header.
var errNotSealed = errors.New("data was not sealed by the test encryptor")

// TestEncryptor is a deterministic, reversible stand-in for age. It prefixes
// data with a fixed header and checks for it on decrypt, so tests can tell
// sealed files from plain ones without any key material.
type TestEncryptor struct {
	setupCalled bool
}

var _ rx.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, io.MultiReader(bytes.NewReader(testMagic), r)); err != nil {
		return fmt.Errorf("sealing data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(string) (rx.DecryptionContext, error) {
	return testDecrypter{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

type testDecrypter struct{}

func (testDecrypter) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, header); err != nil || !bytes.Equal(header, testMagic) {
		return errNotSealed
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("opening data: %w", err)
	}
	return nil
}
