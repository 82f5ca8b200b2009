package testutil

import (
	"medrx/internal/encryption"
	"medrx/internal/rx"
)

// NewTestEncryptor creates an encryptor and its unlocked decryption context.
func NewTestEncryptor() (rx.Encryptor, rx.DecryptionContext) {
	enc := encryption.NewTestEncryptor()
	dec, _ := enc.Unlock("")
	return enc, dec
}
