package encryption

import (
	"fmt"

	"medrx/internal/config"
	"medrx/internal/rx"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (rx.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return NewPlaintextEncryptor(), nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
