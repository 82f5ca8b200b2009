package repository

import (
	"fmt"

	"medrx/internal/config"
	"medrx/internal/rx"
)

// NewRepositoryFromConfig creates a Repository implementation based on the
// repository config type. enc and dec may be nil for plaintext files; they are
// ignored by the memory repository.
func NewRepositoryFromConfig(cfg config.RepositoryConfig, mon rx.DirectoryMonitor, idgen rx.IDGenerator, logger rx.Logger, enc rx.Encryptor, dec rx.DecryptionContext) (rx.Repository, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryRepository(idgen), nil
	case "filesystem", "":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem repository requires dir to be set")
		}
		repo, err := NewFileSystemRepository(cfg.Dir, cfg.Extension, mon, idgen, logger)
		if err != nil {
			return nil, err
		}
		if enc != nil || dec != nil {
			repo.WithEncryption(enc, dec)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown repository type: %s", cfg.Type)
	}
}
