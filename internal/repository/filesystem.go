package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"medrx/internal/codec"
	"medrx/internal/rx"
)

// DefaultExtension is the file extension of medication files.
const DefaultExtension = "rx"

// FileSystemRepository stores one file per medication:
//
//	<dir>/
//	  <uuid>.<ext>    (wire-encoded medication body, optionally encrypted)
//
// Writes go to a temp file in dir and are renamed into place, so readers
// never observe a partial file. No locks are taken: concurrent saves of the
// same medication resolve as last writer wins.
type FileSystemRepository struct {
	dir       string
	ext       string
	monitor   rx.DirectoryMonitor
	idgen     rx.IDGenerator
	logger    rx.Logger
	encryptor rx.Encryptor
	decrypter rx.DecryptionContext
}

// NewFileSystemRepository creates a repository rooted at dir, creating dir if
// needed. An empty ext selects DefaultExtension.
func NewFileSystemRepository(dir, ext string, monitor rx.DirectoryMonitor, idgen rx.IDGenerator, logger rx.Logger) (*FileSystemRepository, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	ext = strings.TrimPrefix(ext, ".")

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create medication directory: %w", err)
	}

	return &FileSystemRepository{
		dir:     dir,
		ext:     ext,
		monitor: monitor,
		idgen:   idgen,
		logger:  logger,
	}, nil
}

// WithEncryption seals files with enc on save and opens them with dec on load.
func (r *FileSystemRepository) WithEncryption(enc rx.Encryptor, dec rx.DecryptionContext) *FileSystemRepository {
	r.encryptor = enc
	r.decrypter = dec
	return r
}

// Dir returns the repository root.
func (r *FileSystemRepository) Dir() string {
	return r.dir
}

// Path returns the file path for a medication identity.
func (r *FileSystemRepository) Path(id uuid.UUID) string {
	return filepath.Join(r.dir, id.String()+"."+r.ext)
}

// Load lists the directory and decodes every medication file. Files that
// cannot be read or decoded are logged and skipped. Only a failure to list
// the directory is returned, wrapped in rx.ErrDirectoryAccess.
func (r *FileSystemRepository) Load(ctx context.Context) ([]rx.Medication, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", rx.ErrDirectoryAccess, r.dir, err)
	}

	meds := make([]rx.Medication, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() {
			continue
		}

		name := entry.Name()
		stem, ok := strings.CutSuffix(name, "."+r.ext)
		if !ok || strings.HasPrefix(name, ".") {
			continue
		}

		id, err := uuid.Parse(stem)
		if err != nil {
			r.logger.Warn("skipping medication file", "file", name, "error", &rx.DecodeError{File: name, Err: fmt.Errorf("invalid identifier: %w", err)})
			continue
		}

		m, err := r.readMedication(id, filepath.Join(r.dir, name))
		if err != nil {
			r.logger.Warn("skipping medication file", "file", name, "error", &rx.DecodeError{File: name, Err: err})
			continue
		}
		meds = append(meds, m)
	}

	r.logger.Debug("medications loaded", "dir", r.dir, "count", len(meds))
	return meds, nil
}

// Save encodes m and publishes it atomically at Path(m.ID), assigning an
// identity first if m has none. The returned value is marked persisted.
// Saving a medication without a name is a programming error and panics.
func (r *FileSystemRepository) Save(ctx context.Context, m rx.Medication) (rx.Medication, error) {
	if strings.TrimSpace(m.Name) == "" {
		panic("repository: cannot save a medication without a name")
	}
	if err := ctx.Err(); err != nil {
		return rx.Medication{}, &rx.SaveError{Name: m.Name, Err: err}
	}
	if !m.HasID() {
		m.ID = r.idgen.New()
	}

	data, err := codec.Marshal(m)
	if err != nil {
		return rx.Medication{}, &rx.SaveError{Name: m.Name, Err: err}
	}

	if r.encryptor != nil {
		var sealed bytes.Buffer
		if err := r.encryptor.Encrypt(bytes.NewReader(data), &sealed); err != nil {
			return rx.Medication{}, &rx.SaveError{Name: m.Name, Err: fmt.Errorf("encrypting: %w", err)}
		}
		data = sealed.Bytes()
	}

	if err := r.writeFile(r.Path(m.ID), data); err != nil {
		return rx.Medication{}, &rx.SaveError{Name: m.Name, Err: err}
	}

	m.Persisted = true
	r.logger.Debug("medication saved", "id", m.ID.String(), "path", r.Path(m.ID))
	return m, nil
}

// Delete removes the file for id. A missing file is not an error.
func (r *FileSystemRepository) Delete(_ context.Context, id uuid.UUID) error {
	if err := os.Remove(r.Path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete medication file: %w", err)
	}
	return nil
}

// Subscribe starts a feed of snapshots. A watch that cannot be established is
// reported here, once.
func (r *FileSystemRepository) Subscribe(ctx context.Context) (*rx.Subscription, error) {
	watch, err := r.monitor.Watch(r.dir)
	if err != nil {
		return nil, fmt.Errorf("watching %s: %w", r.dir, err)
	}
	return rx.NewSubscription(ctx, watch, r.Load), nil
}

// ValidateSetup verifies that the repository directory is accessible.
func (r *FileSystemRepository) ValidateSetup() error {
	info, err := os.Stat(r.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", rx.ErrDirectoryAccess, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a directory: %s", rx.ErrDirectoryAccess, r.dir)
	}
	return nil
}

// readMedication reads, decrypts and decodes one file.
func (r *FileSystemRepository) readMedication(id uuid.UUID, path string) (rx.Medication, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rx.Medication{}, fmt.Errorf("failed to read file: %w", err)
	}

	if r.decrypter != nil {
		var plain bytes.Buffer
		if err := r.decrypter.Decrypt(bytes.NewReader(data), &plain); err != nil {
			return rx.Medication{}, fmt.Errorf("decrypting: %w", err)
		}
		data = plain.Bytes()
	}

	return codec.Unmarshal(id, data)
}

// writeFile writes data to destPath using atomic write (temp file + rename).
func (r *FileSystemRepository) writeFile(destPath string, data []byte) error {
	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemRepository implements rx.Repository interface
var _ rx.Repository = (*FileSystemRepository)(nil)
