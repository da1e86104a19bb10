package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"notegraph/backend/internal/constants"
	"notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

// EntityRepository loads and saves the entity record
type EntityRepository interface {
	LoadEntities(ctx context.Context) (*EntityRecord, error)
	SaveEntities(ctx context.Context, rec *EntityRecord) error
}

// LinkRepository loads and saves the manual-link record
type LinkRepository interface {
	LoadLinks(ctx context.Context) (*LinkRecord, error)
	SaveLinks(ctx context.Context, rec *LinkRecord) error
}

// FileStore keeps both records as JSON files on an afero filesystem.
//
// Consistency contract: one writer at a time per process (mutex), and
// optimistic versioning across processes. A save succeeds only if the record on
// disk still carries the version the writer loaded; otherwise it fails with
// ErrStoreConflict and the caller must reload.
type FileStore struct {
	fs     afero.Fs
	dir    string
	mu     sync.Mutex
	now    func() time.Time
	logger *zap.Logger
}

// NewFileStore creates a store rooted at dir.
// Use afero.NewOsFs() in production or afero.NewMemMapFs() for tests.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	return &FileStore{
		fs:     fs,
		dir:    dir,
		now:    time.Now,
		logger: logger.Named("store"),
	}
}

// NewOsFileStore creates a store on the operating system filesystem
func NewOsFileStore(dir string) *FileStore {
	return NewFileStore(afero.NewOsFs(), dir)
}

func (s *FileStore) entityPath() string {
	return filepath.Join(s.dir, constants.EntityRecordFile)
}

func (s *FileStore) linkPath() string {
	return filepath.Join(s.dir, constants.LinkRecordFile)
}

// LoadEntities reads the entity record; a missing file is an empty record
func (s *FileStore) LoadEntities(ctx context.Context) (*EntityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewContextCancelled("load entities", err)
	}
	rec := NewEntityRecord()
	found, err := s.read(s.entityPath(), rec)
	if err != nil {
		return nil, err
	}
	rec.normalize()
	if found {
		s.logger.Debug("Entity record loaded",
			zap.Int64("version", rec.Version),
			zap.Int("entities", len(rec.Entities)),
			zap.Int("relationships", len(rec.Relationships)),
		)
	}
	return rec, nil
}

// SaveEntities writes the entity record and bumps its version
func (s *FileStore) SaveEntities(ctx context.Context, rec *EntityRecord) error {
	if err := ctx.Err(); err != nil {
		return errors.NewContextCancelled("save entities", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeVersioned(s.entityPath(), "entities", &rec.Version, &rec.LastUpdated, rec)
}

// LoadLinks reads the link record; a missing file is an empty record
func (s *FileStore) LoadLinks(ctx context.Context) (*LinkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewContextCancelled("load links", err)
	}
	rec := NewLinkRecord()
	if _, err := s.read(s.linkPath(), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveLinks writes the link record and bumps its version
func (s *FileStore) SaveLinks(ctx context.Context, rec *LinkRecord) error {
	if err := ctx.Err(); err != nil {
		return errors.NewContextCancelled("save links", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeVersioned(s.linkPath(), "links", &rec.Version, &rec.LastUpdated, rec)
}

func (s *FileStore) read(path string, into any) (bool, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.NewStoreIO(path, "read", err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return false, errors.NewStoreIO(path, "decode", err)
	}
	return true, nil
}

// diskVersion reads only the version field of a stored record
func (s *FileStore) diskVersion(path string) (int64, error) {
	var header struct {
		Version int64 `json:"version"`
	}
	if _, err := s.read(path, &header); err != nil {
		return 0, err
	}
	return header.Version, nil
}

func (s *FileStore) writeVersioned(path, name string, version *int64, updated *time.Time, rec any) error {
	current, err := s.diskVersion(path)
	if err != nil {
		return err
	}
	if current != *version {
		return errors.NewStoreConflict(name, *version, current)
	}

	prevVersion, prevUpdated := *version, *updated
	*version = current + 1
	*updated = s.now().UTC()

	if err := s.write(path, rec); err != nil {
		*version, *updated = prevVersion, prevUpdated
		return err
	}

	s.logger.Debug("Record saved",
		zap.String("record", name),
		zap.Int64("version", *version),
	)
	return nil
}

// write replaces the file atomically through a temp file and rename
func (s *FileStore) write(path string, rec any) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.NewStoreIO(path, "encode", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewStoreIO(path, "create directory for", err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return errors.NewStoreIO(tmp, "write", err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return errors.NewStoreIO(path, "replace", err)
	}
	return nil
}
