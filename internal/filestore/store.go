package filestore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/neogan74/savekit/internal/logger"
)

const (
	// DefaultMaxBackupFiles is used when Config.MaxBackupFiles is not positive.
	DefaultMaxBackupFiles = 5

	// DefaultBackupDirName is the sibling directory used when Config.BackupDir is empty.
	DefaultBackupDirName = "backups"

	defaultFileMode = 0o644
	defaultDirMode  = 0o755
)

// Config holds persistence store configuration
type Config struct {
	// BackupDir receives backup copies. Empty means a "backups"
	// directory next to each save file.
	BackupDir      string
	MaxBackupFiles int
	// SyncWrites fsyncs the temporary file before it replaces the target.
	SyncWrites bool
}

// Store reads and writes save files. Every failure is returned as an
// *IOError; nothing panics across the Store boundary.
type Store struct {
	cfg Config
	log logger.Logger
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for backup names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store
func New(cfg Config, log logger.Logger, opts ...Option) *Store {
	if cfg.MaxBackupFiles <= 0 {
		cfg.MaxBackupFiles = DefaultMaxBackupFiles
	}
	if log == nil {
		log = logger.GetDefault()
	}
	s := &Store{
		cfg: cfg,
		log: log.WithFields(logger.String("component", "filestore")),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxBackupFiles returns the rotation limit.
func (s *Store) MaxBackupFiles() int {
	return s.cfg.MaxBackupFiles
}

// Write replaces path with text. When backupFirst is set and path already
// exists, the current file is copied into a backup first; the returned
// record is nil when no backup was taken.
func (s *Store) Write(path, text string, backupFirst bool) (*BackupRecord, error) {
	var record *BackupRecord
	if backupFirst && s.Exists(path) {
		rec, err := s.CreateBackup(path)
		if err != nil {
			return nil, err
		}
		record = &rec
	}
	if err := s.writeAtomic(path, []byte(text)); err != nil {
		return record, err
	}
	s.log.Debug("Save file written",
		logger.String("path", path),
		logger.Int("bytes", len(text)))
	return record, nil
}

// writeAtomic writes data to a temporary file in the target directory and
// renames it over path, so a crash leaves either the old or the new file.
func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if s.cfg.SyncWrites {
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			cleanup()
			return &IOError{Op: "sync", Path: path, Err: err}
		}
	}
	if err := tmp.Chmod(defaultFileMode); err != nil {
		_ = tmp.Close()
		cleanup()
		return &IOError{Op: "chmod", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &IOError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// Read returns the content of path.
func (s *Store) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", wrapErr("read", path, err)
	}
	return string(data), nil
}

// Exists reports whether path names an existing regular file.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Size returns the size of path in bytes.
func (s *Store) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, wrapErr("stat", path, err)
	}
	return info.Size(), nil
}

// LastModified returns the modification time of path.
func (s *Store) LastModified(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, wrapErr("stat", path, err)
	}
	return info.ModTime(), nil
}

// Touch sets the modification time of path.
func (s *Store) Touch(path string, t time.Time) error {
	if err := os.Chtimes(path, t, t); err != nil {
		return wrapErr("touch", path, err)
	}
	return nil
}

// Remove deletes path. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &IOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

func wrapErr(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &IOError{Op: op, Path: path, Err: ErrNotFound}
	}
	return &IOError{Op: op, Path: path, Err: err}
}
