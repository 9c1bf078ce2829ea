package filestore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/metrics"
)

const (
	backupPrefix     = "Backup_"
	backupTimeLayout = "20060102_150405"

	// maxNameAttempts bounds the search for a free backup name when several
	// backups are taken within the same second.
	maxNameAttempts = 120
)

// BackupRecord describes one backup file. It is read from the filesystem
// on every listing and never cached.
type BackupRecord struct {
	FileName     string    `json:"file_name"`
	FilePath     string    `json:"file_path"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// BackupDir returns the directory holding backups of path.
func (s *Store) BackupDir(path string) string {
	if s.cfg.BackupDir != "" {
		return s.cfg.BackupDir
	}
	return filepath.Join(filepath.Dir(path), DefaultBackupDirName)
}

// BackupName returns the backup file name for path taken at t.
func BackupName(path string, t time.Time) string {
	return backupPrefix + t.Format(backupTimeLayout) + "_" + filepath.Base(path)
}

// isBackupOf reports whether name is a backup of the file called base.
func isBackupOf(name, base string) bool {
	rest, ok := strings.CutPrefix(name, backupPrefix)
	if !ok || len(rest) != len(backupTimeLayout)+1+len(base) {
		return false
	}
	stamp, tail := rest[:len(backupTimeLayout)], rest[len(backupTimeLayout):]
	if tail != "_"+base {
		return false
	}
	_, err := time.Parse(backupTimeLayout, stamp)
	return err == nil
}

// CreateBackup copies path into the backup directory and then prunes the
// oldest backups beyond MaxBackupFiles.
func (s *Store) CreateBackup(path string) (BackupRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BackupRecord{}, wrapErr("backup", path, err)
	}

	dir := s.BackupDir(path)
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return BackupRecord{}, &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	target, err := s.freeBackupPath(dir, path)
	if err != nil {
		return BackupRecord{}, err
	}
	if err := s.writeAtomic(target, data); err != nil {
		return BackupRecord{}, err
	}

	record, err := recordFor(target)
	if err != nil {
		return BackupRecord{}, err
	}
	metrics.BackupsCreatedTotal.Inc()
	s.log.Info("Backup created",
		logger.String("path", path),
		logger.String("backup", record.FilePath),
		logger.Int64("bytes", record.SizeBytes))

	if _, err := s.Rotate(path); err != nil {
		s.log.Warn("Backup rotation failed",
			logger.String("path", path),
			logger.Error(err))
	}
	return record, nil
}

func (s *Store) freeBackupPath(dir, path string) (string, error) {
	t := s.now()
	for i := 0; i < maxNameAttempts; i++ {
		candidate := filepath.Join(dir, BackupName(path, t))
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		t = t.Add(time.Second)
	}
	return "", &IOError{Op: "backup", Path: path, Err: errors.New("no free backup name")}
}

// ListBackups returns the backups of path, newest first by modification time.
func (s *Store) ListBackups(path string) ([]BackupRecord, error) {
	dir := s.BackupDir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &IOError{Op: "list", Path: dir, Err: err}
	}

	base := filepath.Base(path)
	records := make([]BackupRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !isBackupOf(entry.Name(), base) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		records = append(records, BackupRecord{
			FileName:     entry.Name(),
			FilePath:     filepath.Join(dir, entry.Name()),
			SizeBytes:    info.Size(),
			LastModified: info.ModTime(),
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].LastModified.Equal(records[j].LastModified) {
			return records[i].LastModified.After(records[j].LastModified)
		}
		return records[i].FileName > records[j].FileName
	})
	return records, nil
}

// LatestBackup returns the newest backup of path.
func (s *Store) LatestBackup(path string) (BackupRecord, bool, error) {
	records, err := s.ListBackups(path)
	if err != nil || len(records) == 0 {
		return BackupRecord{}, false, err
	}
	return records[0], true, nil
}

// Rotate deletes the oldest backups of path until at most MaxBackupFiles
// remain, and returns how many were deleted.
func (s *Store) Rotate(path string) (int, error) {
	records, err := s.ListBackups(path)
	if err != nil {
		return 0, err
	}
	excess := len(records) - s.cfg.MaxBackupFiles
	if excess <= 0 {
		return 0, nil
	}

	pruned := 0
	var firstErr error
	// records is newest first; the tail holds the oldest.
	for _, rec := range records[len(records)-excess:] {
		if err := os.Remove(rec.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			if firstErr == nil {
				firstErr = &IOError{Op: "prune", Path: rec.FilePath, Err: err}
			}
			continue
		}
		pruned++
		s.log.Debug("Pruned backup", logger.String("backup", rec.FilePath))
	}
	if pruned > 0 {
		metrics.BackupsPrunedTotal.Add(float64(pruned))
		s.log.Info("Backups rotated",
			logger.String("path", path),
			logger.Int("pruned", pruned),
			logger.Int("max_backups", s.cfg.MaxBackupFiles))
	}
	return pruned, firstErr
}

// RestoreBackup backs up the current file at path, if any, and then
// overwrites path with the content of backupPath.
func (s *Store) RestoreBackup(backupPath, path string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		metrics.BackupRestoresTotal.WithLabelValues("error").Inc()
		return wrapErr("restore", backupPath, err)
	}
	if s.Exists(path) {
		if _, err := s.CreateBackup(path); err != nil {
			metrics.BackupRestoresTotal.WithLabelValues("error").Inc()
			return err
		}
	}
	if err := s.writeAtomic(path, data); err != nil {
		metrics.BackupRestoresTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.BackupRestoresTotal.WithLabelValues("success").Inc()
	s.log.Info("Backup restored",
		logger.String("backup", backupPath),
		logger.String("path", path))
	return nil
}

func recordFor(path string) (BackupRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return BackupRecord{}, wrapErr("stat", path, err)
	}
	return BackupRecord{
		FileName:     filepath.Base(path),
		FilePath:     path,
		SizeBytes:    info.Size(),
		LastModified: info.ModTime(),
	}, nil
}
