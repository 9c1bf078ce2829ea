package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/neogan74/savekit/internal/cloud"
	"github.com/neogan74/savekit/internal/codec"
	"github.com/neogan74/savekit/internal/filestore"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/telemetry"
	"github.com/neogan74/savekit/internal/watch"
)

// Sync reconciles the configured path with the remote slot.
func (e *Engine) Sync(ctx context.Context) (res cloud.SyncResult, err error) {
	log := e.log.WithOperation("sync")
	path := e.cfg.Path
	ctx, span := telemetry.StartSpan(ctx, e.tracer, "engine.Sync", path)
	defer func() { telemetry.EndSpan(span, err) }()

	if e.mirror == nil {
		return res, &Error{Kind: KindIO, Op: "sync", Path: path, Err: ErrNoMirror}
	}

	unlock := e.lock(path)
	defer unlock()

	res, err = e.mirror.Sync(ctx, e.store, path)
	if err != nil {
		log.Warn("Sync failed", logger.String("path", path), logger.Error(err))
		return res, &Error{Kind: KindIO, Op: "sync", Path: path, Err: err}
	}

	ev := e.event(watch.EventSynced, path, nil)
	ev.Source = res.Direction.String()
	e.notify(ev)
	return res, nil
}

// ListBackups returns the backups of the configured path, newest first.
func (e *Engine) ListBackups() ([]filestore.BackupRecord, error) {
	records, err := e.store.ListBackups(e.cfg.Path)
	if err != nil {
		return nil, &Error{Kind: KindIO, Op: "list_backups", Path: e.cfg.Path, Err: err}
	}
	return records, nil
}

// RestoreBackup replaces the configured path with a backup, after backing
// up the current file. backup may be a file name inside the backup
// directory or a path.
func (e *Engine) RestoreBackup(ctx context.Context, backup string) (err error) {
	path := e.cfg.Path
	_, span := telemetry.StartSpan(ctx, e.tracer, "engine.RestoreBackup", path)
	defer func() { telemetry.EndSpan(span, err) }()

	backupPath := backup
	if !strings.ContainsRune(backup, filepath.Separator) && !strings.Contains(backup, "/") {
		backupPath = filepath.Join(e.store.BackupDir(path), backup)
	}

	unlock := e.lock(path)
	defer unlock()

	if err := e.store.RestoreBackup(backupPath, path); err != nil {
		e.notify(e.event(watch.EventLoadFailed, path, err))
		return &Error{Kind: KindIO, Op: "restore", Path: backupPath, Err: err}
	}

	ev := e.event(watch.EventBackupRestored, path, nil)
	ev.Source = filepath.Base(backupPath)
	e.notify(ev)
	return nil
}

// Info describes the framed payload on disk.
type Info struct {
	Path    string   `json:"path"`
	Exists  bool     `json:"exists"`
	Size    int64    `json:"size"`
	Tags    []string `json:"tags"`
	Backups int      `json:"backups"`
}

// Inspect reports the frame tags and size of the configured path.
func (e *Engine) Inspect() (Info, error) {
	info := Info{Path: e.cfg.Path}
	if !e.store.Exists(info.Path) {
		return info, nil
	}
	info.Exists = true

	payload, err := e.store.Read(info.Path)
	if err != nil {
		return info, &Error{Kind: KindIO, Op: "inspect", Path: info.Path, Err: err}
	}
	info.Size = int64(len(payload))
	info.Tags = tagsOf(payload)

	backups, err := e.store.ListBackups(info.Path)
	if err != nil {
		return info, &Error{Kind: KindIO, Op: "inspect", Path: info.Path, Err: err}
	}
	info.Backups = len(backups)
	return info, nil
}

func tagsOf(payload string) []string {
	if tags := codec.Tags(payload); len(tags) > 0 {
		return tags
	}
	return []string{"plain"}
}

func (i Info) String() string {
	return fmt.Sprintf("%s exists=%t size=%d tags=%s backups=%d",
		i.Path, i.Exists, i.Size, strings.Join(i.Tags, ","), i.Backups)
}
