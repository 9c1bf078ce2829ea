package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/neogan74/savekit/internal/codec"
	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/filestore"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/metrics"
	"github.com/neogan74/savekit/internal/telemetry"
	"github.com/neogan74/savekit/internal/watch"
)

// Source names where a loaded document came from.
type Source string

const (
	SourceLocal   Source = "local"
	SourceCloud   Source = "cloud"
	SourceBackup  Source = "backup"
	SourceDefault Source = "default"
)

// LoadResult carries a loaded document.
type LoadResult struct {
	Document *document.Node
	Source   Source
	Version  string
	Tags     []string
	// Backup is the record the document was recovered from when Source
	// is SourceBackup.
	Backup *filestore.BackupRecord
	// DecodeError is the primary payload's failure when Source is SourceBackup.
	DecodeError error
}

// Load reads the configured path.
func (e *Engine) Load(ctx context.Context, loadFromCloudIfMissing bool) (LoadResult, error) {
	return e.LoadFrom(ctx, e.cfg.Path, loadFromCloudIfMissing)
}

// LoadFrom reads path, or the remote slot when path is missing and
// fromCloud is set, storing a fetched payload locally first. With no
// payload anywhere it returns the default document. A payload that fails
// to decode falls back to the newest backup; the primary file is left
// untouched either way.
func (e *Engine) LoadFrom(ctx context.Context, path string, fromCloud bool) (res LoadResult, err error) {
	log := e.log.WithOperation("load")
	ctx, span := telemetry.StartSpan(ctx, e.tracer, "engine.Load", path, attribute.Bool("savekit.cloud_fallback", fromCloud))
	defer func() {
		telemetry.EndSpan(span, err)
		status := "success"
		if err != nil {
			status = "error"
			e.notify(e.event(watch.EventLoadFailed, path, err))
		}
		source := string(res.Source)
		if source == "" {
			source = "none"
		}
		metrics.LoadTotal.WithLabelValues(source, status).Inc()
	}()

	unlock := e.lock(path)
	defer unlock()

	payload, source, err := e.fetch(ctx, path, fromCloud)
	if err != nil {
		return res, err
	}
	// An existing local file that is empty is a decode failure, not a
	// missing save.
	if source == "" {
		res.Document = e.defaults()
		res.Source = SourceDefault
		res.Version = versionOf(res.Document)
		log.Info("No save found, using default document", logger.String("path", path))
		e.notifyLoaded(path, res)
		return res, nil
	}
	metrics.PayloadBytes.WithLabelValues("read").Observe(float64(len(payload)))

	doc, decodeErr := e.decode(payload)
	if decodeErr == nil {
		res.Document = doc
		res.Source = source
		res.Version = versionOf(doc)
		res.Tags = codec.Tags(payload)
		e.notifyLoaded(path, res)
		return res, nil
	}

	log.Warn("Save file failed to decode, trying newest backup",
		logger.String("path", path),
		logger.Error(decodeErr))

	backup, found, err := e.store.LatestBackup(path)
	if err != nil {
		return res, &Error{Kind: KindIO, Op: "load", Path: path, Err: err}
	}
	if !found {
		return res, &Error{Kind: KindDecode, Op: "load", Path: path, Err: decodeErr}
	}

	backupPayload, err := e.store.Read(backup.FilePath)
	if err != nil {
		return res, &Error{Kind: KindIO, Op: "load", Path: backup.FilePath, Err: err}
	}
	doc, err = e.decode(backupPayload)
	if err != nil {
		log.Error("Backup failed to decode",
			logger.String("backup", backup.FilePath),
			logger.Error(err))
		return res, &Error{
			Kind: KindDecode,
			Op:   "load",
			Path: path,
			Err:  fmt.Errorf("primary: %w; backup %s: %v", decodeErr, backup.FileName, err),
		}
	}

	res.Document = doc
	res.Source = SourceBackup
	res.Version = versionOf(doc)
	res.Tags = codec.Tags(backupPayload)
	res.Backup = &backup
	res.DecodeError = decodeErr

	log.Warn("Recovered save from backup",
		logger.String("path", path),
		logger.String("backup", backup.FileName))
	ev := e.event(watch.EventRestoredFromBackup, path, decodeErr)
	ev.Version = res.Version
	ev.Source = backup.FileName
	e.notify(ev)
	return res, nil
}

func (e *Engine) fetch(ctx context.Context, path string, fromCloud bool) (string, Source, error) {
	log := e.log.WithOperation("load")
	if e.store.Exists(path) {
		payload, err := e.store.Read(path)
		if err != nil {
			return "", "", &Error{Kind: KindIO, Op: "load", Path: path, Err: err}
		}
		return payload, SourceLocal, nil
	}
	if !fromCloud || e.mirror == nil {
		return "", "", nil
	}

	payload, err := e.mirror.Pull(ctx)
	if err != nil {
		return "", "", &Error{Kind: KindIO, Op: "pull", Path: path, Err: err}
	}
	if payload == "" {
		return "", "", nil
	}
	if _, err := e.store.Write(path, payload, false); err != nil {
		return "", "", &Error{Kind: KindIO, Op: "load", Path: path, Err: err}
	}
	log.Info("Fetched save from cloud", logger.String("path", path), logger.Int("bytes", len(payload)))
	return payload, SourceCloud, nil
}

// decode strips the frame tags and parses the document.
func (e *Engine) decode(payload string) (*document.Node, error) {
	text, err := e.codec.Decode(payload)
	if err != nil {
		return nil, err
	}
	return document.Parse(text)
}

func (e *Engine) notifyLoaded(path string, res LoadResult) {
	ev := e.event(watch.EventLoaded, path, nil)
	ev.Version = res.Version
	ev.Source = string(res.Source)
	e.notify(ev)
}

// Decode strips frame tags from payload and parses it, without touching
// the file system.
func (e *Engine) Decode(payload string) (*document.Node, error) {
	doc, err := e.decode(payload)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Op: "decode", Err: err}
	}
	return doc, nil
}
