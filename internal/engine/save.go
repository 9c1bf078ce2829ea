package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/neogan74/savekit/internal/codec"
	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/filestore"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/metrics"
	"github.com/neogan74/savekit/internal/telemetry"
	"github.com/neogan74/savekit/internal/watch"
)

// SaveResult describes a completed or partially completed save.
type SaveResult struct {
	Path    string                  `json:"path"`
	Bytes   int                     `json:"bytes"`
	Tags    []string                `json:"tags"`
	Backup  *filestore.BackupRecord `json:"backup,omitempty"`
	Written bool                    `json:"written"`
	Pushed  bool                    `json:"pushed"`
}

// Save writes doc to the configured path.
func (e *Engine) Save(ctx context.Context, doc *document.Node, createBackup bool) (SaveResult, error) {
	return e.SaveTo(ctx, e.cfg.Path, doc, createBackup)
}

// SaveTo serializes doc, compresses and encrypts it as configured and
// writes it to path, backing up the previous file when createBackup is
// set. With a mirror and PushOnSave the framed payload is then pushed.
// A failed push is reported even though the local write succeeded.
func (e *Engine) SaveTo(ctx context.Context, path string, doc *document.Node, createBackup bool) (res SaveResult, err error) {
	log := e.log.WithOperation("save")
	ctx, span := telemetry.StartSpan(ctx, e.tracer, "engine.Save", path, attribute.Bool("savekit.backup", createBackup))
	start := time.Now()
	defer func() {
		telemetry.EndSpan(span, err)
		metrics.SaveDuration.Observe(time.Since(start).Seconds())
		status := "success"
		if err != nil {
			status = "error"
			e.notify(e.event(watch.EventSaveFailed, path, err))
		}
		metrics.SaveTotal.WithLabelValues(status).Inc()
	}()

	unlock := e.lock(path)
	defer unlock()

	res.Path = path
	text, err := document.Serialize(doc)
	if err != nil {
		return res, &Error{Kind: KindEncode, Op: "save", Path: path, Err: err}
	}

	framed, err := e.codec.Encode(text)
	if err != nil {
		return res, &Error{Kind: KindEncode, Op: "save", Path: path, Err: err}
	}
	res.Bytes = len(framed)
	res.Tags = codec.Tags(framed)

	backup, err := e.store.Write(path, framed, createBackup)
	res.Backup = backup
	if err != nil {
		log.Error("Failed to write save file", logger.String("path", path), logger.Error(err))
		return res, &Error{Kind: KindIO, Op: "save", Path: path, Err: err}
	}
	res.Written = true
	metrics.PayloadBytes.WithLabelValues("write").Observe(float64(len(framed)))

	if path == e.cfg.Path {
		e.clearPending(doc)
	}

	if e.mirror != nil && e.cfg.PushOnSave {
		if err := e.mirror.PushFile(ctx, e.store, path, framed); err != nil {
			return res, &Error{Kind: KindIO, Op: "push", Path: path, Err: err}
		}
		res.Pushed = true
	}

	log.Info("Saved",
		logger.String("path", path),
		logger.Int("bytes", res.Bytes),
		logger.Strings("tags", res.Tags),
		logger.Bool("backup", backup != nil),
		logger.Bool("pushed", res.Pushed))

	ev := e.event(watch.EventSaved, path, nil)
	ev.Version = versionOf(doc)
	e.notify(ev)
	return res, nil
}

// MarkChanged records doc as the latest state to be written by Flush.
func (e *Engine) MarkChanged(doc *document.Node) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	e.pending = doc.Clone()
	e.dirty = true
}

// Dirty reports whether a change is waiting for Flush.
func (e *Engine) Dirty() bool {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	return e.dirty
}

// Flush saves the pending document, if any, and reports whether it did.
func (e *Engine) Flush(ctx context.Context) (bool, error) {
	e.pendingMu.Lock()
	doc, dirty := e.pending, e.dirty
	e.pendingMu.Unlock()
	if !dirty {
		return false, nil
	}
	if _, err := e.Save(ctx, doc, e.cfg.CreateBackup); err != nil {
		return false, err
	}
	return true, nil
}

// clearPending clears the dirty flag unless a newer change arrived.
func (e *Engine) clearPending(saved *document.Node) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	if e.pending == nil || e.pending == saved || e.pending.Equal(saved) {
		e.pending = nil
		e.dirty = false
	}
}

func versionOf(doc *document.Node) string {
	_, v, _ := document.Version(doc)
	return v
}
