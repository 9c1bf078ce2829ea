// Package engine is the save-data lifecycle facade: it frames documents
// through the codec, persists them with backups, mirrors them to a remote
// slot and validates and migrates them across schema versions.
//
// The engine starts no goroutines. Operations on the same path are
// serialized; operations on different paths may run concurrently.
package engine

import (
	"context"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/neogan74/savekit/internal/cloud"
	"github.com/neogan74/savekit/internal/codec"
	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/filestore"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/schema"
	"github.com/neogan74/savekit/internal/telemetry"
	"github.com/neogan74/savekit/internal/watch"
)

// Config holds lifecycle settings.
type Config struct {
	Path string
	// CreateBackup is the backup flag used by Flush.
	CreateBackup bool
	// DefaultVersion is assumed for documents without a version key.
	DefaultVersion      string
	TargetVersion       string
	AutoMigrate         bool
	BackupBeforeMigrate bool
	PushOnSave          bool
}

// Engine composes the pipeline stages. Build one with New.
type Engine struct {
	cfg      Config
	codec    *codec.Codec
	store    *filestore.Store
	registry *schema.Registry
	mirror   *cloud.Mirror
	watch    *watch.Manager
	tracer   trace.Tracer
	log      logger.Logger
	defaults func() *document.Node

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	pendingMu sync.Mutex
	pending   *document.Node
	dirty     bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithMirror enables cloud fallback, push on save and Sync.
func WithMirror(m *cloud.Mirror) Option {
	return func(e *Engine) { e.mirror = m }
}

// WithWatch publishes lifecycle events to m.
func WithWatch(m *watch.Manager) Option {
	return func(e *Engine) { e.watch = m }
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithDefaultDocument sets the factory for the document returned when no
// save exists yet.
func WithDefaultDocument(fn func() *document.Node) Option {
	return func(e *Engine) {
		if fn != nil {
			e.defaults = fn
		}
	}
}

// New creates an engine. The registry should be fully populated before
// the first operation.
func New(cfg Config, c *codec.Codec, store *filestore.Store, registry *schema.Registry, log logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.GetDefault()
	}
	if cfg.DefaultVersion == "" {
		cfg.DefaultVersion = schema.CurrentVersion
	}
	if cfg.TargetVersion == "" {
		cfg.TargetVersion = schema.CurrentVersion
	}

	e := &Engine{
		cfg:      cfg,
		codec:    c,
		store:    store,
		registry: registry,
		log:      log.WithFields(logger.String("component", "engine")),
		locks:    make(map[string]*sync.Mutex),
	}
	e.defaults = e.versionedDocument
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = telemetry.GetTracer(telemetry.DefaultServiceName)
	}
	if !registry.Sealed() {
		e.log.Warn("Schema registry used before initialization completed")
	}
	return e
}

// Path returns the configured save file path.
func (e *Engine) Path() string { return e.cfg.Path }

// Registry returns the schema registry.
func (e *Engine) Registry() *schema.Registry { return e.registry }

func (e *Engine) versionedDocument() *document.Node {
	doc := document.NewObject()
	document.SetVersion(doc, e.cfg.TargetVersion)
	return doc
}

// lock serializes operations on path.
func (e *Engine) lock(path string) func() {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}

	e.locksMu.Lock()
	mu, ok := e.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[key] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (e *Engine) notify(ev watch.Event) {
	if e.watch != nil {
		e.watch.Notify(ev)
	}
}

func (e *Engine) event(t watch.EventType, path string, err error) watch.Event {
	ev := watch.NewEvent(t, path)
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Close flushes a pending document and destroys the session key.
func (e *Engine) Close(ctx context.Context) error {
	_, err := e.Flush(ctx)
	e.codec.Close()
	return err
}
