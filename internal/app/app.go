// Package app is the composition root: it builds every component from the
// configuration in dependency order and tears them down in reverse.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neogan74/savekit/internal/cloud"
	"github.com/neogan74/savekit/internal/codec"
	"github.com/neogan74/savekit/internal/config"
	"github.com/neogan74/savekit/internal/engine"
	"github.com/neogan74/savekit/internal/filestore"
	"github.com/neogan74/savekit/internal/handlers"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/metrics"
	"github.com/neogan74/savekit/internal/middleware"
	"github.com/neogan74/savekit/internal/persistence"
	"github.com/neogan74/savekit/internal/schema"
	"github.com/neogan74/savekit/internal/telemetry"
	"github.com/neogan74/savekit/internal/watch"
)

const shutdownTimeout = 5 * time.Second

// Builder wires savekit application dependencies.
type Builder struct {
	cfg            *config.Config
	version        string
	logger         logger.Logger
	tracerProvider *telemetry.TracerProvider
	codec          *codec.Codec
	store          *filestore.Store
	slot           persistence.Engine
	mirror         *cloud.Mirror
	registry       *schema.Registry
	watch          *watch.Manager
	engine         *engine.Engine
	fiberApp       *fiber.App
	closers        []func()
}

// NewBuilder creates a new application builder. The configuration is
// cloned so later changes by the caller do not reach the built app.
func NewBuilder(cfg *config.Config, version string) *Builder {
	return &Builder{cfg: cfg.Clone(), version: version}
}

// WithLogger makes Build use log instead of one built from the
// configuration.
func (b *Builder) WithLogger(log logger.Logger) *Builder {
	b.logger = log
	return b
}

// Build assembles the application components.
func (b *Builder) Build(ctx context.Context) (*App, error) {
	b.initLogger()
	b.recordStartupMetrics()
	b.initTracing(ctx)
	b.initCodec()
	b.initStore()

	if err := b.initMirror(ctx); err != nil {
		b.cleanupOnError()
		return nil, err
	}

	if err := b.initRegistry(); err != nil {
		b.cleanupOnError()
		return nil, err
	}

	b.initWatch()
	b.initEngine()
	b.initFiber()

	return &App{
		cfg:      b.cfg,
		version:  b.version,
		logger:   b.logger,
		engine:   b.engine,
		registry: b.registry,
		watch:    b.watch,
		slot:     b.slot,
		fiberApp: b.fiberApp,
		closers:  b.closers,
	}, nil
}

func (b *Builder) initLogger() {
	if b.logger == nil {
		b.logger = logger.NewFromConfig(b.cfg.Log.Level, b.cfg.Log.Format)
	}
	logger.SetDefault(b.logger)
	b.addCloser(func() { _ = b.logger.Sync() })
}

func (b *Builder) recordStartupMetrics() {
	metrics.BuildInfo.WithLabelValues(b.version, runtime.Version()).Set(1)

	b.logger.Info("Starting savekit",
		logger.String("version", b.version),
		logger.String("save_path", b.cfg.Save.Path),
		logger.String("log_level", b.cfg.Log.Level),
		logger.Bool("compression", b.cfg.Codec.Compression),
		logger.Bool("encryption", b.cfg.Codec.Encryption),
		logger.Bool("cloud_enabled", b.cfg.Cloud.Enabled),
		logger.String("cloud_backend", b.cfg.Cloud.Backend))
}

func (b *Builder) initTracing(ctx context.Context) {
	tracingCfg := telemetry.TracingConfig{
		Enabled:        b.cfg.Tracing.Enabled,
		Endpoint:       b.cfg.Tracing.Endpoint,
		ServiceName:    b.cfg.Tracing.ServiceName,
		ServiceVersion: b.cfg.Tracing.ServiceVersion,
		Environment:    b.cfg.Tracing.Environment,
		SamplingRatio:  b.cfg.Tracing.SamplingRatio,
		InsecureConn:   b.cfg.Tracing.InsecureConn,
	}

	provider, err := telemetry.InitTracing(ctx, tracingCfg)
	if err != nil {
		b.logger.Error("Failed to initialize tracing", logger.Error(err))
		return
	}

	if b.cfg.Tracing.Enabled {
		b.logger.Info("OpenTelemetry tracing initialized",
			logger.String("endpoint", b.cfg.Tracing.Endpoint),
			logger.String("service_name", b.cfg.Tracing.ServiceName))

		b.addCloser(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				b.logger.Error("Failed to shutdown tracer provider", logger.Error(err))
			}
		})
	}

	b.tracerProvider = provider
}

func (b *Builder) initCodec() {
	var key []byte
	if b.cfg.Codec.Encryption {
		parsed, err := codec.ParseKey(b.cfg.Codec.Key)
		if err != nil {
			// An unparsable key disables encryption like a short one does.
			b.logger.Warn("Encryption key could not be parsed", logger.Error(err))
		} else {
			key = parsed
		}
	}

	b.codec = codec.New(codec.Config{
		Compression:      b.cfg.Codec.Compression,
		CompressionLevel: b.cfg.Codec.CompressionLevel,
		Encryption:       b.cfg.Codec.Encryption,
		Key:              key,
		RandomIV:         b.cfg.Codec.RandomIV,
	}, b.logger)
}

func (b *Builder) initStore() {
	b.store = filestore.New(filestore.Config{
		BackupDir:      b.cfg.Save.BackupDir,
		MaxBackupFiles: b.cfg.Save.MaxBackupFiles,
		SyncWrites:     b.cfg.Save.SyncWrites,
	}, b.logger)
}

func (b *Builder) initMirror(ctx context.Context) error {
	if !b.cfg.Cloud.Enabled {
		return nil
	}

	slot, err := persistence.NewEngine(ctx, persistence.Config{
		Type:            b.cfg.Cloud.Backend,
		DataDir:         b.cfg.Cloud.DataDir,
		SyncWrites:      b.cfg.Save.SyncWrites,
		Bucket:          b.cfg.Cloud.Bucket,
		Prefix:          b.cfg.Cloud.Prefix,
		CredentialsFile: b.cfg.Cloud.CredentialsFile,
	}, b.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize remote slot: %w", err)
	}
	b.slot = slot

	b.addCloser(func() {
		if err := slot.Close(); err != nil {
			b.logger.Error("Failed to close remote slot", logger.Error(err))
		}
	})

	b.mirror = cloud.New(slot, cloud.Config{
		Key:          b.cfg.Cloud.Key,
		RetryMax:     b.cfg.Cloud.RetryMax,
		RetryInitial: b.cfg.Cloud.RetryInitial,
	}, b.logger)
	return nil
}

func (b *Builder) initRegistry() error {
	b.registry = schema.NewRegistry(b.logger)

	if b.cfg.Schema.Builtins {
		if err := schema.RegisterBuiltins(b.registry); err != nil {
			return fmt.Errorf("failed to register built-in rules: %w", err)
		}
	}

	for _, path := range b.cfg.Schema.RulesFiles {
		if err := schema.LoadRuleFile(b.registry, path); err != nil {
			return fmt.Errorf("failed to load rule file %s: %w", path, err)
		}
	}

	b.registry.Seal()
	return nil
}

func (b *Builder) initWatch() {
	b.watch = watch.NewManager(b.logger, b.cfg.Watch.BufferSize, b.cfg.Watch.MaxWatchers)
	b.addCloser(b.watch.Close)
}

func (b *Builder) initEngine() {
	opts := []engine.Option{engine.WithWatch(b.watch)}
	if b.mirror != nil {
		opts = append(opts, engine.WithMirror(b.mirror))
	}
	if b.tracerProvider != nil {
		opts = append(opts, engine.WithTracer(b.tracerProvider.Tracer()))
	}

	b.engine = engine.New(engine.Config{
		Path:                b.cfg.Save.Path,
		CreateBackup:        b.cfg.Save.CreateBackup,
		DefaultVersion:      b.cfg.Save.DefaultVersion,
		TargetVersion:       b.cfg.Save.TargetVersion,
		AutoMigrate:         b.cfg.Save.AutoMigrate,
		BackupBeforeMigrate: b.cfg.Save.BackupBeforeMigrate,
		PushOnSave:          b.cfg.Cloud.PushOnSave,
	}, b.codec, b.store, b.registry, b.logger, opts...)
}

func (b *Builder) initFiber() {
	b.fiberApp = fiber.New(fiber.Config{DisableStartupMessage: true})

	b.fiberApp.Use(middleware.RequestLogging(b.logger))
	b.fiberApp.Use(middleware.MetricsMiddleware())
	if b.cfg.Tracing.Enabled {
		b.fiberApp.Use(middleware.TracingMiddleware(b.cfg.Tracing.ServiceName))
	}

	handlers.Register(b.fiberApp,
		handlers.NewSaveHandler(b.engine, b.cfg.Save.LoadFromCloud),
		handlers.NewHealthHandler(b.engine, b.version))

	if b.cfg.Metrics.Enabled {
		b.fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}
}

func (b *Builder) addCloser(closer func()) {
	b.closers = append(b.closers, closer)
}

func (b *Builder) cleanupOnError() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// App represents a configured savekit application.
type App struct {
	cfg            *config.Config
	version        string
	logger         logger.Logger
	engine         *engine.Engine
	registry       *schema.Registry
	watch          *watch.Manager
	slot           persistence.Engine
	fiberApp       *fiber.App
	closers        []func()
	backgroundStop []func()
	shutdownOnce   sync.Once
	shutdownErr    error
}

// Engine returns the lifecycle engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// Registry returns the sealed schema registry.
func (a *App) Registry() *schema.Registry { return a.registry }

// Watch returns the event manager.
func (a *App) Watch() *watch.Manager { return a.watch }

// Slot returns the remote slot engine, or nil when cloud is disabled.
func (a *App) Slot() persistence.Engine { return a.slot }

// HTTP returns the admin HTTP application.
func (a *App) HTTP() *fiber.App { return a.fiberApp }

// Logger returns the application logger.
func (a *App) Logger() logger.Logger { return a.logger }

// Run serves the admin API and runs the background flush and sync loops
// until ctx is cancelled or the process is signalled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.startBackgroundTasks()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.fiberApp.Listen(a.cfg.Address())
	}()
	a.logger.Info("Admin server starting", logger.String("address", a.cfg.Address()))

	select {
	case err := <-serverErr:
		a.stopBackgroundTasks()
		if shutdownErr := a.Shutdown(context.Background()); shutdownErr != nil {
			a.logger.Error("Shutdown failed", logger.Error(shutdownErr))
		}
		if err != nil {
			a.logger.Error("Failed to start server", logger.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down...")
	a.stopBackgroundTasks()

	if err := a.fiberApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
		a.logger.Error("Server forced to shutdown", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.Shutdown(shutdownCtx)

	if serveErr := <-serverErr; serveErr != nil {
		return serveErr
	}
	a.logger.Info("Server exited gracefully")
	return err
}

// Shutdown flushes a pending save, destroys the session key and closes
// every component in reverse build order. Later calls return the first
// result.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		if err := a.engine.Close(ctx); err != nil {
			a.logger.Error("Failed to flush pending save", logger.Error(err))
			a.shutdownErr = err
		}
		a.runClosers()
	})
	return a.shutdownErr
}

func (a *App) startBackgroundTasks() {
	if a.cfg.Save.FlushInterval > 0 {
		a.backgroundStop = append(a.backgroundStop, a.every(a.cfg.Save.FlushInterval, a.flushPending))
	}
	if a.cfg.Cloud.Enabled && a.cfg.Cloud.SyncInterval > 0 {
		a.backgroundStop = append(a.backgroundStop, a.every(a.cfg.Cloud.SyncInterval, a.syncSlot))
	}
	if _, ok := a.slot.(slotCollector); ok && a.cfg.Cloud.GCInterval > 0 {
		a.backgroundStop = append(a.backgroundStop, a.every(a.cfg.Cloud.GCInterval, a.collectSlotGarbage))
	}
}

// slotCollector is a slot engine with a value log to compact.
type slotCollector interface {
	CollectGarbage(discardRatio float64) error
}

const slotGCDiscardRatio = 0.5

func (a *App) collectSlotGarbage(context.Context) {
	gc, ok := a.slot.(slotCollector)
	if !ok {
		return
	}
	if err := gc.CollectGarbage(slotGCDiscardRatio); err != nil {
		metrics.CloudOperationsTotal.WithLabelValues("gc", "error").Inc()
		a.logger.Warn("Remote slot garbage collection failed", logger.Error(err))
		return
	}
	metrics.CloudOperationsTotal.WithLabelValues("gc", "success").Inc()
}

func (a *App) stopBackgroundTasks() {
	for i := len(a.backgroundStop) - 1; i >= 0; i-- {
		a.backgroundStop[i]()
	}
	a.backgroundStop = nil
}

// every runs fn on a ticker until the returned stop function is called.
// stop waits for a running fn to return.
func (a *App) every(interval time.Duration, fn func(ctx context.Context)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (a *App) flushPending(ctx context.Context) {
	flushed, err := a.engine.Flush(ctx)
	switch {
	case err != nil:
		metrics.AutosaveFlushesTotal.WithLabelValues("error").Inc()
		a.logger.Error("Background flush failed", logger.Error(err))
	case flushed:
		metrics.AutosaveFlushesTotal.WithLabelValues("success").Inc()
	}
}

func (a *App) syncSlot(ctx context.Context) {
	res, err := a.engine.Sync(ctx)
	if err != nil {
		a.logger.Warn("Background sync failed", logger.Error(err))
		return
	}
	if res.Direction != cloud.DirectionNone {
		a.logger.Info("Background sync", logger.String("direction", res.Direction.String()))
	}
}

func (a *App) runClosers() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
