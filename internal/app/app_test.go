package app

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neogan74/savekit/internal/codec"
	"github.com/neogan74/savekit/internal/config"
	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/metrics"
	"github.com/neogan74/savekit/internal/watch"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Log:    config.LogConfig{Level: "error", Format: "text"},
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8787},
		Save: config.SaveConfig{
			Path:                filepath.Join(dir, "progress.sav"),
			MaxBackupFiles:      3,
			CreateBackup:        true,
			DefaultVersion:      "1.0.0",
			TargetVersion:       "1.0.0",
			AutoMigrate:         true,
			BackupBeforeMigrate: true,
			LoadFromCloud:       true,
		},
		Codec: config.CodecConfig{
			Compression:      true,
			CompressionLevel: -1,
			Encryption:       true,
			Key:              "0123456789abcdef",
		},
		Cloud: config.CloudConfig{
			Enabled:      true,
			Backend:      "memory",
			Key:          "player_save",
			PushOnSave:   true,
			RetryMax:     1,
			RetryInitial: time.Millisecond,
		},
		Schema:  config.SchemaConfig{Builtins: true},
		Watch:   config.WatchConfig{BufferSize: 4},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func build(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := NewBuilder(cfg, "test").WithLogger(logger.NewNop()).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func TestBuild_WiresPipeline(t *testing.T) {
	cfg := testConfig(t)
	a := build(t, cfg)

	assert.True(t, a.Registry().Sealed())
	require.NotNil(t, a.Slot())

	w, err := a.Watch().AddWatcher("**", watch.EventSaved)
	require.NoError(t, err)

	ctx := context.Background()
	doc, err := document.Parse(`{"version":"1.0.0","levels":[]}`)
	require.NoError(t, err)
	res, err := a.Engine().Save(ctx, doc, true)
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.Equal(t, []string{codec.TagEncrypted}, res.Tags)

	select {
	case ev := <-w.Events:
		assert.Equal(t, cfg.Save.Path, ev.Path)
	default:
		t.Fatal("expected a saved event")
	}

	obj, err := a.Slot().Get(ctx, "player_save")
	require.NoError(t, err)
	raw, err := os.ReadFile(cfg.Save.Path)
	require.NoError(t, err)
	assert.Equal(t, raw, obj.Value)
}

func TestBuild_ConfigIsCloned(t *testing.T) {
	cfg := testConfig(t)
	a := build(t, cfg)

	original := cfg.Save.Path
	cfg.Save.Path = filepath.Join(t.TempDir(), "other.sav")
	assert.Equal(t, original, a.Engine().Path())
}

func TestBuild_BadRuleFileFails(t *testing.T) {
	cfg := testConfig(t)
	rules := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte("validations: [\n"), 0o644))
	cfg.Schema.RulesFiles = []string{rules}

	_, err := NewBuilder(cfg, "test").WithLogger(logger.NewNop()).Build(context.Background())
	assert.ErrorContains(t, err, "rule file")
}

func TestBuild_RuleFileRegistersRules(t *testing.T) {
	cfg := testConfig(t)
	rules := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(`
validations:
  - name: has_player
    description: Player name must be set
    expr: has(doc, "player")
    required: true
`), 0o644))
	cfg.Schema.RulesFiles = []string{rules}

	a := build(t, cfg)
	doc, err := document.Parse(`{"version":"1.0.0"}`)
	require.NoError(t, err)
	result := a.Registry().Validate(doc, "1.0.0")
	assert.False(t, result.IsValid)
}

func TestShutdown_FlushesPending(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cloud.Enabled = false
	a, err := NewBuilder(cfg, "test").WithLogger(logger.NewNop()).Build(context.Background())
	require.NoError(t, err)

	doc, err := document.Parse(`{"version":"1.0.0"}`)
	require.NoError(t, err)
	a.Engine().MarkChanged(doc)

	require.NoError(t, a.Shutdown(context.Background()))
	require.NoError(t, a.Shutdown(context.Background()))
	_, err = os.Stat(cfg.Save.Path)
	assert.NoError(t, err)
}

func TestBackgroundFlush(t *testing.T) {
	cfg := testConfig(t)
	cfg.Save.FlushInterval = 10 * time.Millisecond
	a := build(t, cfg)

	a.startBackgroundTasks()
	defer a.stopBackgroundTasks()

	doc, err := document.Parse(`{"version":"1.0.0"}`)
	require.NoError(t, err)
	a.Engine().MarkChanged(doc)

	assert.Eventually(t, func() bool { return !a.Engine().Dirty() }, 2*time.Second, 10*time.Millisecond)
}

func TestBackgroundSlotGC(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cloud.Backend = "badger"
	cfg.Cloud.DataDir = filepath.Join(t.TempDir(), "slot")
	cfg.Cloud.GCInterval = 10 * time.Millisecond
	a := build(t, cfg)

	gcRuns := metrics.CloudOperationsTotal.WithLabelValues("gc", "success")
	before := testutil.ToFloat64(gcRuns)

	a.startBackgroundTasks()
	defer a.stopBackgroundTasks()

	assert.Eventually(t, func() bool { return testutil.ToFloat64(gcRuns) > before }, 2*time.Second, 10*time.Millisecond)
}

func TestBackgroundSlotGC_SkippedForMemorySlot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cloud.GCInterval = 10 * time.Millisecond
	a := build(t, cfg)

	a.startBackgroundTasks()
	defer a.stopBackgroundTasks()
	assert.Empty(t, a.backgroundStop)
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	a := build(t, testConfig(t))

	resp, err := a.HTTP().Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = a.HTTP().Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
