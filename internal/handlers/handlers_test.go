package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neogan74/savekit/internal/codec"
	"github.com/neogan74/savekit/internal/engine"
	"github.com/neogan74/savekit/internal/filestore"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/middleware"
	"github.com/neogan74/savekit/internal/schema"
)

const savedDoc = `{"version":"1.0.0","levels":[{"levelId":"a","starsAchieved":"2"}]}`

func setupApp(t *testing.T) (*fiber.App, string) {
	t.Helper()
	log := logger.NewNop()
	path := filepath.Join(t.TempDir(), "progress.sav")

	registry := schema.NewRegistry(log)
	require.NoError(t, schema.RegisterBuiltins(registry))
	registry.Seal()

	e := engine.New(engine.Config{Path: path, CreateBackup: true},
		codec.New(codec.Config{Compression: true}, log),
		filestore.New(filestore.Config{}, log),
		registry, log)

	app := fiber.New()
	app.Use(middleware.RequestLogging(log))
	Register(app, NewSaveHandler(e, false), NewHealthHandler(e, "1.0.0-test"))
	return app, path
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if strings.HasPrefix(body, `{"backup"`) {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestSaveHandler_StoreAndLoad(t *testing.T) {
	app, _ := setupApp(t)

	resp, raw := do(t, app, "PUT", "/save/document", savedDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var saved engine.SaveResult
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.True(t, saved.Written)
	assert.Equal(t, []string{codec.TagCompressed}, saved.Tags)

	resp, raw = do(t, app, "GET", "/save/document", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loaded LoadResponse
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.Equal(t, "local", loaded.Source)
	assert.Equal(t, "1.0.0", loaded.Version)
	doc := loaded.Document.(map[string]any)
	assert.Equal(t, "1.0.0", doc["version"])

	resp, raw = do(t, app, "GET", "/save", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info engine.Info
	require.NoError(t, json.Unmarshal(raw, &info))
	assert.True(t, info.Exists)
}

func TestSaveHandler_LoadDefaultAndCorrupt(t *testing.T) {
	app, path := setupApp(t)

	resp, raw := do(t, app, "GET", "/save/document", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loaded LoadResponse
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.Equal(t, "default", loaded.Source)

	require.NoError(t, os.WriteFile(path, []byte("COMP_!!!"), 0o644))
	resp, raw = do(t, app, "GET", "/save/document", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var errResp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &errResp))
	assert.Equal(t, "decode", errResp.Kind)
}

func TestSaveHandler_StoreRejectsBadDocument(t *testing.T) {
	app, _ := setupApp(t)

	resp, _ := do(t, app, "PUT", "/save/document", `{"version":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, "PUT", "/save/document", `{"name":"a\"b"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSaveHandler_DeferredFlush(t *testing.T) {
	app, path := setupApp(t)

	resp, _ := do(t, app, "PUT", "/save/document?defer=true", savedDoc)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	resp, raw := do(t, app, "POST", "/save/flush", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"flushed":true}`, string(raw))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSaveHandler_Validate(t *testing.T) {
	app, _ := setupApp(t)

	resp, raw := do(t, app, "POST", "/save/validate", `{"levels":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var result schema.ValidationResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.Errors)

	resp, _ = do(t, app, "POST", "/save/validate", savedDoc)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSaveHandler_Migrate(t *testing.T) {
	app, _ := setupApp(t)

	resp, raw := do(t, app, "POST", "/save/migrate", `{"version":"0.9.0","levels":[{"id":"level1","stars":2,"bestTime":120.5}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var body struct {
		Migration schema.MigrationResult `json:"migration"`
		Document  map[string]any         `json:"document"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.True(t, body.Migration.Success)
	assert.Equal(t, "1.0.0", body.Migration.ToVersion)
	assert.Equal(t, "1.0.0", body.Document["version"])
}

func TestSaveHandler_SyncWithoutMirror(t *testing.T) {
	app, _ := setupApp(t)

	resp, _ := do(t, app, "POST", "/save/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSaveHandler_Backups(t *testing.T) {
	app, _ := setupApp(t)

	do(t, app, "PUT", "/save/document", `{"version":"1.0.0","coins":"1"}`)
	do(t, app, "PUT", "/save/document", `{"version":"1.0.0","coins":"2"}`)

	resp, raw := do(t, app, "GET", "/save/backups", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Backups []filestore.BackupRecord `json:"backups"`
		Count   int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(raw, &listed))
	require.Equal(t, 1, listed.Count)

	resp, _ = do(t, app, "POST", "/save/backups/restore", `{"backup":"`+listed.Backups[0].FileName+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = do(t, app, "GET", "/save/document", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loaded LoadResponse
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.Equal(t, "1", loaded.Document.(map[string]any)["coins"])

	resp, _ = do(t, app, "POST", "/save/backups/restore", `{"backup":"Backup_missing.sav"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthHandler(t *testing.T) {
	app, _ := setupApp(t)

	resp, raw := do(t, app, "GET", "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthStatus
	require.NoError(t, json.Unmarshal(raw, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "1.0.0-test", health.Version)
	assert.False(t, health.Save.Exists)

	resp, _ = do(t, app, "GET", "/health/live", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, app, "GET", "/health/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
