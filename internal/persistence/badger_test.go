package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/neogan74/savekit/internal/logger"
)

func TestBadgerEngine_Basic(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()
	log := logger.NewNop()

	engine, err := NewBadgerEngine(tempDir, true, log)
	if err != nil {
		t.Fatalf("Failed to create BadgerEngine: %v", err)
	}
	defer func() { _ = engine.Close() }()

	key := "progress.sav"
	value := []byte("COMP_H4sIAAAA")

	before := time.Now().Add(-time.Second)
	mod, err := engine.Set(ctx, key, value)
	if err != nil {
		t.Fatalf("Failed to set key: %v", err)
	}
	if mod.Before(before) {
		t.Errorf("Expected mod time after %v, got %v", before, mod)
	}

	obj, err := engine.Get(ctx, key)
	if err != nil {
		t.Fatalf("Failed to get key: %v", err)
	}
	if string(obj.Value) != string(value) {
		t.Errorf("Expected %s, got %s", value, obj.Value)
	}
	if !obj.ModTime.Equal(mod) {
		t.Errorf("Expected mod time %v, got %v", mod, obj.ModTime)
	}

	stamped, err := engine.ModTime(ctx, key)
	if err != nil {
		t.Fatalf("Failed to read mod time: %v", err)
	}
	if !stamped.Equal(mod) {
		t.Errorf("Expected mod time %v, got %v", mod, stamped)
	}

	keys, err := engine.List(ctx, "")
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Errorf("Expected [%s], got %v", key, keys)
	}

	if err := engine.Delete(ctx, key); err != nil {
		t.Fatalf("Failed to delete key: %v", err)
	}

	_, err = engine.Get(ctx, key)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound after deletion, got %v", err)
	}
	_, err = engine.ModTime(ctx, key)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound for mod time after deletion, got %v", err)
	}
}

func TestBadgerEngine_Persistence(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()
	log := logger.NewNop()

	engine1, err := NewBadgerEngine(tempDir, true, log)
	if err != nil {
		t.Fatalf("Failed to create BadgerEngine: %v", err)
	}
	if _, err := engine1.Set(ctx, "slot-a", []byte("one")); err != nil {
		t.Fatalf("Failed to set key: %v", err)
	}
	if err := engine1.Close(); err != nil {
		t.Fatalf("Failed to close engine: %v", err)
	}

	engine2, err := NewBadgerEngine(tempDir, true, log)
	if err != nil {
		t.Fatalf("Failed to reopen BadgerEngine: %v", err)
	}
	defer func() { _ = engine2.Close() }()

	obj, err := engine2.Get(ctx, "slot-a")
	if err != nil {
		t.Fatalf("Failed to get key after reopen: %v", err)
	}
	if string(obj.Value) != "one" {
		t.Errorf("Expected one, got %s", obj.Value)
	}
	if obj.ModTime.IsZero() {
		t.Error("Expected a persisted mod time")
	}
}

func TestBadgerEngine_ListPrefix(t *testing.T) {
	ctx := context.Background()
	engine, err := NewBadgerEngine(t.TempDir(), false, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create BadgerEngine: %v", err)
	}
	defer func() { _ = engine.Close() }()

	for _, key := range []string{"user1/progress", "user1/settings", "user2/progress"} {
		if _, err := engine.Set(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Failed to set %s: %v", key, err)
		}
	}

	keys, err := engine.List(ctx, "user1/")
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "user1/progress" || keys[1] != "user1/settings" {
		t.Errorf("Unexpected keys: %v", keys)
	}
}

func TestBadgerEngine_BackupRestore(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNop()

	source, err := NewBadgerEngine(t.TempDir(), true, log)
	if err != nil {
		t.Fatalf("Failed to create BadgerEngine: %v", err)
	}
	defer func() { _ = source.Close() }()

	mod, err := source.Set(ctx, "progress", []byte("payload"))
	if err != nil {
		t.Fatalf("Failed to set key: %v", err)
	}

	backupPath := filepath.Join(t.TempDir(), "export", "slots.bak")
	if err := source.Backup(backupPath); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}

	target, err := NewBadgerEngine(t.TempDir(), true, log)
	if err != nil {
		t.Fatalf("Failed to create target engine: %v", err)
	}
	defer func() { _ = target.Close() }()

	if err := target.Restore(backupPath); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	obj, err := target.Get(ctx, "progress")
	if err != nil {
		t.Fatalf("Failed to get restored key: %v", err)
	}
	if string(obj.Value) != "payload" {
		t.Errorf("Expected payload, got %s", obj.Value)
	}
	if !obj.ModTime.Equal(mod) {
		t.Errorf("Expected restored mod time %v, got %v", mod, obj.ModTime)
	}
}

func TestBadgerEngine_CollectGarbage(t *testing.T) {
	engine, err := NewBadgerEngine(t.TempDir(), false, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create BadgerEngine: %v", err)
	}
	defer func() { _ = engine.Close() }()

	// A fresh store has nothing to rewrite.
	if err := engine.CollectGarbage(0.5); err != nil {
		t.Errorf("Expected no error from idle GC, got %v", err)
	}
}
