// Package persistence holds the remote slot engines that back the cloud
// mirror: an in-memory engine, a BadgerDB engine used as a local stand-in
// for a cloud bucket, and a Google Cloud Storage engine.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a slot key holds no value.
var ErrKeyNotFound = errors.New("key not found")

// Object is a stored slot value and the time it was last written.
// ModTime is zero when the backend does not track modification times.
type Object struct {
	Value   []byte
	ModTime time.Time
}

// Engine represents a persistence backend
type Engine interface {
	Get(ctx context.Context, key string) (Object, error)
	Set(ctx context.Context, key string, value []byte) (time.Time, error)
	ModTime(ctx context.Context, key string) (time.Time, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)

	// Management
	Close() error
}

// Config holds persistence configuration
type Config struct {
	Type       string // "memory", "badger", "gcs"
	DataDir    string
	SyncWrites bool

	Bucket          string
	Prefix          string
	CredentialsFile string
}
