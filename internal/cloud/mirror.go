// Package cloud mirrors the local save file into a remote slot and
// reconciles the two by last-write-wins on modification time.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/metrics"
	"github.com/neogan74/savekit/internal/persistence"
)

const (
	DefaultKey          = "player_save"
	DefaultRetryMax     = 3
	DefaultRetryInitial = 200 * time.Millisecond
)

// Config holds mirror configuration.
type Config struct {
	Key          string
	RetryMax     int
	RetryInitial time.Duration
}

// Mirror is a single remote slot holding the same framed payload as the
// local save file.
type Mirror struct {
	slot  persistence.Engine
	key   string
	retry Config
	log   logger.Logger
}

// New creates a mirror over slot. Zero config fields take defaults.
func New(slot persistence.Engine, cfg Config, log logger.Logger) *Mirror {
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = DefaultRetryInitial
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Mirror{
		slot:  slot,
		key:   cfg.Key,
		retry: cfg,
		log:   log.WithFields(logger.String("slot_key", cfg.Key)),
	}
}

// Key returns the remote slot key.
func (m *Mirror) Key() string { return m.key }

func (m *Mirror) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.retry.RetryInitial
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(m.retry.RetryMax)), ctx)
}

// Pull returns the remote payload. An empty slot yields "" and no error.
func (m *Mirror) Pull(ctx context.Context) (string, error) {
	var obj persistence.Object
	err := backoff.Retry(func() error {
		var err error
		obj, err = m.slot.Get(ctx, m.key)
		if errors.Is(err, persistence.ErrKeyNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, m.policy(ctx))

	switch {
	case errors.Is(err, persistence.ErrKeyNotFound):
		metrics.CloudOperationsTotal.WithLabelValues("pull", "empty").Inc()
		return "", nil
	case err != nil:
		metrics.CloudOperationsTotal.WithLabelValues("pull", "error").Inc()
		m.log.Warn("Remote pull failed", logger.Error(err))
		return "", fmt.Errorf("pull %s: %w", m.key, err)
	}

	metrics.CloudOperationsTotal.WithLabelValues("pull", "success").Inc()
	metrics.PayloadBytes.WithLabelValues("pull").Observe(float64(len(obj.Value)))
	return string(obj.Value), nil
}

// Push replaces the remote payload and returns the remote modification time.
func (m *Mirror) Push(ctx context.Context, payload string) (time.Time, error) {
	var mod time.Time
	err := backoff.Retry(func() error {
		var err error
		mod, err = m.slot.Set(ctx, m.key, []byte(payload))
		return err
	}, m.policy(ctx))
	if err != nil {
		metrics.CloudOperationsTotal.WithLabelValues("push", "error").Inc()
		m.log.Warn("Remote push failed", logger.Error(err))
		return time.Time{}, fmt.Errorf("push %s: %w", m.key, err)
	}

	metrics.CloudOperationsTotal.WithLabelValues("push", "success").Inc()
	metrics.PayloadBytes.WithLabelValues("push").Observe(float64(len(payload)))
	m.log.Debug("Pushed payload", logger.Int("bytes", len(payload)))
	return mod, nil
}

// RemoteLastModified returns the remote modification time. A missing slot
// or a backend that does not track time yields the zero time, which never
// compares newer than a local file.
func (m *Mirror) RemoteLastModified(ctx context.Context) (time.Time, error) {
	mod, err := m.slot.ModTime(ctx, m.key)
	if errors.Is(err, persistence.ErrKeyNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		metrics.CloudOperationsTotal.WithLabelValues("stat", "error").Inc()
		return time.Time{}, fmt.Errorf("stat %s: %w", m.key, err)
	}
	return mod, nil
}
