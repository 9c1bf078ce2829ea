package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/neogan74/savekit/internal/filestore"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/metrics"
)

// Direction is the transfer a reconciliation performed.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionPush
	DirectionPull
)

func (d Direction) String() string {
	switch d {
	case DirectionPush:
		return "push"
	case DirectionPull:
		return "pull"
	default:
		return "none"
	}
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// SyncResult reports the outcome of Sync.
type SyncResult struct {
	Direction   Direction `json:"direction"`
	Success     bool      `json:"success"`
	LocalTime   time.Time `json:"local_time"`
	RemoteTime  time.Time `json:"remote_time"`
	PayloadSize int       `json:"payload_size"`
}

// Sync reconciles the local file at path with the remote slot. The strictly
// newer side wins; equal times do nothing. A pull overwrites the local file
// with the remote payload after backing it up, then aligns the local
// modification time with the remote one.
func (m *Mirror) Sync(ctx context.Context, store *filestore.Store, path string) (SyncResult, error) {
	res, err := m.sync(ctx, store, path)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CloudSyncTotal.WithLabelValues(res.Direction.String(), status).Inc()
	res.Success = err == nil
	return res, err
}

func (m *Mirror) sync(ctx context.Context, store *filestore.Store, path string) (SyncResult, error) {
	var res SyncResult

	if store.Exists(path) {
		local, err := store.LastModified(path)
		if err != nil {
			return res, err
		}
		res.LocalTime = local
	}

	remote, err := m.RemoteLastModified(ctx)
	if err != nil {
		return res, err
	}
	res.RemoteTime = remote

	switch {
	case res.LocalTime.After(remote):
		payload, err := store.Read(path)
		if err != nil {
			return res, err
		}
		res.Direction = DirectionPush
		res.PayloadSize = len(payload)
		if err := m.PushFile(ctx, store, path, payload); err != nil {
			return res, err
		}
		m.log.Info("Local save is newer, pushed to remote",
			logger.String("path", path),
			logger.Time("local", res.LocalTime),
			logger.Time("remote", remote))

	case remote.After(res.LocalTime):
		payload, err := m.Pull(ctx)
		if err != nil {
			return res, err
		}
		res.Direction = DirectionPull
		res.PayloadSize = len(payload)
		if err := m.applyPull(store, path, payload, remote); err != nil {
			return res, err
		}
		m.log.Info("Remote save is newer, pulled to local",
			logger.String("path", path),
			logger.Time("local", res.LocalTime),
			logger.Time("remote", remote))

	default:
		m.log.Debug("Local and remote saves are in sync", logger.String("path", path))
	}
	return res, nil
}

// PushFile pushes payload, the content of path, and sets the modification
// time of path to the slot's so a following Sync finds both sides equal.
func (m *Mirror) PushFile(ctx context.Context, store *filestore.Store, path, payload string) error {
	mod, err := m.Push(ctx, payload)
	if err != nil {
		return err
	}
	if mod.IsZero() {
		return nil
	}
	if err := store.Touch(path, mod); err != nil {
		return fmt.Errorf("align %s with remote slot: %w", path, err)
	}
	return nil
}

func (m *Mirror) applyPull(store *filestore.Store, path, payload string, remote time.Time) error {
	if payload == "" {
		return fmt.Errorf("remote slot %s is newer but empty", m.key)
	}
	if current, err := store.Read(path); err != nil || current != payload {
		if _, err := store.Write(path, payload, true); err != nil {
			return err
		}
	}
	return store.Touch(path, remote)
}
