package watch

import (
	"time"
)

// EventType represents the type of lifecycle event
type EventType string

const (
	EventSaved              EventType = "saved"
	EventSaveFailed         EventType = "save_failed"
	EventLoaded             EventType = "loaded"
	EventLoadFailed         EventType = "load_failed"
	EventRestoredFromBackup EventType = "restored_from_backup"
	EventBackupRestored     EventType = "backup_restored"
	EventMigrated           EventType = "migrated"
	EventMigrationFailed    EventType = "migration_failed"
	EventSynced             EventType = "synced"
)

// Event describes one engine operation on a save file.
type Event struct {
	Type      EventType `json:"type"`
	Path      string    `json:"path"`
	Message   string    `json:"message,omitempty"`
	Version   string    `json:"version,omitempty"`
	Source    string    `json:"source,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, path string) Event {
	return Event{Type: t, Path: path, Timestamp: time.Now().UnixMilli()}
}

// Callback is invoked synchronously for each matching event.
type Callback func(Event)

// Watcher represents a single subscription. Exactly one of Events and
// Callback is set.
type Watcher struct {
	ID        string
	Pattern   string // Path or path pattern (supports * and **)
	Types     []EventType
	Events    chan Event
	Callback  Callback
	CreatedAt time.Time
}

// NewWatcher creates a new watcher with a buffered event channel
func NewWatcher(id, pattern string, types []EventType, bufferSize int) *Watcher {
	return &Watcher{
		ID:        id,
		Pattern:   pattern,
		Types:     types,
		Events:    make(chan Event, bufferSize),
		CreatedAt: time.Now(),
	}
}

func (w *Watcher) wants(t EventType) bool {
	if len(w.Types) == 0 {
		return true
	}
	for _, want := range w.Types {
		if want == t {
			return true
		}
	}
	return false
}
