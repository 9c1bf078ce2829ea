package watch

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/metrics"
)

// DefaultBufferSize is the channel capacity used when none is configured.
const DefaultBufferSize = 16

// Manager manages all active watchers
type Manager struct {
	watchers    map[string]*Watcher // ID -> Watcher
	patterns    map[string][]string // Pattern -> []WatcherID
	mu          sync.RWMutex
	log         logger.Logger
	bufferSize  int
	maxWatchers int
}

// NewManager creates a new watch manager. maxWatchers <= 0 means no limit.
func NewManager(log logger.Logger, bufferSize, maxWatchers int) *Manager {
	if log == nil {
		log = logger.GetDefault()
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Manager{
		watchers:    make(map[string]*Watcher),
		patterns:    make(map[string][]string),
		log:         log,
		bufferSize:  bufferSize,
		maxWatchers: maxWatchers,
	}
}

// AddWatcher registers a channel watcher for pattern. Events are dropped
// when the channel is full.
func (wm *Manager) AddWatcher(pattern string, types ...EventType) (*Watcher, error) {
	if err := validatePattern(pattern); err != nil {
		return nil, err
	}
	watcher := NewWatcher(uuid.New().String(), pattern, types, wm.bufferSize)
	if err := wm.add(watcher); err != nil {
		return nil, err
	}
	return watcher, nil
}

// AddCallback registers fn for pattern and returns the watcher ID.
func (wm *Manager) AddCallback(pattern string, fn Callback, types ...EventType) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("%w: nil callback", ErrInvalidPattern)
	}
	if err := validatePattern(pattern); err != nil {
		return "", err
	}
	watcher := &Watcher{
		ID:       uuid.New().String(),
		Pattern:  pattern,
		Types:    types,
		Callback: fn,
	}
	if err := wm.add(watcher); err != nil {
		return "", err
	}
	return watcher.ID, nil
}

func (wm *Manager) add(watcher *Watcher) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	if wm.maxWatchers > 0 && len(wm.watchers) >= wm.maxWatchers {
		wm.log.Warn("Watcher limit reached",
			logger.Int("current", len(wm.watchers)),
			logger.Int("max", wm.maxWatchers))
		return ErrTooManyWatchers
	}

	wm.watchers[watcher.ID] = watcher
	wm.patterns[watcher.Pattern] = append(wm.patterns[watcher.Pattern], watcher.ID)

	wm.log.Info("Watcher added",
		logger.String("id", watcher.ID),
		logger.String("pattern", watcher.Pattern),
		logger.Bool("callback", watcher.Callback != nil))

	metrics.WatchersActive.Inc()
	return nil
}

// RemoveWatcher removes a watcher by ID and closes its channel.
func (wm *Manager) RemoveWatcher(id string) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	watcher, exists := wm.watchers[id]
	if !exists {
		return ErrWatcherNotFound
	}

	// Remove from patterns map
	ids := wm.patterns[watcher.Pattern]
	for i, wid := range ids {
		if wid == id {
			wm.patterns[watcher.Pattern] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	// Clean up empty pattern entry
	if len(wm.patterns[watcher.Pattern]) == 0 {
		delete(wm.patterns, watcher.Pattern)
	}

	if watcher.Events != nil {
		close(watcher.Events)
	}
	delete(wm.watchers, id)

	metrics.WatchersActive.Dec()

	wm.log.Info("Watcher removed",
		logger.String("id", id),
		logger.String("pattern", watcher.Pattern))
	return nil
}

// Notify delivers event to all matching watchers. Channel sends never
// block; callbacks run on the caller's goroutine after the manager lock
// is released.
func (wm *Manager) Notify(event Event) {
	var callbacks []*Watcher

	wm.mu.RLock()
	notified := 0
	dropped := 0
	for pattern, watcherIDs := range wm.patterns {
		if !matchesPattern(event.Path, pattern) {
			continue
		}
		for _, id := range watcherIDs {
			watcher, exists := wm.watchers[id]
			if !exists || !watcher.wants(event.Type) {
				continue
			}

			if watcher.Callback != nil {
				callbacks = append(callbacks, watcher)
				continue
			}

			// Send event (non-blocking)
			select {
			case watcher.Events <- event:
				notified++
				metrics.WatchEventsTotal.WithLabelValues(string(event.Type)).Inc()
			default:
				dropped++
				metrics.WatchEventsDropped.WithLabelValues("channel_full").Inc()
				wm.log.Warn("Watcher channel full, dropping event",
					logger.String("watcher_id", id),
					logger.String("pattern", pattern),
					logger.String("path", event.Path),
					logger.String("event_type", string(event.Type)))
			}
		}
	}
	wm.mu.RUnlock()

	for _, watcher := range callbacks {
		if wm.invoke(watcher, event) {
			notified++
			metrics.WatchEventsTotal.WithLabelValues(string(event.Type)).Inc()
		} else {
			dropped++
			metrics.WatchEventsDropped.WithLabelValues("callback_panic").Inc()
		}
	}

	if notified > 0 || dropped > 0 {
		wm.log.Debug("Watch event notified",
			logger.String("path", event.Path),
			logger.String("event_type", string(event.Type)),
			logger.Int("notified", notified),
			logger.Int("dropped", dropped))
	}
}

func (wm *Manager) invoke(watcher *Watcher, event Event) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			wm.log.Error("Watch callback panicked",
				logger.String("watcher_id", watcher.ID),
				logger.String("event_type", string(event.Type)),
				logger.String("panic", fmt.Sprint(p)))
		}
	}()
	watcher.Callback(event)
	return true
}

func validatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	if strings.Contains(pattern, "**") {
		if !strings.HasSuffix(pattern, "**") || strings.Count(pattern, "**") > 1 {
			return fmt.Errorf("%w: ** is only allowed at the end: %s", ErrInvalidPattern, pattern)
		}
		return nil
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPattern, pattern, err)
	}
	return nil
}

// matchesPattern checks if a path matches a watch pattern
func matchesPattern(path, pattern string) bool {
	// Exact match
	if path == pattern {
		return true
	}

	// No wildcards - only exact match works
	if !strings.Contains(pattern, "*") {
		return false
	}

	// Handle ** (multi-level wildcard)
	if strings.Contains(pattern, "**") {
		prefix := strings.TrimSuffix(pattern, "**")
		return strings.HasPrefix(path, prefix)
	}

	// Handle * (single-level wildcard) - use filepath.Match
	matched, err := filepath.Match(pattern, path)
	return err == nil && matched
}

// GetActiveWatcherCount returns the number of active watchers
func (wm *Manager) GetActiveWatcherCount() int {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return len(wm.watchers)
}

// Close closes all watchers and cleans up resources
func (wm *Manager) Close() {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	for id, watcher := range wm.watchers {
		if watcher.Events != nil {
			close(watcher.Events)
		}
		delete(wm.watchers, id)
		metrics.WatchersActive.Dec()
	}

	wm.patterns = make(map[string][]string)

	wm.log.Info("Watch manager closed")
}
