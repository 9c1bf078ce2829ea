// Package watch delivers engine lifecycle events to registered observers.
package watch

import "errors"

var (
	// ErrTooManyWatchers is returned when the watcher limit is reached
	ErrTooManyWatchers = errors.New("too many watchers")

	// ErrWatcherNotFound is returned when a watcher ID is not found
	ErrWatcherNotFound = errors.New("watcher not found")

	// ErrInvalidPattern is returned when a watch pattern is invalid
	ErrInvalidPattern = errors.New("invalid watch pattern")
)
