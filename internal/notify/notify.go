// Package notify shows desktop notifications when listening fails or comes back.
package notify

import (
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"

	"steadymic/internal/domain"
)

const (
	appName = "SteadyMic"
	// maxInflight bounds notifications waiting on the desktop daemon; extras are dropped.
	maxInflight = 2
)

// Notifier sends desktop notifications for continuity changes.
type Notifier struct {
	mu      sync.Mutex
	enabled bool
	last    domain.RecognitionState
	// set by a drop or an error until listening resumes
	pending bool

	send     func(title, message, icon string) error
	inflight chan struct{}
	logger   *slog.Logger
}

func New(enabled bool, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		enabled:  enabled,
		last:     domain.StateIdle,
		send:     beeep.Notify,
		inflight: make(chan struct{}, maxInflight),
		logger:   logger,
	}
}

// SetEnabled toggles notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	n.enabled = enabled
	n.mu.Unlock()
}

// Observe notifies on entering error, and on a restart that brought listening back
// after a drop or an error. It runs on the monitor goroutine, so sending happens
// in the background.
func (n *Notifier) Observe(snap domain.Snapshot) {
	n.mu.Lock()
	prev := n.last
	n.last = snap.State
	recovered := snap.State == domain.StateListening && n.pending
	switch {
	case snap.Reason == domain.ReasonUnannouncedDrop,
		snap.Reason == domain.ReasonDropLimit,
		snap.State == domain.StateError:
		n.pending = true
	case snap.State == domain.StateListening, snap.State == domain.StateStopped:
		n.pending = false
	}
	n.mu.Unlock()

	switch {
	case snap.State == domain.StateError && prev != domain.StateError:
		n.notify("Listening stopped", failureMessage(snap))
	case recovered:
		n.notify("Listening again", "Speech recognition recovered")
	}
}

func (n *Notifier) notify(title, message string) {
	n.mu.Lock()
	enabled := n.enabled
	n.mu.Unlock()
	if !enabled {
		return
	}

	select {
	case n.inflight <- struct{}{}:
	default:
		n.logger.Debug("desktop notification dropped, daemon is busy", "title", title)
		return
	}
	go func() {
		defer func() { <-n.inflight }()
		if err := n.send(appName+": "+title, message, ""); err != nil {
			n.logger.Debug("desktop notification failed", "error", err)
		}
	}()
}

func failureMessage(snap domain.Snapshot) string {
	if snap.Message != "" {
		return snap.Message
	}
	return string(snap.Reason)
}
