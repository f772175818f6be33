// Package lifecycle holds the gateway's drain flag. Once draining, the
// readiness probe fails and new session upgrades are refused; sessions
// already running are untouched and wound down through the tracker.
package lifecycle

import "sync/atomic"

type Lifecycle struct {
	draining atomic.Bool
}

// SetDraining flips the drain flag. Nil receivers are tolerated so
// handlers wired without a lifecycle behave as never-draining.
func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
