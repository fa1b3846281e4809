package channels

import (
	"sync"
	"time"
)

// BaseHealthAdapter tracks connection status for an adapter so each
// concrete adapter doesn't reimplement the same bookkeeping. Grounded on
// the teacher's own base health adapter, trimmed to the fields the
// platform's status endpoints actually surface.
type BaseHealthAdapter struct {
	mu        sync.Mutex
	connected bool
	lastErr   string
	lastPing  int64
}

// NewBaseHealthAdapter creates a health tracker in the disconnected state.
func NewBaseHealthAdapter() *BaseHealthAdapter {
	return &BaseHealthAdapter{}
}

// SetStatus records the adapter's current connection state.
func (h *BaseHealthAdapter) SetStatus(connected bool, errMsg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = connected
	h.lastErr = errMsg
}

// UpdateLastPing records that traffic was observed just now.
func (h *BaseHealthAdapter) UpdateLastPing() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPing = time.Now().Unix()
}

// Status returns the adapter's current connection status.
func (h *BaseHealthAdapter) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Status{Connected: h.connected, Error: h.lastErr, LastPing: h.lastPing}
}
