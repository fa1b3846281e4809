package scheduler

import (
	"container/ring"
	"sync"
	"time"
)

// Notification is one record of a task firing, kept for the gateway's
// notification feed.
type Notification struct {
	TaskName  string
	Body      string
	Source    string
	CreatedAt time.Time
}

// defaultNotificationCapacity bounds memory use regardless of how many
// tasks fire over the process lifetime.
const defaultNotificationCapacity = 200

// NotificationRing is a fixed-capacity ring buffer of recent
// notifications; once full, the oldest entry is overwritten.
type NotificationRing struct {
	mu   sync.Mutex
	r    *ring.Ring
	size int
}

// NewNotificationRing builds a ring buffer with the given capacity (the
// default is used when capacity <= 0).
func NewNotificationRing(capacity int) *NotificationRing {
	if capacity <= 0 {
		capacity = defaultNotificationCapacity
	}
	return &NotificationRing{r: ring.New(capacity)}
}

// Record appends a notification, overwriting the oldest entry once full.
func (n *NotificationRing) Record(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.r.Value = note
	n.r = n.r.Next()
	if n.size < n.r.Len() {
		n.size++
	}
}

// History returns recorded notifications, oldest first.
func (n *NotificationRing) History() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, 0, n.size)
	cur := n.r // the slot due to be overwritten next holds the oldest entry
	for i := 0; i < n.r.Len(); i++ {
		if cur.Value != nil {
			out = append(out, cur.Value.(Notification))
		}
		cur = cur.Next()
	}
	return out
}
