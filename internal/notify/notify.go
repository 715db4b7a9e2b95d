// Package notify provides the notification feed and delivery channels.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"cryptopaper/internal/models"
)

// DefaultFeedSize is the default notification ring capacity.
const DefaultFeedSize = 10

// Notifier delivers a notification to an output channel.
type Notifier interface {
	Notify(n models.Notification) error
}

// Feed is a bounded ring of the most recent notifications, newest first.
type Feed struct {
	mu        sync.RWMutex
	items     []models.Notification
	capacity  int
	notifiers []Notifier
}

// NewFeed creates a feed with the given capacity.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultFeedSize
	}
	return &Feed{capacity: capacity}
}

// AddNotifier attaches a delivery channel invoked for every push.
func (f *Feed) AddNotifier(n Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifiers = append(f.notifiers, n)
}

// Push appends a notification, evicting the oldest beyond capacity, and
// fans it out to the attached notifiers.
func (f *Feed) Push(level models.NotificationLevel, message string) models.Notification {
	n := models.Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Level:     level,
		Timestamp: time.Now(),
	}

	f.mu.Lock()
	f.items = append([]models.Notification{n}, f.items...)
	if len(f.items) > f.capacity {
		f.items = f.items[:f.capacity]
	}
	notifiers := append([]Notifier(nil), f.notifiers...)
	f.mu.Unlock()

	for _, notifier := range notifiers {
		// Delivery failures must not disturb the feed.
		_ = notifier.Notify(n)
	}
	return n
}

// Restore replaces the feed contents from a persisted snapshot.
func (f *Feed) Restore(items []models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(items) > f.capacity {
		items = items[:f.capacity]
	}
	f.items = append([]models.Notification(nil), items...)
}

// Items returns a copy of the feed, newest first.
func (f *Feed) Items() []models.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Notification, len(f.items))
	copy(out, f.items)
	return out
}

// Clear empties the feed.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
}
