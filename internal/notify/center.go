package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Notification is one entry in the active notification list.
type Notification struct {
	OrderID  int64     `json:"order_id"`
	Category Category  `json:"category"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
}

// Center holds the active notifications and applies dedup before accepting
// new ones. Dismissal is one way: a dismissed (order, category) pair never
// resurfaces, even when the underlying condition is re-detected.
type Center struct {
	mu     sync.Mutex
	store  *Store
	active []Notification
	logger zerolog.Logger
}

func NewCenter(store *Store, logger zerolog.Logger) *Center {
	return &Center{
		store:  store,
		logger: logger.With().Str("component", "notify_center").Logger(),
	}
}

// Raise adds a notification unless it was already raised or dismissed.
// It reports whether the notification was accepted.
func (c *Center) Raise(orderID int64, cat Category, message string) (bool, error) {
	key := Key(orderID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Seen(cat, key) || c.store.Seen(CategoryDismissed, dismissKey(orderID, cat)) {
		return false, nil
	}
	if err := c.store.Record(cat, key); err != nil {
		return false, fmt.Errorf("record notification: %w", err)
	}
	c.active = append(c.active, Notification{
		OrderID:  orderID,
		Category: cat,
		Message:  message,
		RaisedAt: time.Now().UTC(),
	})
	c.logger.Info().Int64("order_id", orderID).Str("category", string(cat)).Msg("notification raised")
	return true, nil
}

// Dismiss removes the notification from the active list and records the
// dismissal so it is never raised again.
func (c *Center) Dismiss(orderID int64, cat Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Record(CategoryDismissed, dismissKey(orderID, cat)); err != nil {
		return fmt.Errorf("record dismissal: %w", err)
	}
	kept := c.active[:0]
	for _, n := range c.active {
		if n.OrderID == orderID && n.Category == cat {
			continue
		}
		kept = append(kept, n)
	}
	c.active = kept
	return nil
}

// Active returns a snapshot of the current notification list.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.active))
	copy(out, c.active)
	return out
}

func dismissKey(orderID int64, cat Category) string {
	return Key(orderID) + ":" + string(cat)
}
