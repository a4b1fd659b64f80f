// Package notify implements the single-slot advisory channel used to surface
// human-readable warnings to the presentation layer.
//
// Producers and consumers share one slot per session:
//   - a new notification overwrites any pending one (last write wins);
//   - Hide clears the slot unconditionally and is idempotent;
//   - HideFrom clears the slot only when the pending notification came from the
//     given source, so a producer never dismisses another producer's warning.
//
// Every operation is linearized on the slot, so after concurrent writers finish
// the visible state equals the last operation to complete.
package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trove-labs/auction-view/internal/observe"
)

// Notification is one advisory message. The zero value is the empty slot.
type Notification struct {
	ID        string    `json:"id,omitempty"`
	Source    string    `json:"source,omitempty"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Empty reports whether the slot holds no notification
func (n Notification) Empty() bool {
	return n.ID == ""
}

// Channel is the session-scoped notification slot
type Channel struct {
	slot *observe.Value[Notification]
	now  func() time.Time
}

// NewChannel returns an empty channel
func NewChannel() *Channel {
	return &Channel{
		slot: observe.New(Notification{}),
		now:  time.Now,
	}
}

// Show posts text without a source; only Hide or Dismiss removes it
func (c *Channel) Show(text string) Notification {
	return c.ShowFrom("", text)
}

// ShowFrom posts text on behalf of source, replacing whatever is pending
func (c *Channel) ShowFrom(source, text string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Source:    source,
		Text:      text,
		CreatedAt: c.now(),
	}
	c.slot.Set(n)
	logrus.WithFields(logrus.Fields{
		"source": source,
		"id":     n.ID,
	}).Debugf("Notification shown: %s", text)
	return n
}

// Hide clears the slot regardless of who posted it
func (c *Channel) Hide() {
	c.slot.Update(func(Notification) Notification { return Notification{} })
}

// HideFrom clears the slot if its notification was posted by source and reports
// whether it did
func (c *Channel) HideFrom(source string) bool {
	cleared := false
	c.slot.Update(func(cur Notification) Notification {
		if cur.Empty() || cur.Source != source {
			return cur
		}
		cleared = true
		return Notification{}
	})
	return cleared
}

// Dismiss clears the slot if it still holds the notification with id. A newer
// notification that replaced it is left alone.
func (c *Channel) Dismiss(id string) bool {
	dismissed := false
	c.slot.Update(func(cur Notification) Notification {
		if cur.Empty() || cur.ID != id {
			return cur
		}
		dismissed = true
		return Notification{}
	})
	return dismissed
}

// Current returns the pending notification or the empty value
func (c *Channel) Current() Notification {
	return c.slot.Get()
}

// Subscribe streams the slot, starting with its current content
func (c *Channel) Subscribe() (<-chan Notification, func()) {
	return c.slot.Subscribe()
}
