// Package notification holds the operator notification model and its cache rules.
package notification

import "time"

// Notification is a server-issued message for the signed-in operator.
type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Page is one page of notifications as returned by the list endpoint.
type Page struct {
	Items      []Notification `json:"items"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
}

// State is the lifecycle of the realtime connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// List is an ordered notification cache that never holds two entries with the same ID.
// The zero value is ready to use. List is not safe for concurrent use.
type List struct {
	items []Notification
	index map[int64]int
}

// Len returns the number of cached notifications.
func (l *List) Len() int { return len(l.items) }

// Items returns a copy of the cached notifications in display order.
func (l *List) Items() []Notification {
	out := make([]Notification, len(l.items))
	copy(out, l.items)
	return out
}

// Has reports whether id is cached.
func (l *List) Has(id int64) bool {
	_, ok := l.index[id]
	return ok
}

// Get returns the cached notification with id.
func (l *List) Get(id int64) (Notification, bool) {
	i, ok := l.index[id]
	if !ok {
		return Notification{}, false
	}
	return l.items[i], true
}

// Prepend adds n at the head unless its ID is already present.
func (l *List) Prepend(n Notification) bool {
	if l.Has(n.ID) {
		return false
	}
	l.items = append([]Notification{n}, l.items...)
	l.reindex()
	return true
}

// Append adds every notification whose ID is not yet present, in order,
// and returns how many were added.
func (l *List) Append(ns ...Notification) int {
	added := 0
	for _, n := range ns {
		if l.Has(n.ID) {
			continue
		}
		l.items = append(l.items, n)
		if l.index == nil {
			l.index = make(map[int64]int)
		}
		l.index[n.ID] = len(l.items) - 1
		added++
	}
	return added
}

// Replace drops the cache and loads ns, skipping duplicate IDs within ns.
func (l *List) Replace(ns []Notification) {
	l.items = nil
	l.index = nil
	l.Append(ns...)
}

// MarkRead flips IsRead on the given ids and returns how many were unread before.
func (l *List) MarkRead(ids []int64) int {
	flipped := 0
	for _, id := range ids {
		i, ok := l.index[id]
		if !ok {
			continue
		}
		if !l.items[i].IsRead {
			flipped++
		}
		l.items[i].IsRead = true
	}
	return flipped
}

// Remove deletes id from the cache and returns the removed entry.
func (l *List) Remove(id int64) (Notification, bool) {
	i, ok := l.index[id]
	if !ok {
		return Notification{}, false
	}
	n := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.reindex()
	return n, true
}

// Unread counts cached notifications that are not read.
func (l *List) Unread() int {
	c := 0
	for _, n := range l.items {
		if !n.IsRead {
			c++
		}
	}
	return c
}

func (l *List) reindex() {
	l.index = make(map[int64]int, len(l.items))
	for i, n := range l.items {
		l.index[n.ID] = i
	}
}
