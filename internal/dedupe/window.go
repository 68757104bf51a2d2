// Package dedupe remembers recently seen webhook deliveries.
package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key    string
	seenAt time.Time
}

// Window tracks keys seen within a TTL, holding at most maxSize keys (oldest evicted first).
type Window struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	index   map[string]*list.Element
	order   *list.List
	now     func() time.Time
}

// NewWindow creates a window
func NewWindow(ttl time.Duration, maxSize int) *Window {
	return &Window{
		ttl:     ttl,
		maxSize: maxSize,
		index:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Seen records key and reports whether it was already recorded within the TTL.
func (w *Window) Seen(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.expireLocked(now)

	if el, ok := w.index[key]; ok {
		el.Value.(*entry).seenAt = now
		w.order.MoveToBack(el)
		return true
	}

	if w.order.Len() >= w.maxSize {
		w.removeLocked(w.order.Front())
	}
	w.index[key] = w.order.PushBack(&entry{key: key, seenAt: now})
	return false
}

// Forget drops key so a later delivery is processed again
func (w *Window) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if el, ok := w.index[key]; ok {
		w.removeLocked(el)
	}
}

// Len returns the number of remembered keys
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order.Len()
}

// expireLocked drops entries older than the TTL; the list is ordered by last sighting.
func (w *Window) expireLocked(now time.Time) {
	for el := w.order.Front(); el != nil; el = w.order.Front() {
		if now.Sub(el.Value.(*entry).seenAt) < w.ttl {
			return
		}
		w.removeLocked(el)
	}
}

func (w *Window) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	w.order.Remove(el)
	delete(w.index, el.Value.(*entry).key)
}
