package store

import (
	"encoding/json"
	"sync"
)

// notifier is the process-local change-feed used by the memory and GORM
// backends. Delivery happens on a fresh goroutine so a listener may call
// back into the store without deadlocking.
type notifier struct {
	mu   sync.RWMutex
	next int
	subs map[int]subscription
}

type subscription struct {
	parent string
	fn     ChangeFunc
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]subscription)}
}

func (n *notifier) subscribe(parent string, fn ChangeFunc) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	n.subs[id] = subscription{parent: parent, fn: fn}

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *notifier) notify(path string, record json.RawMessage) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, sub := range n.subs {
		if underneath(sub.parent, path) {
			go sub.fn(path, record)
		}
	}
}
