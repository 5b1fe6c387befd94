package usecase

import (
	"fmt"
	"log/slog"
	"sync"

	"steadymic/internal/domain"
)

// Listener receives a full snapshot after every state transition.
type Listener func(domain.Snapshot)

// ListenerNotifier broadcasts snapshots to subscribers in subscription order.
type ListenerNotifier struct {
	logger *slog.Logger

	mu        sync.Mutex
	nextID    uint64
	listeners []subscription
}

type subscription struct {
	id uint64
	fn Listener
}

func NewListenerNotifier(logger *slog.Logger) *ListenerNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListenerNotifier{logger: logger}
}

// Subscribe registers fn and returns a handle that removes it. The handle is safe to call twice.
func (n *ListenerNotifier) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.listeners = append(n.listeners, subscription{id: id, fn: fn})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

// Len returns the number of active subscribers.
func (n *ListenerNotifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

// Broadcast delivers snapshot to every subscriber. A panicking subscriber does not
// prevent delivery to the others.
func (n *ListenerNotifier) Broadcast(snapshot domain.Snapshot) {
	n.mu.Lock()
	listeners := make([]subscription, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.Unlock()

	for _, sub := range listeners {
		n.deliver(sub, snapshot)
	}
}

func (n *ListenerNotifier) deliver(sub subscription, snapshot domain.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("listener panicked",
				"listener", sub.id,
				"state", snapshot.State,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	sub.fn(snapshot)
}

func (n *ListenerNotifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, sub := range n.listeners {
		if sub.id == id {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}
