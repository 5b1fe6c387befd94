package usecase

import (
	"io"
	"log/slog"
	"testing"

	"steadymic/internal/domain"
)

func TestListenerNotifierBroadcastOrder(t *testing.T) {
	t.Parallel()

	notifier := NewListenerNotifier(nil)
	var order []string
	notifier.Subscribe(func(domain.Snapshot) { order = append(order, "a") })
	notifier.Subscribe(func(domain.Snapshot) { order = append(order, "b") })

	notifier.Broadcast(domain.Snapshot{State: domain.StateListening})

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected delivery order: %v", order)
	}
}

func TestListenerNotifierUnsubscribe(t *testing.T) {
	t.Parallel()

	notifier := NewListenerNotifier(nil)
	calls := 0
	unsubscribe := notifier.Subscribe(func(domain.Snapshot) { calls++ })
	keep := notifier.Subscribe(func(domain.Snapshot) {})
	defer keep()

	notifier.Broadcast(domain.Snapshot{})
	unsubscribe()
	unsubscribe()
	notifier.Broadcast(domain.Snapshot{})

	if calls != 1 {
		t.Fatalf("expected one delivery before unsubscribe, got %d", calls)
	}
	if notifier.Len() != 1 {
		t.Fatalf("double unsubscribe removed another listener, len=%d", notifier.Len())
	}
}

func TestListenerNotifierIsolatesPanics(t *testing.T) {
	t.Parallel()

	notifier := NewListenerNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var got []domain.RecognitionState
	notifier.Subscribe(func(domain.Snapshot) { panic("listener bug") })
	notifier.Subscribe(func(s domain.Snapshot) { got = append(got, s.State) })

	notifier.Broadcast(domain.Snapshot{State: domain.StateError})

	if len(got) != 1 || got[0] != domain.StateError {
		t.Fatalf("panicking listener blocked delivery: %v", got)
	}
}

func TestListenerNotifierUnsubscribeDuringBroadcast(t *testing.T) {
	t.Parallel()

	notifier := NewListenerNotifier(nil)
	var unsubscribe func()
	calls := 0
	unsubscribe = notifier.Subscribe(func(domain.Snapshot) {
		calls++
		unsubscribe()
	})

	notifier.Broadcast(domain.Snapshot{})
	notifier.Broadcast(domain.Snapshot{})

	if calls != 1 {
		t.Fatalf("expected one delivery, got %d", calls)
	}
}

func TestListenerNotifierNilListener(t *testing.T) {
	t.Parallel()

	notifier := NewListenerNotifier(nil)
	notifier.Subscribe(nil)()
	if notifier.Len() != 0 {
		t.Fatalf("nil listener must not be registered")
	}
}
