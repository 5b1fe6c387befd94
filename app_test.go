package main

import (
	"context"
	"errors"
	"testing"

	"steadymic/internal/domain"
)

func TestStateMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.StateReason]string{
		domain.ReasonInitial:            "Ready",
		domain.ReasonStartRequested:     "Starting microphone",
		domain.ReasonRecoveryRequested:  "Starting microphone",
		domain.ReasonListening:          "Listening",
		domain.ReasonRestartCompleted:   "Listening again",
		domain.ReasonTransparentRestart: "Restarting after silence",
		domain.ReasonUnannouncedDrop:    "Recognition dropped; restarting",
		domain.ReasonPaused:             "Paused",
		domain.ReasonStopped:            "Stopped",
	}

	for reason, want := range cases {
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := stateMessage(domain.Snapshot{Reason: reason}); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := stateMessage(domain.Snapshot{Reason: domain.ReasonFatalError, Message: "Check your network connection"}); got != "Check your network connection" {
		t.Fatalf("expected engine message to win, got %q", got)
	}
	if got := stateMessage(domain.Snapshot{Reason: "unknown"}); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}
	if _, err := app.StartListening(); err == nil {
		t.Fatalf("expected start to fail before startup")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
}

func TestGetStateWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	snap := app.GetState()
	if snap.State != domain.StateIdle || snap.Reason != domain.ReasonInitial {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	app.bootErr = errors.New("boot")
	snap = app.GetState()
	if snap.State != domain.StateError || snap.Message != "boot" {
		t.Fatalf("unexpected boot snapshot: %+v", snap)
	}
	if stats := app.GetErrorStats(); stats.ErrorCount != 0 {
		t.Fatalf("unexpected error stats: %+v", stats)
	}
}

func TestEventsAreEmittedWithContext(t *testing.T) {
	t.Parallel()

	type emitted struct {
		name    string
		payload interface{}
	}
	var got []emitted

	app := &App{emit: func(_ context.Context, name string, data ...interface{}) {
		got = append(got, emitted{name: name, payload: data[0]})
	}}

	app.FinalTranscript("dropped before startup")
	if len(got) != 0 {
		t.Fatalf("expected nothing without a context, got %v", got)
	}

	app.ctx = context.Background()
	app.PartialTranscript("hel")
	app.FinalTranscript("hello")
	app.stateChanged(domain.Snapshot{State: domain.StateListening, Reason: domain.ReasonListening})

	if len(got) != 3 {
		t.Fatalf("expected three events, got %v", got)
	}
	if got[0].name != eventPartial || got[1].name != eventFinal || got[2].name != eventState {
		t.Fatalf("unexpected event order: %v", got)
	}
	state, ok := got[2].payload.(map[string]any)
	if !ok || state["state"] != "listening" || state["message"] != "Listening" {
		t.Fatalf("unexpected state payload: %#v", got[2].payload)
	}
}
