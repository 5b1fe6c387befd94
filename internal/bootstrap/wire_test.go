package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"steadymic/internal/config"
	"steadymic/internal/domain"
)

func TestBuildSuccess(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	t.Setenv("STEADYMIC_CONFIG", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	services, err := Build(cfg, nil, quietLogger())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Monitor == nil || services.Metrics == nil || services.Transcripts == nil {
		t.Fatalf("expected assembled services, got %+v", services)
	}
	if got := services.Monitor.GetState().State; got != domain.StateIdle {
		t.Fatalf("expected idle monitor, got %s", got)
	}
	if services.Server() == nil {
		t.Fatalf("expected telemetry server")
	}
}

func TestBuildMissingAPIKeyFailsOnStart(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Audio.RecorderCommand = "ffmpeg"

	services, err := Build(cfg, nil, quietLogger())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	states := make(chan domain.Snapshot, 16)
	services.Monitor.Subscribe(func(snap domain.Snapshot) { states <- snap })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = services.Monitor.Run(ctx) }()

	if err := services.Monitor.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-states:
			if snap.State != domain.StateError {
				continue
			}
			if snap.Stats.LastErrorCode != domain.CodeNotAllowed {
				t.Fatalf("expected not-allowed, got %q", snap.Stats.LastErrorCode)
			}
			return
		case <-deadline:
			t.Fatalf("expected error state, last %+v", services.Monitor.GetState())
		}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
