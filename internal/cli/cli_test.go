package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"steadymic/internal/bootstrap"
	"steadymic/internal/config"
	"steadymic/internal/domain"
	"steadymic/internal/ports"
	"steadymic/internal/providers/deepgram"
	"steadymic/internal/usecase"
)

func TestClassifyPrintsDecisions(t *testing.T) {
	var stdout bytes.Buffer
	env := &Env{Stdout: &stdout, Stderr: io.Discard}

	root := NewRootCmd(env, "test")
	root.SetArgs([]string{"classify", "no-speech", "Network", "service-not-allowed"})
	if err := root.Execute(); err != nil {
		t.Fatalf("classify failed: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{
		"no-speech", "suppress_next_termination",
		"Network", "Check your network connection",
		"service-not-allowed", "unknown", "fatal_stop",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestClassifyAllListsKnownCodes(t *testing.T) {
	var stdout bytes.Buffer
	env := &Env{Stdout: &stdout, Stderr: io.Discard}

	root := NewRootCmd(env, "test")
	root.SetArgs([]string{"classify", "--all"})
	if err := root.Execute(); err != nil {
		t.Fatalf("classify failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != len(usecase.KnownCodes())+1 {
		t.Fatalf("expected header plus one line per code, got:\n%s", stdout.String())
	}
}

func TestClassifyWithoutCodesIsUsageError(t *testing.T) {
	env := &Env{Stdout: io.Discard, Stderr: io.Discard}

	root := NewRootCmd(env, "test")
	root.SetArgs([]string{"classify"})
	err := root.Execute()
	if got := ExitCode(err); got != ExitUsage {
		t.Fatalf("expected usage exit code, got %d (%v)", got, err)
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "interrupt", err: fmt.Errorf("run: %w", context.Canceled), want: ExitInterrupt},
		{name: "usage", err: errors.New(`unknown flag: --bogus`), want: ExitUsage},
		{name: "config", err: fmt.Errorf("%w: parse x.yaml", config.ErrInvalidConfig), want: ExitSetup},
		{name: "api key", err: fmt.Errorf("listen: %w", deepgram.ErrMissingAPIKey), want: ExitSetup},
		{name: "other", err: errors.New("boom"), want: ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExitCode(tt.err); got != tt.want {
				t.Fatalf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestListenRequiresAPIKey(t *testing.T) {
	env := &Env{
		Stdout:     io.Discard,
		Stderr:     io.Discard,
		LoadConfig: func() (config.Config, error) { return config.Config{}, nil },
		Build: func(config.Config, ports.TranscriptSink, *slog.Logger) (bootstrap.Services, error) {
			t.Fatalf("build must not run without an API key")
			return bootstrap.Services{}, nil
		},
	}

	root := NewRootCmd(env, "test")
	root.SetArgs([]string{"listen", "--no-server"})
	err := root.Execute()
	if !errors.Is(err, deepgram.ErrMissingAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
	if got := ExitCode(err); got != ExitSetup {
		t.Fatalf("expected setup exit code, got %d", got)
	}
}

func TestListenReportsConfigError(t *testing.T) {
	env := &Env{
		Stdout: io.Discard,
		Stderr: io.Discard,
		LoadConfig: func() (config.Config, error) {
			return config.Config{}, fmt.Errorf("%w: read missing.yaml", config.ErrInvalidConfig)
		},
	}

	root := NewRootCmd(env, "test")
	root.SetArgs([]string{"listen"})
	if got := ExitCode(root.Execute()); got != ExitSetup {
		t.Fatalf("expected setup exit code, got %d", got)
	}
}

func TestListenPrintsFinalTranscripts(t *testing.T) {
	stdout := &syncBuffer{}
	env := &Env{
		Stdout: stdout,
		Stderr: io.Discard,
		LoadConfig: func() (config.Config, error) {
			cfg := config.Config{}
			cfg.Deepgram.APIKey = "test-key"
			return cfg, nil
		},
		Build: func(cfg config.Config, sink ports.TranscriptSink, logger *slog.Logger) (bootstrap.Services, error) {
			transcripts := usecase.NewTranscriptLog(sink)
			monitor, err := usecase.NewContinuityMonitor(usecase.Deps{
				Recognizers: &scriptedFactory{sink: transcripts},
				Logger:      logger,
			}, usecase.DefaultConfig())
			if err != nil {
				return bootstrap.Services{}, err
			}
			return bootstrap.Services{Config: cfg, Monitor: monitor, Transcripts: transcripts}, nil
		},
	}

	root := NewRootCmd(env, "test")
	root.SetArgs([]string{"listen", "--no-server", "--duration", "300ms"})
	if err := root.Execute(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "hello there") {
		t.Fatalf("expected final transcript on stdout, got %q", stdout.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	if parseLevel("debug") != slog.LevelDebug || parseLevel("warn") != slog.LevelWarn ||
		parseLevel("error") != slog.LevelError || parseLevel("") != slog.LevelInfo {
		t.Fatalf("unexpected level mapping")
	}
}

// scriptedFactory hands out recognizers that start cleanly and speak one final line.
type scriptedFactory struct {
	sink ports.TranscriptSink
}

func (f *scriptedFactory) NewRecognizer(context.Context) (ports.Recognizer, error) {
	return &scriptedRecognizer{sink: f.sink, events: make(chan domain.RecognitionEvent, 8)}, nil
}

type scriptedRecognizer struct {
	sink   ports.TranscriptSink
	events chan domain.RecognitionEvent

	mu      sync.Mutex
	running bool
	closed  bool
}

func (r *scriptedRecognizer) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.running {
		return nil
	}
	r.running = true
	r.events <- domain.Started()
	r.sink.FinalTranscript("hello there")
	return nil
}

func (r *scriptedRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.running {
		return nil
	}
	r.running = false
	r.events <- domain.Ended()
	return nil
}

func (r *scriptedRecognizer) Events() <-chan domain.RecognitionEvent { return r.events }

func (r *scriptedRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	return nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
