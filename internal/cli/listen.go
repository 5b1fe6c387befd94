package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"steadymic/internal/domain"
	"steadymic/internal/providers/deepgram"
	"steadymic/internal/telemetry"
)

type listenOptions struct {
	addr     string
	noServer bool
	notify   bool
	duration time.Duration
}

// ListenCmd runs the continuity engine against Deepgram until interrupted.
func ListenCmd(env *Env, debug *bool) *cobra.Command {
	var opts listenOptions

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Listen continuously and print final transcripts",
		Long: `Start speech recognition and keep it running.

Silence restarts are handled transparently and an unannounced drop gets one
automatic restart. Fatal errors stop listening and are reported on stderr,
to the metrics endpoint and, when enabled, as a desktop notification.
Press Ctrl+C to stop.`,
		Example: `  steadymic listen
  steadymic listen --addr 127.0.0.1:9500 --notify
  steadymic listen --duration 10m --no-server`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd.Context(), env, opts, *debug)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Telemetry listen address (overrides configuration)")
	cmd.Flags().BoolVar(&opts.noServer, "no-server", false, "Do not serve /health, /state and /metrics")
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "Show desktop notifications on failure and recovery")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	return cmd
}

func runListen(ctx context.Context, env *Env, opts listenOptions, debug bool) error {
	cfg, err := env.LoadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg.Logging.Level, debug)
	logger := slog.Default()

	if strings.TrimSpace(cfg.Deepgram.APIKey) == "" {
		return fmt.Errorf("listen: %w", deepgram.ErrMissingAPIKey)
	}
	if opts.addr != "" {
		cfg.Telemetry.ListenAddr = opts.addr
	}
	if opts.notify {
		cfg.Notify.Enabled = true
	}

	flush, err := telemetry.InitSentry(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("sentry disabled", "error", err)
	}
	defer flush()

	services, err := env.Build(cfg, &transcriptPrinter{w: env.Stdout}, logger)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	monitor := services.Monitor

	unsubscribe := monitor.Subscribe(func(snap domain.Snapshot) {
		if snap.State == domain.StateError {
			fmt.Fprintf(env.Stderr, "listening stopped: %s\n", describe(snap))
		}
	})
	defer unsubscribe()

	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return monitor.Run(gctx)
	})

	if !opts.noServer {
		server := services.Server()
		g.Go(func() error {
			logger.Info("telemetry server listening", "addr", cfg.Telemetry.ListenAddr)
			return server.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		})
	}

	if err := monitor.Start(); err != nil {
		return err
	}

	err = g.Wait()
	if text := services.Transcripts.Text(); text != "" {
		logger.Info("session transcript", "text", text)
	}
	if err != nil {
		return err
	}
	// Ctrl+C and --duration are the normal ways out of listen.
	logger.Info("listening stopped", "state", monitor.GetState().State)
	return nil
}

func describe(snap domain.Snapshot) string {
	if snap.Message == "" {
		return string(snap.Reason)
	}
	return fmt.Sprintf("%s (%s)", snap.Message, snap.Reason)
}

// transcriptPrinter writes final transcripts one per line.
type transcriptPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *transcriptPrinter) PartialTranscript(string) {}

func (p *transcriptPrinter) FinalTranscript(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, text)
}
