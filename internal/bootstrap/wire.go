package bootstrap

import (
	"log/slog"

	"steadymic/internal/audio"
	"steadymic/internal/config"
	"steadymic/internal/notify"
	"steadymic/internal/ports"
	"steadymic/internal/providers/deepgram"
	"steadymic/internal/telemetry"
	"steadymic/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config      config.Config
	Monitor     *usecase.ContinuityMonitor
	Transcripts *usecase.TranscriptLog
	Metrics     *telemetry.Metrics
	Reporter    *telemetry.Reporter
	Notifier    *notify.Notifier
}

// Server builds the telemetry HTTP server for the assembled monitor.
func (s Services) Server() *telemetry.Server {
	return telemetry.NewServer(s.Monitor, s.Metrics, s.Config.Telemetry.ListenAddr)
}

// Build wires all backend dependencies for the given configuration. Recognized text
// is forwarded to transcripts, which may be nil.
func Build(cfg config.Config, transcripts ports.TranscriptSink, logger *slog.Logger) (Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	audioConfig := ports.AudioConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
	}
	capture := audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand)
	transcriptLog := usecase.NewTranscriptLog(transcripts)

	recognizers := deepgram.NewFactory(
		deepgram.Config{
			APIKey:         cfg.Deepgram.APIKey,
			APIBaseURL:     cfg.Deepgram.APIBaseURL,
			Model:          cfg.Deepgram.Model,
			Language:       cfg.Deepgram.Language,
			SmartFormat:    cfg.Deepgram.SmartFormat,
			ChunkSize:      cfg.Audio.ChunkSize,
			SilenceTimeout: cfg.Engine.SilenceTimeout,
		},
		capture,
		audioConfig,
		transcriptLog,
		logger.With("component", "deepgram"),
	)

	monitor, err := usecase.NewContinuityMonitor(
		usecase.Deps{
			Recognizers: recognizers,
			Permissions: &audio.DeviceProbe{
				Capture: capture,
				Config:  audioConfig,
				Logger:  logger.With("component", "device_probe"),
			},
			Logger: logger.With("component", "monitor"),
		},
		usecase.Config{
			SuppressionTTL:      cfg.Engine.SuppressionTTL,
			RestartTimeout:      cfg.Engine.RestartTimeout,
			RestartBackoffBase:  cfg.Engine.RestartBackoffBase,
			RestartBackoffMax:   cfg.Engine.RestartBackoffMax,
			MaxConsecutiveDrops: cfg.Engine.MaxConsecutiveDrops,
			StableWindow:        cfg.Engine.StableWindow,
		},
	)
	if err != nil {
		return Services{}, err
	}

	metrics := telemetry.NewMetrics()
	reporter := telemetry.NewReporter(nil, logger.With("component", "sentry"))
	notifier := notify.New(cfg.Notify.Enabled, logger.With("component", "notify"))

	metrics.Observe(monitor.GetState())
	monitor.Subscribe(metrics.Observe)
	monitor.Subscribe(reporter.Observe)
	monitor.Subscribe(notifier.Observe)

	return Services{
		Config:      cfg,
		Monitor:     monitor,
		Transcripts: transcriptLog,
		Metrics:     metrics,
		Reporter:    reporter,
		Notifier:    notifier,
	}, nil
}
