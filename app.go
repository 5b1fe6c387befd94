package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"steadymic/internal/bootstrap"
	"steadymic/internal/config"
	"steadymic/internal/domain"
	"steadymic/internal/usecase"
)

const (
	eventState   = "steadymic:state"
	eventPartial = "steadymic:partial"
	eventFinal   = "steadymic:final"
)

// App is the Wails application root.
type App struct {
	ctx  context.Context
	emit func(ctx context.Context, name string, data ...interface{})

	monitor *usecase.ContinuityMonitor
	cfg     config.Config
	bootErr error

	stopRun     context.CancelFunc
	flushSentry func()
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	cfg, err := config.Load()
	if err != nil {
		a.fail(err)
		return
	}
	a.cfg = cfg

	services, err := bootstrap.Build(cfg, a, slog.Default())
	if err != nil {
		a.fail(err)
		return
	}
	a.monitor = services.Monitor
	a.monitor.Subscribe(a.stateChanged)

	runCtx, cancel := context.WithCancel(ctx)
	a.stopRun = cancel
	go func() {
		if err := a.monitor.Run(runCtx); err != nil {
			slog.Error("continuity monitor exited", "error", err)
		}
	}()

	a.stateChanged(a.monitor.GetState())
}

func (a *App) shutdown(context.Context) {
	if a.stopRun != nil {
		a.stopRun()
	}
	if a.flushSentry != nil {
		a.flushSentry()
	}
}

// StartListening starts or recovers listening. The outcome arrives as state events.
func (a *App) StartListening() (domain.Snapshot, error) {
	return a.control(func() error { return a.monitor.Start() })
}

// StopListening ends the logical session.
func (a *App) StopListening() (domain.Snapshot, error) {
	return a.control(func() error { return a.monitor.Stop() })
}

func (a *App) PauseListening() (domain.Snapshot, error) {
	return a.control(func() error { return a.monitor.Pause() })
}

func (a *App) ResumeListening() (domain.Snapshot, error) {
	return a.control(func() error { return a.monitor.Resume() })
}

// GetState returns the latest snapshot, or an error snapshot when startup failed.
func (a *App) GetState() domain.Snapshot {
	if a.monitor == nil {
		if a.bootErr != nil {
			return domain.Snapshot{
				State:   domain.StateError,
				Reason:  domain.ReasonFatalError,
				Message: a.bootErr.Error(),
			}
		}
		return domain.Snapshot{State: domain.StateIdle, Reason: domain.ReasonInitial}
	}
	return a.monitor.GetState()
}

func (a *App) GetErrorStats() domain.ErrorStats {
	if a.monitor == nil {
		return domain.ErrorStats{}
	}
	return a.monitor.GetErrorStats()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":         "Deepgram",
		"model":            a.cfg.Deepgram.Model,
		"language":         a.cfg.Deepgram.Language,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"suppressionTTL":   a.cfg.Engine.SuppressionTTL.String(),
		"restartTimeout":   a.cfg.Engine.RestartTimeout.String(),
	}
}

func (a *App) control(fn func() error) (domain.Snapshot, error) {
	if err := a.requireReady(); err != nil {
		return domain.Snapshot{}, err
	}
	if err := fn(); err != nil {
		return domain.Snapshot{}, err
	}
	return a.monitor.GetState(), nil
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.monitor == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) fail(err error) {
	a.bootErr = err
	slog.Error("startup failed", "error", err)
	a.stateChanged(a.GetState())
}

// PartialTranscript emits live partial transcript text.
func (a *App) PartialTranscript(text string) {
	a.send(eventPartial, map[string]string{"text": text})
}

// FinalTranscript emits final transcript text.
func (a *App) FinalTranscript(text string) {
	a.send(eventFinal, map[string]string{"text": text})
}

func (a *App) stateChanged(snap domain.Snapshot) {
	a.send(eventState, map[string]any{
		"sessionId": snap.SessionID,
		"state":     string(snap.State),
		"reason":    string(snap.Reason),
		"message":   stateMessage(snap),
		"flags":     snap.Flags,
	})
}

func (a *App) send(name string, payload any) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

// stateMessage prefers the engine's own message and falls back to a label for the reason.
func stateMessage(snap domain.Snapshot) string {
	if snap.Message != "" {
		return snap.Message
	}
	switch snap.Reason {
	case domain.ReasonInitial:
		return "Ready"
	case domain.ReasonStartRequested, domain.ReasonRecoveryRequested:
		return "Starting microphone"
	case domain.ReasonListening:
		return "Listening"
	case domain.ReasonRestartCompleted:
		return "Listening again"
	case domain.ReasonTransparentRestart:
		return "Restarting after silence"
	case domain.ReasonUnannouncedDrop:
		return "Recognition dropped; restarting"
	case domain.ReasonRestarting:
		return "Restarting"
	case domain.ReasonPaused:
		return "Paused"
	case domain.ReasonResumed:
		return "Resuming"
	case domain.ReasonStopped:
		return "Stopped"
	default:
		return ""
	}
}
