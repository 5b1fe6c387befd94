package cli

import (
	"io"
	"log/slog"
	"os"

	"steadymic/internal/bootstrap"
	"steadymic/internal/config"
	"steadymic/internal/ports"
)

// Env holds injectable dependencies for CLI commands.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer

	LoadConfig func() (config.Config, error)
	Build      func(cfg config.Config, transcripts ports.TranscriptSink, logger *slog.Logger) (bootstrap.Services, error)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Env {
	return &Env{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		LoadConfig: config.Load,
		Build:      bootstrap.Build,
	}
}
