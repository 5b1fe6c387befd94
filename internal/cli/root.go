// Package cli implements the steadymic command line.
package cli

import (
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"
)

// NewRootCmd builds the command tree.
func NewRootCmd(env *Env, version string) *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:           "steadymic",
		Short:         "Keep speech recognition listening through drops and restarts",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(ListenCmd(env, &debug))
	root.AddCommand(ClassifyCmd(env))
	return root
}

// initLogging installs the colored default handler. level comes from configuration;
// debug overrides it.
func initLogging(level string, debug bool) slog.Level {
	slogLevel := parseLevel(level)
	if debug {
		slogLevel = slog.LevelDebug
	}
	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return slogLevel
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
