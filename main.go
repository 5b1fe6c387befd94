package main

import (
	"embed"
	"log/slog"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"steadymic/internal/config"
	"steadymic/internal/telemetry"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	app := NewApp()

	if cfg, err := config.Load(); err == nil {
		flush, err := telemetry.InitSentry(cfg.Telemetry, slog.Default())
		if err != nil {
			slog.Warn("sentry disabled", "error", err)
		}
		app.flushSentry = flush
	}

	err := wails.Run(&options.App{
		Title:     "SteadyMic",
		Width:     420,
		Height:    320,
		MinWidth:  320,
		MinHeight: 240,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		slog.Error("wails run failed", "error", err)
		os.Exit(1)
	}
}
