package main

import (
	"log/slog"

	"github.com/urfave/cli"

	"github.com/chazu/strew/pkg/logging"
)

// setupLogging installs a text logger on the app's error writer. Warnings
// are always shown; -v adds progress and -vv adds sampling detail.
func setupLogging(ctx *cli.Context) {
	level := slog.LevelWarn
	if ctx.GlobalBool("v") {
		level = slog.LevelInfo
	}
	if ctx.GlobalBool("vv") {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(ctx.App.ErrWriter, &slog.HandlerOptions{Level: level})
	logging.SetLogger(slog.New(h))
}
