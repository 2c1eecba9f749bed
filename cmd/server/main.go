package main

import (
	"log/slog"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"timesheets/internal/app/server"
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		slog.Debug("maxprocs", "msg", format, "args", args)
	})); err != nil {
		slog.Warn("set GOMAXPROCS failed", "err", err)
	}

	if err := server.Run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}
