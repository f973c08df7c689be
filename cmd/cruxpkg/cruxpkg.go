package main

import (
	"log/slog"
	"os"

	"github.com/cruciblehq/cruxpkg/internal"
	"github.com/cruciblehq/cruxpkg/internal/cli"
)

// The entry point for cruxpkg.
//
// Initializes logging, displays startup information, and executes the root
// command. If any error occurs during execution, it exits with a non-zero code.
func main() {
	slog.SetDefault(logger())

	slog.Debug("build", "version", internal.VersionString())

	slog.Debug("cruxpkg is running",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	if err := cli.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// Creates a stderr logger seeded from build-time linker flags.
//
// The level is adjusted after flag parsing via cli.Execute.
func logger() *slog.Logger {
	cli.LogLevel.Set(cli.Level())
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cli.LogLevel})
	return slog.New(handler)
}

// Returns the current working directory or "(unknown)".
func cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return cwd
}
