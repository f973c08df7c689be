package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"golang.org/x/sys/unix"

	"github.com/cruciblehq/cruxpkg/internal"
)

// Level of the default logger. The handler installed by main reads it, so
// flags parsed after startup take effect immediately.
var LogLevel = new(slog.LevelVar)

// Represents the root command for cruxpkg.
var RootCmd struct {
	Quiet   bool       `short:"q" help:"Suppress informational output."`
	Verbose bool       `short:"v" help:"Stream step output to stderr."`
	Debug   bool       `short:"d" help:"Enable debug output."`
	Config  string     `short:"c" help:"Override the settings file path." placeholder:"PATH" type:"path"`
	Socket  string     `short:"s" help:"Override the daemon Unix socket path." placeholder:"PATH" type:"path"`
	Build   BuildCmd   `cmd:"" help:"Build packages from a recipe."`
	Serve   ServeCmd   `cmd:"" help:"Run the build daemon."`
	Status  StatusCmd  `cmd:"" help:"Show the status of the build daemon."`
	Stop    StopCmd    `cmd:"" help:"Stop the build daemon."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Builds packages for several target distributions from one recipe.\n\nEach target is built in its own container; configure, build and install stages run in order and the install tree is collected into a package manifest."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Applies the logging flags on top of the link-time defaults.
func configureLogger() {
	internal.SetDebug(RootCmd.Debug || internal.IsDebug())
	internal.SetQuiet(RootCmd.Quiet || internal.IsQuiet())
	internal.SetVerbose(RootCmd.Verbose || internal.IsVerbose())

	LogLevel.Set(Level())
}

// Returns the log level for the current modes.
func Level() slog.Level {
	if internal.IsDebug() {
		return slog.LevelDebug
	}
	if internal.IsQuiet() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Whether the given file is an interactive terminal.
func isatty(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
