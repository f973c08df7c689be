// Parses flags and runs the cruxpkg commands.
//
// Global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Stream step output to stderr.
//	-d, --debug     Enable debug output.
//	-c, --config    Settings file path.
//	-s, --socket    Daemon Unix socket path.
//
// Commands:
//
//	build RECIPE    Build packages, in-process or through the daemon (--remote).
//	serve           Run the build daemon.
//	status          Show the status of the daemon.
//	stop            Stop the daemon.
//	version         Show version information.
//
// Flags override build-time defaults set via linker flags and values from
// the settings file. After parsing, the level of the default logger is
// updated through [LogLevel].
package cli
