package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/cruciblehq/cruxpkg/internal"
)

const (

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory for runtime files (sockets, PIDs).
//
//	Linux:   $XDG_RUNTIME_DIR/cruxpkg or /run/user/<uid>/cruxpkg
//	macOS:   ~/Library/Caches/cruxpkg/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, internal.Name)
	}
	return filepath.Join(xdg.CacheHome, internal.Name, "run")
}

// Default path to the Unix domain socket of the build daemon.
//
//	Linux:   $XDG_RUNTIME_DIR/cruxpkg/cruxpkg.sock
//	macOS:   ~/Library/Caches/cruxpkg/run/cruxpkg.sock
func Socket() string {
	return filepath.Join(Runtime(), internal.Name+".sock")
}

// Default path to the PID file of the build daemon.
func PIDFile() string {
	return filepath.Join(Runtime(), internal.Name+".pid")
}

// Default path to the configuration file.
//
//	Linux:   $XDG_CONFIG_HOME/cruxpkg/config.toml
//	macOS:   ~/Library/Application Support/cruxpkg/config.toml
func ConfigFile() string {
	return filepath.Join(xdg.ConfigHome, internal.Name, "config.toml")
}

// Default directory for package manifests.
//
//	Linux:   $XDG_DATA_HOME/cruxpkg/packages
//	macOS:   ~/Library/Application Support/cruxpkg/packages
func Output() string {
	return filepath.Join(xdg.DataHome, internal.Name, "packages")
}

// Default root of the host staging directories, one per run.
//
//	Linux:   $XDG_CACHE_HOME/cruxpkg/stage
//	macOS:   ~/Library/Caches/cruxpkg/stage
func Stage() string {
	return filepath.Join(xdg.CacheHome, internal.Name, "stage")
}
