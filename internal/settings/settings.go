package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cruciblehq/cruxpkg/internal/paths"
	"github.com/cruciblehq/cruxpkg/internal/runtime"
)

// Default per-job time limit.
const DefaultJobTimeout = time.Hour

// Configuration of cruxpkg.
type Settings struct {
	Containerd Containerd        `toml:"containerd"` // Runtime connection.
	Build      Build             `toml:"build"`      // Build defaults.
	Images     map[string]string `toml:"images"`     // Target image identifier to image reference.
	Daemon     Daemon            `toml:"daemon"`     // Daemon mode.
}

// Containerd connection settings.
type Containerd struct {
	Address     string `toml:"address"`
	Namespace   string `toml:"namespace"`
	Snapshotter string `toml:"snapshotter"`
	Runtime     string `toml:"runtime"`
	Platform    string `toml:"platform"`
}

// Build defaults, overridable from the command line.
type Build struct {
	Parallelism int           `toml:"parallelism"` // Maximum concurrent jobs; 0 runs every target at once.
	JobTimeout  time.Duration `toml:"job_timeout"` // Per-job time limit; 0 disables it.
	OutputDir   string        `toml:"output_dir"`  // Directory receiving package manifests.
	StageDir    string        `toml:"stage_dir"`   // Root of the host staging directories; empty disables staging.
}

// Daemon settings.
type Daemon struct {
	Socket string `toml:"socket"` // Unix socket path.
}

// Returns the settings used when no file is present.
func Default() *Settings {
	return &Settings{
		Containerd: Containerd{
			Address:     runtime.DefaultAddress,
			Namespace:   runtime.DefaultNamespace,
			Snapshotter: runtime.DefaultSnapshotter,
			Runtime:     runtime.DefaultOCIRuntime,
		},
		Build: Build{
			JobTimeout: DefaultJobTimeout,
			OutputDir:  paths.Output(),
		},
		Images: map[string]string{},
		Daemon: Daemon{Socket: paths.Socket()},
	}
}

// Loads the settings file at path, or at [paths.ConfigFile] when path is
// empty.
//
// A missing file is not an error and yields [Default].
func Load(path string) (*Settings, error) {
	if path == "" {
		path = paths.ConfigFile()
	}

	s := Default()
	meta, err := toml.DecodeFile(path, s)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		var perr toml.ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidSettings, path, perr.ErrorWithPosition())
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSettingsFile, path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: %s: unknown keys %s", ErrInvalidSettings, path, strings.Join(keys, ", "))
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Checks value ranges.
func (s *Settings) Validate() error {
	var v []string
	if s.Build.Parallelism < 0 {
		v = append(v, fmt.Sprintf("build.parallelism %d is negative", s.Build.Parallelism))
	}
	if s.Build.JobTimeout < 0 {
		v = append(v, fmt.Sprintf("build.job_timeout %s is negative", s.Build.JobTimeout))
	}
	if s.Containerd.Address == "" {
		v = append(v, "containerd.address is empty")
	}
	for image, ref := range s.Images {
		if strings.TrimSpace(ref) == "" {
			v = append(v, fmt.Sprintf("images.%s is empty", image))
		}
	}
	if len(v) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(v, "; "))
	}
	return nil
}

// Returns the containerd runtime configuration.
func (s *Settings) Runtime() runtime.Config {
	return runtime.Config{
		Address:     s.Containerd.Address,
		Namespace:   s.Containerd.Namespace,
		Snapshotter: s.Containerd.Snapshotter,
		OCIRuntime:  s.Containerd.Runtime,
		Platform:    s.Containerd.Platform,
		Images:      s.Images,
	}
}
