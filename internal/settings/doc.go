// Package settings loads the cruxpkg configuration file.
//
// The file is TOML and lives at [paths.ConfigFile] unless another path is
// given. A missing file yields [Default]; keys present in the file replace
// the defaults one by one. Unknown keys are rejected so that typos do not
// go unnoticed.
//
//	[containerd]
//	address     = "/run/containerd/containerd.sock"
//	namespace   = "cruxpkg"
//	snapshotter = "overlayfs"
//
//	[build]
//	parallelism = 4
//	job_timeout = "45m"
//	output_dir  = "/var/lib/cruxpkg/packages"
//
//	[images]
//	rocky9 = "rockylinux/rockylinux:9"
//
//	[daemon]
//	socket = "/run/cruxpkg/cruxpkg.sock"
//
// Example usage:
//
//	s, err := settings.Load("")
//	if err != nil {
//	    return err
//	}
//	rt, err := runtime.New(s.Runtime())
package settings
