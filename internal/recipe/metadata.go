package recipe

// Returns the architecture name used by Debian packages.
//
// An empty architecture maps to "all".
func (m Metadata) DebArch() string {
	switch m.Arch {
	case "":
		return "all"
	case "amd64", "x86_64":
		return "amd64"
	case "x86", "i386", "i686":
		return "i386"
	case "aarch64", "arm64":
		return "arm64"
	default:
		return m.Arch
	}
}

// Returns the architecture name used by RPM packages.
//
// An empty architecture maps to "noarch".
func (m Metadata) RPMArch() string {
	switch m.Arch {
	case "":
		return "noarch"
	case "amd64", "x86_64":
		return "x86_64"
	case "x86", "i386", "i686":
		return "x86"
	case "aarch64", "arm64":
		return "aarch64"
	default:
		return m.Arch
	}
}

// Returns rpm.release, falling back to the release and then to "0".
func (m Metadata) RPMRelease() string {
	switch {
	case m.RPM.Release != "":
		return m.RPM.Release
	case m.Release != "":
		return m.Release
	}
	return "0"
}
