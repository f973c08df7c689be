package recipe

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Native package format produced for a target.
type Format string

const (
	FormatDeb  Format = "deb"
	FormatRPM  Format = "rpm"
	FormatPkg  Format = "pkg"
	FormatApk  Format = "apk"
	FormatGzip Format = "gzip"
)

// Reports whether f is one of the known formats.
func (f Format) Valid() bool {
	switch f {
	case FormatDeb, FormatRPM, FormatPkg, FormatApk, FormatGzip:
		return true
	}
	return false
}

// Operating system of a target image.
type OS struct {
	Family  string // Distribution name, e.g. "debian" or "centos".
	Version string // Distribution version, e.g. "10" or "8". May be empty.
}

// Formats the OS as "family version", or just the family when the version
// is unknown.
func (o OS) String() string {
	if o.Version == "" {
		return o.Family
	}
	return o.Family + " " + o.Version
}

// Alternative spellings of distribution names found in image names.
var familyAliases = map[string]string{
	"archlinux":   "arch",
	"rockylinux":  "rocky",
	"almalinux":   "alma",
	"redhat":      "rhel",
	"ubi":         "rhel",
	"amazonlinux": "amazon",
	"oraclelinux": "oracle",
	"opensuse":    "suse",
	"sles":        "suse",
}

// Derives an OS from an image identifier or an explicit "family version"
// declaration.
//
// The last path component of the identifier is used. When it contains a
// separator (":", " ", "-" or "_") the part before it is the family and the
// rest the version ("rocky:9", "debian 10"). Otherwise the version starts at
// the first digit ("centos8", "ubuntu20.04").
func ParseOS(s string) OS {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}

	family, version := s, ""
	if i := strings.IndexAny(s, ": -_"); i > 0 {
		family, version = s[:i], strings.TrimLeft(s[i+1:], ": -_")
	} else if i := strings.IndexFunc(s, unicode.IsDigit); i > 0 {
		family, version = s[:i], s[i:]
	}

	if alias, ok := familyAliases[family]; ok {
		family = alias
	}
	return OS{Family: family, Version: version}
}

// Returns the package format native to an OS family.
//
// Unknown families produce [FormatGzip].
func DefaultFormat(family string) Format {
	switch family {
	case "debian", "ubuntu", "mint", "raspbian":
		return FormatDeb
	case "centos", "fedora", "rhel", "rocky", "alma", "amazon", "oracle", "suse":
		return FormatRPM
	case "arch", "manjaro":
		return FormatPkg
	case "alpine":
		return FormatApk
	default:
		return FormatGzip
	}
}

// One build destination.
type Target struct {
	Image  string // Image identifier, unique within a recipe.
	OS     OS     // Operating system of the image.
	Format Format // Package format produced for this target.
}

// Creates a target for an image, deriving the OS and format from its name.
func NewTarget(image string) Target {
	os := ParseOS(image)
	return Target{
		Image:  image,
		OS:     os,
		Format: DefaultFormat(os.Family),
	}
}

// Returns the image identifier.
func (t Target) String() string {
	return t.Image
}

// Returns a single path component naming the target.
//
// Bytes outside [A-Za-z0-9._+-] are percent-encoded, as are the names "."
// and "..", so distinct images never share a file name.
func (t Target) PathName() string {
	switch t.Image {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}

	var b strings.Builder
	for i := 0; i < len(t.Image); i++ {
		c := t.Image[i]
		if isPathByte(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isPathByte(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return c == '.' || c == '_' || c == '+' || c == '-'
}

// Wire representation of an image entry that declares more than the name.
type targetDoc struct {
	Name   string `json:"name"`
	Target string `json:"target,omitempty"`
	OS     string `json:"os,omitempty"`
}

// Accepts either a plain image name or an object with name, target format
// and OS declaration.
func (t *Target) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*t = NewTarget(name)
		return nil
	}

	var doc targetDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("image entry must be a string or an object: %w", err)
	}

	*t = NewTarget(doc.Name)
	if doc.OS != "" {
		t.OS = ParseOS(doc.OS)
		t.Format = DefaultFormat(t.OS.Family)
	}
	if doc.Target != "" {
		t.Format = Format(strings.ToLower(doc.Target))
	}
	return nil
}
