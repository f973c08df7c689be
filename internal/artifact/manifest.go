package artifact

import (
	"io/fs"
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Type of a manifest entry.
type Kind string

const (
	KindFile     Kind = "file"
	KindDir      Kind = "dir"
	KindSymlink  Kind = "symlink"
	KindHardlink Kind = "hardlink"
)

// One collected filesystem entry.
type Entry struct {
	Path   string        `json:"path"`             // Slash separated path relative to the output directory.
	Kind   Kind          `json:"kind"`             // Entry type.
	Mode   fs.FileMode   `json:"mode"`             // Permission bits.
	Size   int64         `json:"size,omitempty"`   // Content size of regular files.
	Digest digest.Digest `json:"digest,omitempty"` // Content digest of regular files.
	Link   string        `json:"link,omitempty"`   // Link target of symlinks and hardlinks.
}

// Describes the collected contents of an output directory.
//
// Entries are sorted by path.
type Manifest struct {
	Entries []Entry `json:"entries"`
}

// Returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.Entries)
}

// Returns the paths of all entries in order.
func (m *Manifest) Paths() []string {
	paths := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		paths[i] = e.Path
	}
	return paths
}

// Looks up an entry by path.
func (m *Manifest) Lookup(path string) (Entry, bool) {
	i, ok := slices.BinarySearchFunc(m.Entries, path, func(e Entry, p string) int {
		return strings.Compare(e.Path, p)
	})
	if !ok {
		return Entry{}, false
	}
	return m.Entries[i], true
}

// Returns the total content size of the regular files.
func (m *Manifest) Size() int64 {
	var n int64
	for _, e := range m.Entries {
		n += e.Size
	}
	return n
}

// Sorts the entries by path.
func (m *Manifest) sort() {
	slices.SortFunc(m.Entries, func(a, b Entry) int {
		return strings.Compare(a.Path, b.Path)
	})
}
