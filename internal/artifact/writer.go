package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

// Writes package manifests as JSON files below a directory.
//
// The file for a target is <Dir>/<image>/<name>-<version>-<release>.<format>.manifest.json,
// carrying the package metadata resolved for the target together with the
// collected entries.
type DirWriter struct {
	Dir string // Root output directory.
}

// Package description written by [DirWriter].
type Document struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Release     string   `json:"release"`
	Arch        string   `json:"arch"`
	Description string   `json:"description,omitempty"`
	License     string   `json:"license,omitempty"`
	Maintainer  string   `json:"maintainer,omitempty"`
	Image       string   `json:"image"`
	OS          string   `json:"os"`
	Format      string   `json:"format"`
	Depends     []string `json:"depends,omitempty"`
	Conflicts   []string `json:"conflicts,omitempty"`
	Provides    []string `json:"provides,omitempty"`
	Group       string   `json:"group,omitempty"`
	Deb         *DebInfo `json:"deb,omitempty"`
	RPM         *RPMInfo `json:"rpm,omitempty"`
	Entries     []Entry  `json:"entries"`
}

// Debian control fields of a [Document].
type DebInfo struct {
	Priority string `json:"priority,omitempty"`
}

// RPM spec fields of a [Document].
type RPMInfo struct {
	Epoch           string   `json:"epoch,omitempty"`
	Vendor          string   `json:"vendor,omitempty"`
	Icon            string   `json:"icon,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	Obsoletes       []string `json:"obsoletes,omitempty"`
	PreScript       string   `json:"pre_script,omitempty"`
	PostScript      string   `json:"post_script,omitempty"`
	PreunScript     string   `json:"preun_script,omitempty"`
	PostunScript    string   `json:"postun_script,omitempty"`
	ConfigNoreplace string   `json:"config_noreplace,omitempty"`
}

// Returns the manifest file path for a target.
func (w DirWriter) Path(t recipe.Target, meta recipe.Metadata) string {
	name := fmt.Sprintf("%s-%s-%s.%s.manifest.json", meta.Name, meta.Version, release(t, meta), t.Format)
	return filepath.Join(w.Dir, t.PathName(), name)
}

// Writes the manifest of one target.
//
// The file is written to a temporary name and renamed into place, so a
// reader never observes a partial manifest.
func (w DirWriter) Write(ctx context.Context, t recipe.Target, m *Manifest, meta recipe.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(NewDocument(t, m, meta), "", "  ")
	if err != nil {
		return err
	}

	dest := w.Path(t, meta)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Resolves the package description of one target.
//
// The architecture and release are spelled the way the target's format
// expects them and the dependency lists are the union of the shared and
// per-image entries. Format specific fields only appear for their format.
func NewDocument(t recipe.Target, m *Manifest, meta recipe.Metadata) Document {
	arch := meta.Arch
	switch t.Format {
	case recipe.FormatDeb:
		arch = meta.DebArch()
	case recipe.FormatRPM:
		arch = meta.RPMArch()
	}

	entries := m.Entries
	if entries == nil {
		entries = []Entry{}
	}

	doc := Document{
		Name:        meta.Name,
		Version:     meta.Version,
		Release:     release(t, meta),
		Arch:        arch,
		Description: meta.Description,
		License:     meta.License,
		Maintainer:  meta.Maintainer,
		Image:       t.Image,
		OS:          t.OS.String(),
		Format:      string(t.Format),
		Depends:     meta.Depends.For(t.Image),
		Conflicts:   meta.Conflicts.For(t.Image),
		Provides:    meta.Provides.For(t.Image),
		Group:       meta.Group,
		Entries:     entries,
	}

	switch t.Format {
	case recipe.FormatDeb:
		if meta.Deb != (recipe.DebInfo{}) {
			doc.Deb = &DebInfo{Priority: meta.Deb.Priority}
		}
	case recipe.FormatRPM:
		rpm := RPMInfo{
			Epoch:           meta.RPM.Epoch,
			Vendor:          meta.RPM.Vendor,
			Icon:            meta.RPM.Icon,
			Summary:         meta.RPM.Summary,
			PreScript:       meta.RPM.PreScript,
			PostScript:      meta.RPM.PostScript,
			PreunScript:     meta.RPM.PreunScript,
			PostunScript:    meta.RPM.PostunScript,
			ConfigNoreplace: meta.RPM.ConfigNoreplace,
		}
		if obsoletes := meta.RPM.Obsoletes.For(t.Image); len(obsoletes) > 0 {
			rpm.Obsoletes = obsoletes
		}
		if !reflect.DeepEqual(rpm, RPMInfo{}) {
			doc.RPM = &rpm
		}
	}
	return doc
}

// Returns the release of the package for the target's format.
func release(t recipe.Target, meta recipe.Metadata) string {
	if t.Format == recipe.FormatRPM {
		return meta.RPMRelease()
	}
	if meta.Release == "" {
		return "0"
	}
	return meta.Release
}
