package artifact

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Produces a tar stream of an output directory.
//
// Entry names are relative to the directory.
type Source interface {
	Archive(ctx context.Context, w io.Writer) error
}

// Adapts a function to a [Source].
type SourceFunc func(ctx context.Context, w io.Writer) error

// Calls f.
func (f SourceFunc) Archive(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

// Configures [Collect].
type Options struct {
	Exclude  []string // Exclude patterns.
	StageDir string   // Host directory receiving the collected files. Empty collects the manifest only.
}

// Collects the contents of a source into a manifest.
//
// Excluded entries are neither recorded nor extracted. A hardlink whose
// target was excluded is collected as a regular file holding the target's
// content. Entries that are not
// files, directories or links are skipped. Every error wraps
// [ErrArtifactCollection]; an unreadable source also keeps the source's
// error in the chain.
func Collect(ctx context.Context, src Source, opts Options) (*Manifest, error) {
	ex, err := newExcluder(opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactCollection, err)
	}

	if opts.StageDir != "" {
		if err := os.MkdirAll(opts.StageDir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrArtifactCollection, err)
		}
	}

	pr, pw := io.Pipe()
	archived := make(chan error, 1)
	go func() {
		err := src.Archive(ctx, pw)
		pw.CloseWithError(err)
		archived <- err
	}()

	c := &collector{
		excluder: ex,
		stageDir: opts.StageDir,
		links:    make(map[string]bool),
		files:    make(map[string]bool),
		held:     make(map[string]heldFile),
	}
	defer c.cleanup()

	readErr := c.read(tar.NewReader(pr))
	if readErr == nil {
		// Consume the archive padding so the source can finish writing.
		_, readErr = io.Copy(io.Discard, pr)
	}
	pr.CloseWithError(io.ErrClosedPipe)

	archiveErr := <-archived
	if readErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactCollection, readErr)
	}
	if archiveErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactCollection, archiveErr)
	}

	c.manifest.sort()
	slog.Debug("artifacts collected", "entries", c.manifest.Len(), "bytes", c.manifest.Size())
	return &c.manifest, nil
}

// State of one collection.
type collector struct {
	excluder *excluder
	stageDir string
	manifest Manifest
	links    map[string]bool     // Paths of extracted symlinks.
	files    map[string]bool     // Paths of recorded regular files.
	held     map[string]heldFile // Excluded regular files, by path.
	spoolDir string              // Holds the content of excluded files when staging.
}

// An excluded regular file that later hardlinks may still refer to.
type heldFile struct {
	digest digest.Digest
	size   int64
	spool  string // Copy of the content; empty unless staging.
}

// Reads every entry from tr.
func (c *collector) read(tr *tar.Reader) error {
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		rel, err := entryPath(hdr.Name)
		if err != nil {
			return err
		}
		if rel == "" {
			continue
		}
		if c.excluder.match(rel) {
			if hdr.Typeflag == tar.TypeReg {
				if err := c.hold(rel, tr); err != nil {
					return fmt.Errorf("%s: %w", rel, err)
				}
			}
			continue
		}

		if err := c.add(rel, hdr, tr); err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
	}
}

// Records one entry and extracts it when staging.
func (c *collector) add(rel string, hdr *tar.Header, r io.Reader) error {
	entry := Entry{
		Path: rel,
		Mode: fs.FileMode(hdr.Mode).Perm(),
	}

	var dest string
	if c.stageDir != "" {
		if err := c.checkParents(rel); err != nil {
			return err
		}
		dest = filepath.Join(c.stageDir, filepath.FromSlash(rel))
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		entry.Kind = KindDir
		if dest != "" {
			if err := os.MkdirAll(dest, entry.Mode|0o700); err != nil {
				return err
			}
		}

	case tar.TypeReg:
		entry.Kind = KindFile
		d, n, err := c.copyFile(dest, entry.Mode, r)
		if err != nil {
			return err
		}
		entry.Size = n
		entry.Digest = d
		c.files[rel] = true

	case tar.TypeSymlink:
		entry.Kind = KindSymlink
		entry.Link = hdr.Linkname
		if dest != "" {
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return err
			}
			c.links[rel] = true
		}

	case tar.TypeLink:
		target, err := entryPath(hdr.Linkname)
		if err != nil {
			return err
		}
		if c.files[target] {
			entry.Kind = KindHardlink
			entry.Link = target
			if dest != "" {
				if err := os.Link(filepath.Join(c.stageDir, filepath.FromSlash(target)), dest); err != nil {
					return err
				}
			}
			break
		}

		// The link outlives its excluded target, so it becomes a file.
		held, ok := c.held[target]
		if !ok {
			return fmt.Errorf("hardlink target %s is not a file in the archive", target)
		}
		entry.Kind = KindFile
		entry.Size = held.size
		entry.Digest = held.digest
		if dest != "" {
			if err := c.unspool(held, dest, entry.Mode); err != nil {
				return err
			}
		}
		c.files[rel] = true

	default:
		slog.Debug("skipping special file", "path", rel, "type", string(hdr.Typeflag))
		return nil
	}

	c.manifest.Entries = append(c.manifest.Entries, entry)
	return nil
}

// Digests a regular file, writing it to dest when dest is set.
func (c *collector) copyFile(dest string, mode fs.FileMode, r io.Reader) (digest.Digest, int64, error) {
	digester := digest.SHA256.Digester()
	w := io.Writer(digester.Hash())

	if dest != "" {
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return "", 0, err
		}
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			return "", 0, err
		}
		defer f.Close()
		w = io.MultiWriter(w, f)
	}

	n, err := io.Copy(w, r)
	if err != nil {
		return "", 0, err
	}
	return digester.Digest(), n, nil
}

// Digests an excluded regular file so that hardlinks to it can still be
// collected. The content is kept only when staging.
func (c *collector) hold(rel string, r io.Reader) error {
	var spool string
	if c.stageDir != "" {
		if c.spoolDir == "" {
			dir, err := os.MkdirTemp("", "cruxpkg-excluded-")
			if err != nil {
				return err
			}
			c.spoolDir = dir
		}
		spool = filepath.Join(c.spoolDir, strconv.Itoa(len(c.held)))
	}

	d, n, err := c.copyFile(spool, 0o600, r)
	if err != nil {
		return err
	}
	c.held[rel] = heldFile{digest: d, size: n, spool: spool}
	return nil
}

// Writes the content of a held file to dest.
func (c *collector) unspool(held heldFile, dest string, mode fs.FileMode) error {
	f, err := os.Open(held.spool)
	if err != nil {
		return err
	}
	defer f.Close()

	_, _, err = c.copyFile(dest, mode, f)
	return err
}

// Removes the content of held files.
func (c *collector) cleanup() {
	if c.spoolDir == "" {
		return
	}
	if err := os.RemoveAll(c.spoolDir); err != nil {
		slog.Warn("failed to remove spool directory", "dir", c.spoolDir, "error", err)
	}
}

// Rejects entries that would be written through an extracted symlink.
func (c *collector) checkParents(rel string) error {
	for p := parent(rel); p != ""; p = parent(p) {
		if c.links[p] {
			return fmt.Errorf("%w: parent %s is a symlink", ErrUnsafePath, p)
		}
	}
	return nil
}

// Returns the cleaned relative path of a tar entry name.
//
// The archive root itself yields "". Names escaping the root are rejected.
func entryPath(name string) (string, error) {
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
		}
	}
	return strings.TrimPrefix(path.Clean("/"+name), "/"), nil
}
