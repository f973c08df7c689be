package mock

import (
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/cruciblehq/cruxpkg/internal/backend"
	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

// A node of an environment's in-memory filesystem.
type File struct {
	Mode fs.FileMode // Permission bits.
	Dir  bool        // Whether the node is a directory.
	Link string      // Symlink target; empty for other nodes.
	Data []byte      // Content of regular files.
}

// An in-memory build environment.
type Env struct {
	id      string
	workdir string
	target  recipe.Target
	deps    []string

	mu        sync.Mutex
	files     map[string]*File // Keyed by clean absolute path.
	destroyed bool
}

var _ backend.Handle = (*Env)(nil)

// Creates an environment holding only the root directory.
func newEnv(req backend.CreateRequest, workdir string) *Env {
	return &Env{
		id:      req.ID,
		workdir: workdir,
		target:  req.Target,
		deps:    append([]string(nil), req.Deps...),
		files:   map[string]*File{"/": {Mode: 0o755, Dir: true}},
	}
}

// Returns the environment ID.
func (e *Env) ID() string { return e.id }

// Returns the default working directory.
func (e *Env) Workdir() string { return e.workdir }

// Returns the target the environment was created for.
func (e *Env) Target() recipe.Target { return e.target }

// Returns the dependencies requested at creation.
func (e *Env) Deps() []string { return append([]string(nil), e.deps...) }

// Reports whether the environment has been destroyed.
func (e *Env) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

// Creates p and any missing parents as directories.
func (e *Env) MkdirAll(p string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mkdirAll(clean("/", p))
}

// Writes a regular file, creating missing parent directories.
func (e *Env) WriteFile(p string, data []byte, mode fs.FileMode) {
	p = clean("/", p)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mkdirAll(path.Dir(p))
	e.files[p] = &File{Mode: mode, Data: append([]byte(nil), data...)}
}

// Creates a symlink at p pointing to target.
func (e *Env) Symlink(target, p string) {
	p = clean("/", p)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mkdirAll(path.Dir(p))
	e.files[p] = &File{Mode: 0o777, Link: target}
}

// Returns the node at p.
func (e *Env) Stat(p string) (*File, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.files[clean("/", p)]
	return f, ok
}

// Reports whether a node exists at p.
func (e *Env) Exists(p string) bool {
	_, ok := e.Stat(p)
	return ok
}

// Removes p and everything below it.
func (e *Env) RemoveAll(p string) {
	p = clean("/", p)
	e.mu.Lock()
	defer e.mu.Unlock()
	for k := range e.files {
		if k == p || strings.HasPrefix(k, p+"/") {
			delete(e.files, k)
		}
	}
	if p == "/" {
		e.files["/"] = &File{Mode: 0o755, Dir: true}
	}
}

// Returns every path in the filesystem, sorted.
func (e *Env) Paths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	paths := make([]string, 0, len(e.files))
	for k := range e.files {
		paths = append(paths, k)
	}
	slices.Sort(paths)
	return paths
}

// Marks the environment destroyed. The files are kept so that tests can
// inspect what the steps left behind. Returns false when it already was
// destroyed.
func (e *Env) destroy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return false
	}
	e.destroyed = true
	return true
}

// Adds directory nodes for p and its parents. Caller holds mu.
func (e *Env) mkdirAll(p string) {
	for ; ; p = path.Dir(p) {
		if _, ok := e.files[p]; !ok {
			e.files[p] = &File{Mode: 0o755, Dir: true}
		}
		if p == "/" {
			return
		}
	}
}

// A path and its node.
type treeEntry struct {
	path string
	file *File
}

// Returns root and every node below it in lexical order. Reports false when
// root does not exist or is not a directory.
func (e *Env) tree(root string) ([]treeEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, ok := e.files[root]
	if !ok || !f.Dir {
		return nil, false
	}

	prefix := strings.TrimSuffix(root, "/") + "/"
	entries := []treeEntry{{root, f}}
	for k, f := range e.files {
		if k != root && strings.HasPrefix(k, prefix) {
			entries = append(entries, treeEntry{k, f})
		}
	}
	slices.SortFunc(entries, func(a, b treeEntry) int {
		return strings.Compare(a.path, b.path)
	})
	return entries, true
}
