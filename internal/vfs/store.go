// Package vfs holds the in-memory project file set that every pipeline
// consumer reads and that callers mutate through atomic patches.
package vfs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// EntryPath is the file that must always exist and runs last in a combined preview.
const EntryPath = "App"

// DefaultEntryContent is the body of a freshly created project.
const DefaultEntryContent = `function App() {
  return (
    <div className="min-h-screen flex items-center justify-center">
      <h1 className="text-2xl font-semibold">Hello from your new app</h1>
    </div>
  );
}
`

// ErrInvalidPath is returned when a patch names a path that cannot be stored.
var ErrInvalidPath = errors.New("invalid path")

// File is a single path/content pair.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Patch is an atomic set of writes followed by deletes.
type Patch struct {
	Writes  []File   `json:"writes,omitempty"`
	Deletes []string `json:"deletes,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return len(p.Writes) == 0 && len(p.Deletes) == 0
}

// Store is a project file set. It is safe for concurrent use; readers never
// observe a partially applied patch.
type Store struct {
	mu    sync.RWMutex
	files map[string]string
}

// New creates a store holding the default single-file project.
func New() *Store {
	return &Store{files: map[string]string{EntryPath: DefaultEntryContent}}
}

// FromFiles builds a store from files. The entry file is added with default
// content when missing.
func FromFiles(files []File) *Store {
	s := &Store{files: make(map[string]string, len(files)+1)}
	for _, f := range files {
		if ValidPath(f.Path) == nil {
			s.files[f.Path] = f.Content
		}
	}
	if _, ok := s.files[EntryPath]; !ok {
		s.files[EntryPath] = DefaultEntryContent
	}
	return s
}

// Write upserts a file.
func (s *Store) Write(path, content string) error {
	if err := ValidPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	s.files[path] = content
	s.mu.Unlock()
	return nil
}

// Read returns the content at path and whether it exists.
func (s *Store) Read(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.files[path]
	return c, ok
}

// Delete removes path. Deleting the entry path is a silent no-op.
func (s *Store) Delete(path string) {
	if path == EntryPath {
		return
	}
	s.mu.Lock()
	delete(s.files, path)
	s.mu.Unlock()
}

// ApplyPatch performs all writes then all deletes. The patch is applied to a
// private copy which replaces the live map only if every step succeeds.
func (s *Store) ApplyPatch(p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.files)+len(p.Writes))
	for k, v := range s.files {
		next[k] = v
	}
	for i, w := range p.Writes {
		if err := ValidPath(w.Path); err != nil {
			return fmt.Errorf("vfs: apply patch: writes[%d]: %w", i, err)
		}
		next[w.Path] = w.Content
	}
	for i, d := range p.Deletes {
		if err := ValidPath(d); err != nil {
			return fmt.Errorf("vfs: apply patch: deletes[%d]: %w", i, err)
		}
		if d == EntryPath {
			continue
		}
		delete(next, d)
	}
	s.files = next
	return nil
}

// ListPaths returns every path sorted lexicographically with the entry path last.
func (s *Store) ListPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedPaths(s.files)
}

// Files returns a copy of the file set in ListPaths order.
func (s *Store) Files() []File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := sortedPaths(s.files)
	out := make([]File, 0, len(paths))
	for _, p := range paths {
		out = append(out, File{Path: p, Content: s.files[p]})
	}
	return out
}

// Len returns the number of files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &Store{files: make(map[string]string, len(s.files))}
	for k, v := range s.files {
		c.files[k] = v
	}
	return c
}

// Combined concatenates all files in ListPaths order so the entry file
// executes last in a single-document preview.
func (s *Store) Combined() string {
	var b strings.Builder
	for _, f := range s.Files() {
		fmt.Fprintf(&b, "// ---- %s ----\n", f.Path)
		b.WriteString(f.Content)
		if !strings.HasSuffix(f.Content, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func sortedPaths(files map[string]string) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		if paths[i] == EntryPath {
			return false
		}
		if paths[j] == EntryPath {
			return true
		}
		return paths[i] < paths[j]
	})
	return paths
}

// ValidPath reports whether p can be stored: non-blank, no NUL byte, not
// absolute, and no ".." segment.
func ValidPath(p string) error {
	switch {
	case strings.TrimSpace(p) == "":
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	case strings.ContainsRune(p, 0):
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidPath, p)
	case strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\"):
		return fmt.Errorf("%w: %q escapes the project", ErrInvalidPath, p)
	}
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return fmt.Errorf("%w: %q escapes the project", ErrInvalidPath, p)
		}
	}
	return nil
}
