// Package tempstore keeps the transient per-chunk audio files of one
// synthesis request in a private directory that is removed as a whole when
// the request finishes.
package tempstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nadzzz/narrator/internal/audio"
)

// Store owns the root directory under which request scopes are created.
type Store struct {
	root string
}

// New creates the root directory if needed. An empty root uses
// $TMPDIR/narrator.
func New(root string) (*Store, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "narrator")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating temp root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the directory that holds all live scopes.
func (s *Store) Root() string { return s.root }

// NewScope creates a uniquely named directory for one request.
func (s *Store) NewScope(requestID string) (*Scope, error) {
	dir, err := os.MkdirTemp(s.root, "req-"+safeName(requestID)+"-")
	if err != nil {
		return nil, fmt.Errorf("creating request scope: %w", err)
	}
	return &Scope{dir: dir, paths: make(map[int]string)}, nil
}

// safeName keeps caller-supplied IDs from escaping the root.
func safeName(id string) string {
	if len(id) > 64 {
		id = id[:64]
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

// Scope is the temporary storage of a single request. Put may be called from
// several goroutines.
type Scope struct {
	dir   string
	mu    sync.Mutex
	paths map[int]string
}

// Dir returns the scope directory.
func (sc *Scope) Dir() string { return sc.dir }

// Put writes the artifact for chunk index and returns its path.
func (sc *Scope) Put(index int, a audio.Artifact) (string, error) {
	path := filepath.Join(sc.dir, fmt.Sprintf("chunk-%05d%s", index, a.Encoding.Ext()))
	if err := os.WriteFile(path, a.Data, 0o600); err != nil {
		return "", fmt.Errorf("writing chunk %d: %w", index, err)
	}
	sc.mu.Lock()
	sc.paths[index] = path
	sc.mu.Unlock()
	return path, nil
}

// Open opens the artifact previously stored for chunk index.
func (sc *Scope) Open(index int) (*os.File, error) {
	sc.mu.Lock()
	path, ok := sc.paths[index]
	sc.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("chunk %d not stored", index)
	}
	return os.Open(path)
}

// Create opens a new file inside the scope for writing.
func (sc *Scope) Create(name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(sc.dir, name), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
}

// Len returns the number of stored chunk artifacts.
func (sc *Scope) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.paths)
}

// Release removes the scope directory and everything in it.
func (sc *Scope) Release() error {
	sc.mu.Lock()
	sc.paths = map[int]string{}
	sc.mu.Unlock()
	return os.RemoveAll(sc.dir)
}
