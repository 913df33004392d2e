// Package tree holds the in-memory project tree built from file actions.
package tree

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrNotFound     = errors.New("node not found")
	ErrNotAFile     = errors.New("node is not a file")
	ErrNotAFolder   = errors.New("node is not a folder")
	ErrKindConflict = errors.New("node kind conflict")
	ErrEmptyPath    = errors.New("empty path")
)

// Kind distinguishes files from folders. It never changes after creation.
type Kind uint8

const (
	File Kind = iota
	Folder
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Folder:
		return "folder"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Node is a file or folder in the tree.
// Path is the slash-joined path from the root and is unique across the tree.
type Node struct {
	Kind     Kind
	Name     string
	Path     string
	Content  string  // files only
	Children []*Node // folders only, in creation order
}

// IsDir reports whether n is a folder.
func (n *Node) IsDir() bool { return n.Kind == Folder }

// clone deep-copies n and its descendants.
func (n *Node) clone() *Node {
	c := *n
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.clone()
		}
	}
	return &c
}

// ConflictError reports a path that already exists with the other kind.
type ConflictError struct {
	Path     string
	Existing Kind
	Want     Kind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s exists where %s was expected", e.Path, e.Existing, e.Want)
}

func (e *ConflictError) Unwrap() error { return ErrKindConflict }

// Tree is the single owned project tree. Readers and writers may run on
// different goroutines; every method takes the lock it needs.
type Tree struct {
	mu    sync.RWMutex
	roots []*Node
	index map[string]*Node // path -> node
	gen   uint64           // bumped on every mutation
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{
		roots: []*Node{},
		index: make(map[string]*Node),
	}
}

// Segments splits a slash-delimited path. Empty segments are kept.
// An empty path has no segments.
func Segments(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// UpsertFile creates the file at path, creating missing parent folders in
// first-seen order, or overwrites its content if it already exists.
// It reports whether a new file was created.
func (t *Tree) UpsertFile(path, content string) (bool, error) {
	segs := Segments(path)
	if len(segs) == 0 {
		return false, ErrEmptyPath
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	level := &t.roots
	prefix := ""
	for i, seg := range segs {
		if i == 0 {
			prefix = seg
		} else {
			prefix = prefix + "/" + seg
		}
		last := i == len(segs)-1

		existing := t.index[prefix]
		if last {
			if existing != nil {
				if existing.Kind != File {
					return false, &ConflictError{Path: prefix, Existing: existing.Kind, Want: File}
				}
				existing.Content = content
				t.gen++
				return false, nil
			}
			n := &Node{Kind: File, Name: seg, Path: prefix, Content: content}
			*level = append(*level, n)
			t.index[prefix] = n
			t.gen++
			return true, nil
		}

		if existing == nil {
			existing = &Node{Kind: Folder, Name: seg, Path: prefix, Children: []*Node{}}
			*level = append(*level, existing)
			t.index[prefix] = existing
			t.gen++
		} else if existing.Kind != Folder {
			return false, &ConflictError{Path: prefix, Existing: existing.Kind, Want: Folder}
		}
		level = &existing.Children
	}
	return false, nil // unreachable: the last segment always returns
}

// Edit replaces the content of the existing file at path.
// Siblings and ancestors are left untouched.
func (t *Tree) Edit(path, content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.index[path]
	if !ok {
		return fmt.Errorf("edit %s: %w", path, ErrNotFound)
	}
	if n.Kind != File {
		return fmt.Errorf("edit %s: %w", path, ErrNotAFile)
	}
	n.Content = content
	t.gen++
	return nil
}

// Get returns a copy of the node at path without its descendants.
func (t *Tree) Get(path string) (Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.index[path]
	if !ok {
		return Node{}, ErrNotFound
	}
	c := *n
	c.Children = nil
	return c, nil
}

// List returns copies of the direct children of the folder at path, in
// order. A leading slash yields a root folder named "", so List("") lists
// that folder; use Roots for the top level.
func (t *Tree) List(path string) ([]Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.index[path]
	if !ok {
		return nil, ErrNotFound
	}
	if n.Kind != Folder {
		return nil, fmt.Errorf("list %s: %w", path, ErrNotAFolder)
	}
	return shallow(n.Children), nil
}

// Roots returns copies of the top-level nodes, in order.
func (t *Tree) Roots() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return shallow(t.roots)
}

// shallow copies nodes without their descendants.
func shallow(nodes []*Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = *n
		out[i].Children = nil
	}
	return out
}

// Read runs fn with the live roots under a read lock. fn must not retain or
// modify the nodes.
func (t *Tree) Read(fn func(roots []*Node)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(t.roots)
}

// Snapshot returns a deep copy of the roots.
func (t *Tree) Snapshot() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Node, len(t.roots))
	for i, r := range t.roots {
		out[i] = r.clone()
	}
	return out
}

// Walk visits every node depth-first in tree order, stopping at the first
// error. It operates on a snapshot so fn may call back into the tree.
func (t *Tree) Walk(fn func(n *Node) error) error {
	var walk func(nodes []*Node) error
	walk = func(nodes []*Node) error {
		for _, n := range nodes {
			if err := fn(n); err != nil {
				return err
			}
			if err := walk(n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(t.Snapshot())
}

// Len returns the total number of nodes.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.index)
}

// Generation increases on every mutation; equal values mean no change.
func (t *Tree) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.gen
}

// Reset discards every node.
func (t *Tree) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roots = []*Node{}
	t.index = make(map[string]*Node)
	t.gen++
}

// Reader is the read-only surface of a Tree.
type Reader interface {
	Get(path string) (Node, error)
	List(path string) ([]Node, error)
	Roots() []Node
	Read(fn func(roots []*Node))
	Snapshot() []*Node
	Walk(fn func(n *Node) error) error
	Len() int
	Generation() uint64
}

// ReadOnly returns a view of t that cannot mutate it.
func (t *Tree) ReadOnly() Reader { return readOnly{t: t} }

type readOnly struct{ t *Tree }

func (r readOnly) Get(path string) (Node, error)     { return r.t.Get(path) }
func (r readOnly) List(path string) ([]Node, error)  { return r.t.List(path) }
func (r readOnly) Roots() []Node                     { return r.t.Roots() }
func (r readOnly) Read(fn func(roots []*Node))       { r.t.Read(fn) }
func (r readOnly) Snapshot() []*Node                 { return r.t.Snapshot() }
func (r readOnly) Walk(fn func(n *Node) error) error { return r.t.Walk(fn) }
func (r readOnly) Len() int                          { return r.t.Len() }
func (r readOnly) Generation() uint64                { return r.t.Generation() }

var (
	_ Reader = (*Tree)(nil)
	_ Reader = readOnly{}
)
