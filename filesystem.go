package nodefs

import (
	"sync/atomic"
)

// Filesystem is the root of a node tree. It owns exactly one Adapter and is
// the sole producer of Nodes for its subtree.
//
// Nodes are stateless handles: they hold a canonical pathname and a
// reference to their owning Filesystem, never cached backend state. A
// Filesystem may be closed at any time; operations on Nodes of a closed
// Filesystem fail cleanly with [ErrClosed].
type Filesystem struct {
	adapter Adapter
	conv    Conventions
	root    Pathname
	closed  atomic.Bool
}

// FilesystemOption configures a Filesystem at construction.
type FilesystemOption func(*Filesystem)

// WithConventions sets the path conventions used to normalize raw path
// strings handed to this Filesystem. The default is [Posix].
func WithConventions(conv Conventions) FilesystemOption {
	return func(f *Filesystem) {
		f.conv = conv
	}
}

// NewFilesystem creates a Filesystem over the given Adapter.
func NewFilesystem(adapter Adapter, options ...FilesystemOption) (*Filesystem, error) {
	if adapter == nil {
		return nil, &PathError{Op: "new", Path: "/", Err: ErrNotSupported}
	}

	f := &Filesystem{
		adapter: adapter,
		conv:    Posix,
	}
	for _, option := range options {
		option(f)
	}

	root, err := Normalize("/", f.conv)
	if err != nil {
		return nil, err
	}
	f.root = root

	return f, nil
}

// Adapter returns the backend this Filesystem delegates to.
func (f *Filesystem) Adapter() Adapter {
	return f.adapter
}

// Conventions returns the path conventions of this Filesystem.
func (f *Filesystem) Conventions() Conventions {
	return f.conv
}

// Root returns the Node for the root of the tree.
func (f *Filesystem) Root() *Node {
	return &Node{fs: f, path: f.root}
}

// Node resolves a raw path string into a Node handle. Relative paths are
// resolved against the root. The path is canonicalized; the node itself
// need not exist. Existence is a live query, never a property of the
// handle.
func (f *Filesystem) Node(path string) (*Node, error) {
	if err := f.guard("node", path); err != nil {
		return nil, err
	}

	p, err := Normalize(path, f.conv)
	if err != nil {
		return nil, err
	}
	if !p.IsAbs() {
		p, err = f.root.Join(path)
		if err != nil {
			return nil, err
		}
	}

	return &Node{fs: f, path: p}, nil
}

// NodeAt returns the Node handle for an already-canonical Pathname.
func (f *Filesystem) NodeAt(p Pathname) (*Node, error) {
	if err := f.guard("node", p.String()); err != nil {
		return nil, err
	}
	if p.IsZero() {
		return nil, &PathError{Op: "node", Path: "", Err: ErrInvalidPath}
	}
	return &Node{fs: f, path: p}, nil
}

// Close marks the Filesystem destroyed. Nodes produced by it remain valid
// handles but every operation on them fails with [ErrClosed]. Close is
// idempotent.
func (f *Filesystem) Close() error {
	f.closed.Store(true)
	return nil
}

// guard rejects operations on a closed Filesystem.
func (f *Filesystem) guard(op, path string) error {
	if f.closed.Load() {
		return &PathError{Op: op, Path: path, Err: ErrClosed}
	}
	return nil
}
