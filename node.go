package nodefs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"
)

// maxLinkDepth bounds link chain resolution, as ELOOP does.
const maxLinkDepth = 32

// Node is a live handle on a file, directory or link within exactly one
// owning [Filesystem]. A Node holds no backend state: every query is a
// fresh Adapter call, because backends mutate out-of-band and staleness is
// expected, not assumed away. A Node whose underlying entity has been
// deleted or moved is still a valid handle; operations on it simply fail
// with [ErrNotExist].
type Node struct {
	fs   *Filesystem
	path Pathname
}

// Path returns the node's canonical pathname.
func (n *Node) Path() Pathname {
	return n.path
}

// Name returns the node's basename.
func (n *Node) Name() string {
	return n.path.Basename("")
}

// String returns the canonical path string.
func (n *Node) String() string {
	return n.path.String()
}

// Filesystem returns the owning filesystem root.
func (n *Node) Filesystem() *Filesystem {
	return n.fs
}

// Parent returns the node one level up, or false for the root.
func (n *Node) Parent() (*Node, bool) {
	p, ok := n.path.Parent()
	if !ok {
		return nil, false
	}
	return &Node{fs: n.fs, path: p}, true
}

// Child returns the node for a single literal child name.
func (n *Node) Child(name string) (*Node, error) {
	p, err := n.path.Child(name)
	if err != nil {
		return nil, err
	}
	return &Node{fs: n.fs, path: p}, nil
}

// Resolve returns the node at a relative path below this one.
func (n *Node) Resolve(rel string) (*Node, error) {
	p, err := n.path.Join(rel)
	if err != nil {
		return nil, err
	}
	return &Node{fs: n.fs, path: p}, nil
}

// stat performs the closed-filesystem guard and a fresh Adapter stat.
func (n *Node) stat(ctx context.Context, op string) (*Metadata, error) {
	if err := n.fs.guard(op, n.path.String()); err != nil {
		return nil, err
	}
	md, err := n.fs.adapter.Stat(ctx, n.path)
	if err != nil {
		return nil, err
	}
	return md, nil
}

// ============================================================================
// Type Queries
// ============================================================================

// Type returns the node's current type. Links report [TypeLink], never
// their target's type.
func (n *Node) Type(ctx context.Context) (NodeType, error) {
	md, err := n.stat(ctx, "type")
	if err != nil {
		return 0, err
	}
	return md.Type, nil
}

// Exists reports whether the underlying entity currently exists.
func (n *Node) Exists(ctx context.Context) (bool, error) {
	_, err := n.stat(ctx, "exists")
	if err != nil {
		if IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsFile reports whether the node is currently a regular file.
func (n *Node) IsFile(ctx context.Context) (bool, error) {
	t, err := n.Type(ctx)
	return t == TypeFile, err
}

// IsDir reports whether the node is currently a directory.
func (n *Node) IsDir(ctx context.Context) (bool, error) {
	t, err := n.Type(ctx)
	return t == TypeDir, err
}

// IsLink reports whether the node is currently a symbolic link.
func (n *Node) IsLink(ctx context.Context) (bool, error) {
	t, err := n.Type(ctx)
	return t == TypeLink, err
}

// LinkTarget resolves the node's link target one step. Fails with
// [ErrNotLink] for non-links.
func (n *Node) LinkTarget(ctx context.Context) (*Node, error) {
	if err := n.fs.guard("readlink", n.path.String()); err != nil {
		return nil, err
	}
	target, err := n.fs.adapter.ResolveLink(ctx, n.path)
	if err != nil {
		return nil, err
	}
	return &Node{fs: n.fs, path: target}, nil
}

// resolveLinkChain follows links until a non-link node is reached,
// returning its pathname and metadata. A chain longer than maxLinkDepth
// fails with ErrCyclic.
func (n *Node) resolveLinkChain(ctx context.Context) (Pathname, *Metadata, error) {
	p := n.path
	for i := 0; i < maxLinkDepth; i++ {
		md, err := n.fs.adapter.Stat(ctx, p)
		if err != nil {
			return Pathname{}, nil, err
		}
		if md.Type != TypeLink {
			return p, md, nil
		}
		p, err = n.fs.adapter.ResolveLink(ctx, p)
		if err != nil {
			return Pathname{}, nil, err
		}
	}
	return Pathname{}, nil, &PathError{Op: "readlink", Path: n.path.String(), Err: ErrCyclic}
}

// ============================================================================
// Metadata Accessors
// ============================================================================

// Metadata returns the node's current metadata in one stat call.
func (n *Node) Metadata(ctx context.Context) (*Metadata, error) {
	return n.stat(ctx, "stat")
}

// Size returns the node's size in bytes.
func (n *Node) Size(ctx context.Context) (int64, error) {
	md, err := n.stat(ctx, "size")
	if err != nil {
		return 0, err
	}
	return md.Size, nil
}

// Mode returns the node's permission bits, or [ErrNotSupported] when the
// backend does not track them. No value is ever fabricated.
func (n *Node) Mode(ctx context.Context) (fs.FileMode, error) {
	md, err := n.stat(ctx, "mode")
	if err != nil {
		return 0, err
	}
	if md.Mode == nil {
		return 0, &PathError{Op: "mode", Path: n.path.String(), Err: ErrNotSupported}
	}
	return *md.Mode, nil
}

// Owner returns the owning user, or [ErrNotSupported].
func (n *Node) Owner(ctx context.Context) (string, error) {
	md, err := n.stat(ctx, "owner")
	if err != nil {
		return "", err
	}
	if md.Owner == nil {
		return "", &PathError{Op: "owner", Path: n.path.String(), Err: ErrNotSupported}
	}
	return *md.Owner, nil
}

// Group returns the owning group, or [ErrNotSupported].
func (n *Node) Group(ctx context.Context) (string, error) {
	md, err := n.stat(ctx, "group")
	if err != nil {
		return "", err
	}
	if md.Group == nil {
		return "", &PathError{Op: "group", Path: n.path.String(), Err: ErrNotSupported}
	}
	return *md.Group, nil
}

// ModTime returns the modification timestamp, or [ErrNotSupported].
func (n *Node) ModTime(ctx context.Context) (time.Time, error) {
	md, err := n.stat(ctx, "modtime")
	if err != nil {
		return time.Time{}, err
	}
	if md.ModTime == nil {
		return time.Time{}, &PathError{Op: "modtime", Path: n.path.String(), Err: ErrNotSupported}
	}
	return *md.ModTime, nil
}

// AccessTime returns the access timestamp, or [ErrNotSupported].
func (n *Node) AccessTime(ctx context.Context) (time.Time, error) {
	md, err := n.stat(ctx, "accesstime")
	if err != nil {
		return time.Time{}, err
	}
	if md.AccessTime == nil {
		return time.Time{}, &PathError{Op: "accesstime", Path: n.path.String(), Err: ErrNotSupported}
	}
	return *md.AccessTime, nil
}

// CreateTime returns the creation timestamp, or [ErrNotSupported].
func (n *Node) CreateTime(ctx context.Context) (time.Time, error) {
	md, err := n.stat(ctx, "createtime")
	if err != nil {
		return time.Time{}, err
	}
	if md.CreateTime == nil {
		return time.Time{}, &PathError{Op: "createtime", Path: n.path.String(), Err: ErrNotSupported}
	}
	return *md.CreateTime, nil
}

// ContentType returns the MIME type the backend tracks for the node, which
// may be empty.
func (n *Node) ContentType(ctx context.Context) (string, error) {
	md, err := n.stat(ctx, "contenttype")
	if err != nil {
		return "", err
	}
	return md.ContentType, nil
}

// SetMode changes the node's permission bits. Fails with [ErrNotSupported]
// when the backend lacks the capability.
func (n *Node) SetMode(ctx context.Context, mode fs.FileMode) error {
	if err := n.fs.guard("chmod", n.path.String()); err != nil {
		return err
	}
	chmodder, ok := n.fs.adapter.(CanChmod)
	if !ok {
		return &PathError{Op: "chmod", Path: n.path.String(), Err: ErrNotSupported}
	}
	return chmodder.Chmod(ctx, n.path, mode)
}

// SetOwner changes the node's ownership. An empty owner or group leaves
// that half unchanged. Fails with [ErrNotSupported] when the backend lacks
// the capability.
func (n *Node) SetOwner(ctx context.Context, owner, group string) error {
	if err := n.fs.guard("chown", n.path.String()); err != nil {
		return err
	}
	chowner, ok := n.fs.adapter.(CanChown)
	if !ok {
		return &PathError{Op: "chown", Path: n.path.String(), Err: ErrNotSupported}
	}
	return chowner.Chown(ctx, n.path, owner, group)
}

// SetTimes changes the node's access and modification timestamps. A zero
// time leaves that timestamp unchanged. Fails with [ErrNotSupported] when
// the backend lacks the capability.
func (n *Node) SetTimes(ctx context.Context, atime, mtime time.Time) error {
	if err := n.fs.guard("chtimes", n.path.String()); err != nil {
		return err
	}
	chtimer, ok := n.fs.adapter.(CanChtimes)
	if !ok {
		return &PathError{Op: "chtimes", Path: n.path.String(), Err: ErrNotSupported}
	}
	return chtimer.Chtimes(ctx, n.path, atime, mtime)
}

// ============================================================================
// Content I/O
// ============================================================================

// guardContent rejects content operations on directories so that "you read
// a directory" and "the read itself failed" stay distinguishable. A missing
// node passes the guard for writes and surfaces from the adapter for reads.
func (n *Node) guardContent(ctx context.Context, op string) error {
	if err := n.fs.guard(op, n.path.String()); err != nil {
		return err
	}
	md, err := n.fs.adapter.Stat(ctx, n.path)
	if err != nil {
		if IsNotExist(err) {
			return nil
		}
		return err
	}
	if md.Type == TypeDir {
		return &PathError{Op: op, Path: n.path.String(), Err: ErrIsDir}
	}
	return nil
}

// OpenRead opens the node's content for streaming read. The caller owns the
// stream and must close it on every exit path.
func (n *Node) OpenRead(ctx context.Context) (io.ReadCloser, error) {
	if err := n.guardContent(ctx, "read"); err != nil {
		return nil, err
	}
	return n.fs.adapter.OpenRead(ctx, n.path)
}

// OpenWrite opens the node's content for streaming write. With append true,
// writes extend existing content. The caller owns the stream.
func (n *Node) OpenWrite(ctx context.Context, append bool) (io.WriteCloser, error) {
	if err := n.guardContent(ctx, "write"); err != nil {
		return nil, err
	}
	return n.fs.adapter.OpenWrite(ctx, n.path, append)
}

// ReadAll reads the entire content into memory. Use for small files only.
func (n *Node) ReadAll(ctx context.Context) ([]byte, error) {
	rc, err := n.OpenRead(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &PathError{Op: "read", Path: n.path.String(), Err: err}
	}
	return data, nil
}

// Write replaces the node's content with the reader's bytes, creating the
// file if absent. WithParents creates missing ancestor directories; the
// default fails when the parent is absent.
func (n *Node) Write(ctx context.Context, r io.Reader, options ...Option) error {
	return n.writeFrom(ctx, r, false, options...)
}

// Append extends the node's content with the reader's bytes.
func (n *Node) Append(ctx context.Context, r io.Reader, options ...Option) error {
	return n.writeFrom(ctx, r, true, options...)
}

func (n *Node) writeFrom(ctx context.Context, r io.Reader, append bool, options ...Option) error {
	opts := processOptions(options...)

	if err := n.guardContent(ctx, "write"); err != nil {
		return err
	}
	if opts.Parents {
		if err := n.ensureParent(ctx); err != nil {
			return err
		}
	}

	w, err := n.fs.adapter.OpenWrite(ctx, n.path, append)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return &PathError{Op: "write", Path: n.path.String(), Err: err}
	}
	if err := w.Close(); err != nil {
		return &PathError{Op: "write", Path: n.path.String(), Err: err}
	}
	return nil
}

// Truncate discards the node's content, leaving an empty file.
func (n *Node) Truncate(ctx context.Context) error {
	if err := n.guardContent(ctx, "truncate"); err != nil {
		return err
	}
	w, err := n.fs.adapter.OpenWrite(ctx, n.path, false)
	if err != nil {
		return err
	}
	return w.Close()
}

// ensureParent creates the missing ancestor chain of n.
func (n *Node) ensureParent(ctx context.Context) error {
	parent, ok := n.path.Parent()
	if !ok {
		return nil
	}
	err := n.fs.adapter.CreateDir(ctx, parent, true)
	if err != nil && !IsExist(err) {
		return err
	}
	return nil
}

// ============================================================================
// Structural Operations
// ============================================================================

// CreateDir creates a directory at the node's path. WithParents creates
// missing ancestors transparently; the default fails when the parent is
// absent.
func (n *Node) CreateDir(ctx context.Context, options ...Option) error {
	opts := processOptions(options...)
	if err := n.fs.guard("createdir", n.path.String()); err != nil {
		return err
	}
	return n.fs.adapter.CreateDir(ctx, n.path, opts.Parents)
}

// CreateFile creates an empty file at the node's path. Parent handling as
// in CreateDir.
func (n *Node) CreateFile(ctx context.Context, options ...Option) error {
	opts := processOptions(options...)
	if err := n.fs.guard("createfile", n.path.String()); err != nil {
		return err
	}
	return n.fs.adapter.CreateFile(ctx, n.path, opts.Parents)
}

// Delete removes the node. A non-recursive delete of a non-empty directory
// fails with [ErrNotEmpty]; WithRecursive removes the contents as well, and
// WithForce overrides permission-style refusals where the backend allows.
func (n *Node) Delete(ctx context.Context, options ...Option) error {
	opts := processOptions(options...)
	if err := n.fs.guard("delete", n.path.String()); err != nil {
		return err
	}
	return n.fs.adapter.Delete(ctx, n.path, opts.Recursive, opts.Force)
}

// CopyTo copies the node to the destination, which may live in a different
// Filesystem. Directories copy their subtree; an existing destination file
// is only replaced with WithOverwrite. Same-backend copies use the
// adapter's native copy capability when it offers one.
//
// The operation is not transactional: a failure mid-subtree leaves what was
// already copied in place, and the error reports the first failing child.
func (n *Node) CopyTo(ctx context.Context, dst *Node, options ...Option) error {
	opts := processOptions(options...)
	if err := n.fs.guard("copy", n.path.String()); err != nil {
		return err
	}
	if err := dst.fs.guard("copy", dst.path.String()); err != nil {
		return err
	}
	return n.copyTo(ctx, dst, opts)
}

func (n *Node) copyTo(ctx context.Context, dst *Node, opts *Options) error {
	md, err := n.fs.adapter.Stat(ctx, n.path)
	if err != nil {
		return err
	}

	switch md.Type {
	case TypeDir:
		return n.copyTreeTo(ctx, dst, opts)
	case TypeLink:
		return n.copyLinkTo(ctx, dst, opts)
	default:
		return n.copyFileTo(ctx, dst, opts)
	}
}

func (n *Node) copyTreeTo(ctx context.Context, dst *Node, opts *Options) error {
	dstMD, err := dst.fs.adapter.Stat(ctx, dst.path)
	switch {
	case err == nil && dstMD.Type != TypeDir:
		return &PathError{Op: "copy", Path: dst.path.String(), Err: ErrNotDir}
	case err != nil && !IsNotExist(err):
		return err
	case err != nil:
		if err := dst.fs.adapter.CreateDir(ctx, dst.path, opts.Parents); err != nil {
			return err
		}
	}

	entries, err := n.fs.adapter.ReadDir(ctx, n.path)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcChild, err := n.Child(entry.Name)
		if err != nil {
			continue
		}
		dstChild, err := dst.Child(entry.Name)
		if err != nil {
			continue
		}
		if err := srcChild.copyTo(ctx, dstChild, opts); err != nil {
			return &PathError{
				Op:   "copy",
				Path: n.path.String(),
				Err:  fmt.Errorf("partially completed, first failure at %s: %w", srcChild.path.String(), err),
			}
		}
	}
	return nil
}

func (n *Node) copyLinkTo(ctx context.Context, dst *Node, opts *Options) error {
	if sym, ok := dst.fs.adapter.(CanSymlink); ok {
		target, err := n.fs.adapter.ResolveLink(ctx, n.path)
		if err != nil {
			return err
		}
		return sym.Symlink(ctx, target, dst.path)
	}
	// Destination cannot express links; copy the resolved content instead.
	return n.copyFileTo(ctx, dst, opts)
}

func (n *Node) copyFileTo(ctx context.Context, dst *Node, opts *Options) error {
	if _, err := dst.fs.adapter.Stat(ctx, dst.path); err == nil {
		if !opts.Overwrite {
			return &PathError{Op: "copy", Path: dst.path.String(), Err: ErrExist}
		}
	} else if !IsNotExist(err) {
		return err
	}

	if opts.Parents {
		if err := dst.ensureParent(ctx); err != nil {
			return err
		}
	}

	// Same backend: prefer the adapter's native copy.
	if n.fs.adapter == dst.fs.adapter {
		if copier, ok := n.fs.adapter.(CanCopy); ok {
			err := copier.Copy(ctx, n.path, dst.path)
			if err == nil || !IsNotSupported(err) {
				return err
			}
		}
	}

	rc, err := n.fs.adapter.OpenRead(ctx, n.path)
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := dst.fs.adapter.OpenWrite(ctx, dst.path, false)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, rc); err != nil {
		w.Close()
		return &PathError{Op: "copy", Path: dst.path.String(), Err: err}
	}
	if err := w.Close(); err != nil {
		return &PathError{Op: "copy", Path: dst.path.String(), Err: err}
	}
	return nil
}

// MoveTo moves the node to the destination. Same-backend moves use the
// adapter's native rename when offered; otherwise the move degrades to copy
// plus recursive delete of the source, and is likewise not transactional.
func (n *Node) MoveTo(ctx context.Context, dst *Node, options ...Option) error {
	opts := processOptions(options...)
	if err := n.fs.guard("move", n.path.String()); err != nil {
		return err
	}
	if err := dst.fs.guard("move", dst.path.String()); err != nil {
		return err
	}

	if _, err := dst.fs.adapter.Stat(ctx, dst.path); err == nil {
		if !opts.Overwrite {
			return &PathError{Op: "move", Path: dst.path.String(), Err: ErrExist}
		}
	} else if !IsNotExist(err) {
		return err
	}

	if n.fs.adapter == dst.fs.adapter {
		if mover, ok := n.fs.adapter.(CanMove); ok {
			err := mover.Move(ctx, n.path, dst.path)
			if err == nil || !IsNotSupported(err) {
				return err
			}
		}
	}

	if err := n.copyTo(ctx, dst, opts); err != nil {
		return &PathError{
			Op:   "move",
			Path: n.path.String(),
			Err:  fmt.Errorf("partially completed: %w", err),
		}
	}
	if err := n.fs.adapter.Delete(ctx, n.path, true, opts.Force); err != nil {
		return &PathError{
			Op:   "move",
			Path: n.path.String(),
			Err:  fmt.Errorf("copied but source not removed: %w", err),
		}
	}
	return nil
}

// ============================================================================
// Listing
// ============================================================================

// Ls lists the node's children, filtered by the given specifications. The
// empty filter list accepts every immediate child. With Recursive(true) the
// traversal is depth-first pre-order (parent before descendants), descends
// through links to directories, and fails with [ErrCyclic] when a link
// cycle is met. Results are best-effort under concurrent mutation: entries
// that vanish mid-traversal are skipped, not errors.
func (n *Node) Ls(ctx context.Context, filters ...Filter) ([]*Node, error) {
	if err := n.fs.guard("ls", n.path.String()); err != nil {
		return nil, err
	}

	ev, err := Compile(filters...)
	if err != nil {
		return nil, err
	}

	t := &traversal{
		ev:    ev,
		stack: make(map[string]struct{}),
		done:  make(map[string]struct{}),
	}

	// Seed with the listing root's resolved identity so a descendant link
	// back to it is caught.
	rootKey := n.path.String()
	if md, err := n.fs.adapter.Stat(ctx, n.path); err == nil && md.Type == TypeLink {
		p, _, err := n.resolveLinkChain(ctx)
		if err != nil {
			return nil, err
		}
		rootKey = p.String()
	}
	t.stack[rootKey] = struct{}{}
	t.done[rootKey] = struct{}{}

	var out []*Node
	if err := t.walk(ctx, n, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// traversal carries the per-listing state: the compiled evaluator, the DFS
// stack of resolved directory identities (for cycle detection) and the set
// of directories already expanded (so diamonds via links list once instead
// of erroring).
type traversal struct {
	ev    *Evaluator
	stack map[string]struct{}
	done  map[string]struct{}
}

func (t *traversal) walk(ctx context.Context, dir *Node, out *[]*Node) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := dir.fs.adapter.ReadDir(ctx, dir.path)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		child, err := dir.Child(entry.Name)
		if err != nil {
			// Entry name the path model cannot express.
			continue
		}

		typ := entry.Type
		if typ == 0 || typ == TypeUnknown {
			md, err := dir.fs.adapter.Stat(ctx, child.path)
			if err != nil {
				if IsNotExist(err) {
					continue
				}
				return err
			}
			typ = md.Type
		}

		if t.ev.acceptsTyped(child, typ) {
			*out = append(*out, child)
		}

		if !t.ev.recursive {
			continue
		}

		key, isDir, err := t.descendTarget(ctx, child, typ)
		if err != nil {
			if IsNotExist(err) || errors.Is(err, ErrNotLink) {
				// Dangling link or concurrent removal.
				continue
			}
			return err
		}
		if !isDir {
			continue
		}

		if _, onStack := t.stack[key]; onStack {
			return &PathError{Op: "ls", Path: child.path.String(), Err: ErrCyclic}
		}
		if _, seen := t.done[key]; seen {
			continue
		}

		t.stack[key] = struct{}{}
		t.done[key] = struct{}{}
		if err := t.walk(ctx, child, out); err != nil {
			return err
		}
		delete(t.stack, key)
	}

	return nil
}

// descendTarget resolves what a child would traverse into: directories
// descend under their own identity, links descend under the identity of
// their resolved target when that target is a directory.
func (t *traversal) descendTarget(ctx context.Context, child *Node, typ NodeType) (key string, isDir bool, err error) {
	switch typ {
	case TypeDir:
		return child.path.String(), true, nil
	case TypeLink:
		p, md, err := child.resolveLinkChain(ctx)
		if err != nil {
			return "", false, err
		}
		return p.String(), md.Type == TypeDir, nil
	default:
		return "", false, nil
	}
}

// ============================================================================
// Hashing
// ============================================================================

// Checksum computes a content digest, streaming the content through the
// hash rather than materializing it. Fails with [ErrNotFile] for non-file
// nodes. Backends with a native checksum capability are asked first.
func (n *Node) Checksum(ctx context.Context, algorithm ChecksumAlgorithm) (string, error) {
	md, err := n.stat(ctx, "checksum")
	if err != nil {
		return "", err
	}
	if md.Type != TypeFile {
		return "", &PathError{Op: "checksum", Path: n.path.String(), Err: ErrNotFile}
	}

	if native, ok := n.fs.adapter.(CanChecksum); ok {
		sum, err := native.Checksum(ctx, n.path, algorithm)
		if err == nil || !IsNotSupported(err) {
			return sum, err
		}
	}

	rc, err := n.fs.adapter.OpenRead(ctx, n.path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	sum, err := CalculateChecksum(rc, algorithm)
	if err != nil {
		return "", &PathError{Op: "checksum", Path: n.path.String(), Err: err}
	}
	return sum, nil
}

// MD5 returns the hex-encoded MD5 digest of the node's content.
func (n *Node) MD5(ctx context.Context) (string, error) {
	return n.Checksum(ctx, ChecksumMD5)
}

// SHA1 returns the hex-encoded SHA-1 digest of the node's content.
func (n *Node) SHA1(ctx context.Context) (string, error) {
	return n.Checksum(ctx, ChecksumSHA1)
}
