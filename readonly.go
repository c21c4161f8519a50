package nodefs

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// ReadOnlyAdapter wraps an Adapter to prevent all write operations.
// This is useful for:
// - Providing safe read-only access to sensitive data
// - Creating temporary read-only views of a backend
// - Exposing a backend to untrusted code
//
// Read operations delegate unchanged; every mutating operation fails with
// [ErrReadOnly], including the optional mutation capabilities (chmod,
// chown, chtimes, copy, move, symlink), which the wrapper advertises
// precisely so that the failure is "read-only" rather than "unsupported".
type ReadOnlyAdapter struct {
	inner Adapter
}

// NewReadOnlyAdapter wraps an Adapter in a read-only view.
func NewReadOnlyAdapter(inner Adapter) *ReadOnlyAdapter {
	return &ReadOnlyAdapter{inner: inner}
}

// Inner returns the wrapped Adapter.
func (a *ReadOnlyAdapter) Inner() Adapter {
	return a.inner
}

func (a *ReadOnlyAdapter) refuse(op string, p Pathname) error {
	return &PathError{Op: op, Path: p.String(), Err: ErrReadOnly}
}

// Stat implements Adapter.
func (a *ReadOnlyAdapter) Stat(ctx context.Context, p Pathname) (*Metadata, error) {
	return a.inner.Stat(ctx, p)
}

// ReadDir implements Adapter.
func (a *ReadOnlyAdapter) ReadDir(ctx context.Context, p Pathname) ([]DirEntry, error) {
	return a.inner.ReadDir(ctx, p)
}

// OpenRead implements Adapter.
func (a *ReadOnlyAdapter) OpenRead(ctx context.Context, p Pathname) (io.ReadCloser, error) {
	return a.inner.OpenRead(ctx, p)
}

// ResolveLink implements Adapter.
func (a *ReadOnlyAdapter) ResolveLink(ctx context.Context, p Pathname) (Pathname, error) {
	return a.inner.ResolveLink(ctx, p)
}

// OpenWrite implements Adapter and always refuses.
func (a *ReadOnlyAdapter) OpenWrite(ctx context.Context, p Pathname, append bool) (io.WriteCloser, error) {
	return nil, a.refuse("write", p)
}

// CreateDir implements Adapter and always refuses.
func (a *ReadOnlyAdapter) CreateDir(ctx context.Context, p Pathname, parents bool) error {
	return a.refuse("createdir", p)
}

// CreateFile implements Adapter and always refuses.
func (a *ReadOnlyAdapter) CreateFile(ctx context.Context, p Pathname, parents bool) error {
	return a.refuse("createfile", p)
}

// Delete implements Adapter and always refuses.
func (a *ReadOnlyAdapter) Delete(ctx context.Context, p Pathname, recursive, force bool) error {
	return a.refuse("delete", p)
}

// Chmod implements CanChmod and always refuses.
func (a *ReadOnlyAdapter) Chmod(ctx context.Context, p Pathname, mode fs.FileMode) error {
	return a.refuse("chmod", p)
}

// Chown implements CanChown and always refuses.
func (a *ReadOnlyAdapter) Chown(ctx context.Context, p Pathname, owner, group string) error {
	return a.refuse("chown", p)
}

// Chtimes implements CanChtimes and always refuses.
func (a *ReadOnlyAdapter) Chtimes(ctx context.Context, p Pathname, atime, mtime time.Time) error {
	return a.refuse("chtimes", p)
}

// Copy implements CanCopy and always refuses.
func (a *ReadOnlyAdapter) Copy(ctx context.Context, src, dst Pathname) error {
	return a.refuse("copy", dst)
}

// Move implements CanMove and always refuses.
func (a *ReadOnlyAdapter) Move(ctx context.Context, src, dst Pathname) error {
	return a.refuse("move", dst)
}

// Symlink implements CanSymlink and always refuses.
func (a *ReadOnlyAdapter) Symlink(ctx context.Context, target, link Pathname) error {
	return a.refuse("symlink", link)
}

// Checksum implements CanChecksum by delegating when the wrapped adapter
// offers a native checksum; otherwise the node layer streams the content.
func (a *ReadOnlyAdapter) Checksum(ctx context.Context, p Pathname, algorithm ChecksumAlgorithm) (string, error) {
	if native, ok := a.inner.(CanChecksum); ok {
		return native.Checksum(ctx, p, algorithm)
	}
	return "", &PathError{Op: "checksum", Path: p.String(), Err: ErrNotSupported}
}

// Ensure ReadOnlyAdapter implements the adapter interfaces
var (
	_ Adapter     = (*ReadOnlyAdapter)(nil)
	_ CanChmod    = (*ReadOnlyAdapter)(nil)
	_ CanChown    = (*ReadOnlyAdapter)(nil)
	_ CanChtimes  = (*ReadOnlyAdapter)(nil)
	_ CanCopy     = (*ReadOnlyAdapter)(nil)
	_ CanMove     = (*ReadOnlyAdapter)(nil)
	_ CanSymlink  = (*ReadOnlyAdapter)(nil)
	_ CanChecksum = (*ReadOnlyAdapter)(nil)
)
