package nodefs

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// NodeType classifies a node. The values are single bits so that they can be
// combined into a mask for type filtering (TypeFile|TypeDir selects both).
type NodeType uint8

const (
	// TypeFile is a regular file.
	TypeFile NodeType = 1 << iota
	// TypeDir is a directory.
	TypeDir
	// TypeLink is a symbolic link.
	TypeLink
	// TypeUnknown is an entity the backend could not classify.
	TypeUnknown
)

// String returns a short name for a single node type.
func (t NodeType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "directory"
	case TypeLink:
		return "link"
	case TypeUnknown:
		return "unknown"
	}
	return "mask"
}

// Metadata is the result of an Adapter stat call. Optional fields are
// pointers: a nil pointer means the backend does not track that attribute,
// and the corresponding Node accessor fails with [ErrNotSupported] instead
// of fabricating a value.
type Metadata struct {
	// Type classifies the node. Stat is lstat-like: a symbolic link
	// reports TypeLink, never its target's type.
	Type NodeType

	// Size in bytes. Meaningful for files; backends may report 0 for
	// directories.
	Size int64

	// ContentType is the MIME type, when the backend tracks one.
	ContentType string

	// Optional attributes, nil when unsupported by the backend.
	Mode       *fs.FileMode
	Owner      *string
	Group      *string
	ModTime    *time.Time
	AccessTime *time.Time
	CreateTime *time.Time
}

// DirEntry is a single directory enumeration result: the child's basename
// and a type hint. The hint spares the traversal a stat per entry; backends
// that cannot cheaply classify children may report TypeUnknown.
type DirEntry struct {
	Name string
	Type NodeType
}

// ============================================================================
// Core Adapter Contract
// ============================================================================

// Adapter is the capability set a concrete backend must implement. It is the
// only seam between the node layer and storage; every Node operation is a
// blocking request-response against its Adapter.
//
// All pathnames passed in are canonical (produced by [Normalize]); adapters
// never see raw path spellings.
//
// Optional capabilities (ownership, POSIX mode, timestamps, native copy and
// move, native checksums) are separate interfaces discovered by type
// assertion:
//
//	if chmodder, ok := adapter.(CanChmod); ok {
//	    chmodder.Chmod(ctx, p, 0o644)
//	}
type Adapter interface {
	// Stat returns metadata for the node, or ErrNotExist.
	// Symbolic links are reported as TypeLink, not followed.
	Stat(ctx context.Context, p Pathname) (*Metadata, error)

	// ReadDir enumerates the immediate children of a directory.
	// Fails with ErrNotDir on a file and ErrNotExist on a missing path.
	// A link to a directory is followed.
	ReadDir(ctx context.Context, p Pathname) ([]DirEntry, error)

	// OpenRead opens the node's content for streaming read.
	OpenRead(ctx context.Context, p Pathname) (io.ReadCloser, error)

	// OpenWrite opens the node's content for streaming write, creating the
	// file if absent. With append true, writes extend the existing content;
	// otherwise the content is replaced.
	OpenWrite(ctx context.Context, p Pathname, append bool) (io.WriteCloser, error)

	// ResolveLink returns the canonical target of a symbolic link, or
	// ErrNotLink when the node is not a link.
	ResolveLink(ctx context.Context, p Pathname) (Pathname, error)

	// CreateDir creates a directory. With parents true, missing ancestors
	// are created transparently; otherwise a missing parent is an error.
	CreateDir(ctx context.Context, p Pathname, parents bool) error

	// CreateFile creates an empty file. Parent handling as in CreateDir.
	CreateFile(ctx context.Context, p Pathname, parents bool) error

	// Delete removes a node. A non-recursive delete of a non-empty
	// directory fails with ErrNotEmpty rather than partially deleting.
	// With force true, permission-style refusals are overridden where the
	// backend allows it.
	Delete(ctx context.Context, p Pathname, recursive, force bool) error
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================

// CanChmod indicates the backend supports changing POSIX permission bits.
type CanChmod interface {
	Chmod(ctx context.Context, p Pathname, mode fs.FileMode) error
}

// CanChown indicates the backend supports changing ownership. An empty
// owner or group leaves that half unchanged.
type CanChown interface {
	Chown(ctx context.Context, p Pathname, owner, group string) error
}

// CanChtimes indicates the backend supports changing access and
// modification timestamps. A zero time leaves that timestamp unchanged.
type CanChtimes interface {
	Chtimes(ctx context.Context, p Pathname, atime, mtime time.Time) error
}

// CanCopy indicates the backend supports native copy operations. Native
// copy is more efficient than read+write for same-backend operations.
type CanCopy interface {
	Copy(ctx context.Context, src, dst Pathname) error
}

// CanMove indicates the backend supports native move/rename operations.
type CanMove interface {
	Move(ctx context.Context, src, dst Pathname) error
}

// CanChecksum indicates the backend can compute content checksums without
// streaming the content through the caller.
type CanChecksum interface {
	Checksum(ctx context.Context, p Pathname, algorithm ChecksumAlgorithm) (string, error)
}

// CanSymlink indicates the backend supports creating symbolic links.
type CanSymlink interface {
	Symlink(ctx context.Context, target, link Pathname) error
}
