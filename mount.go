package nodefs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrMountNotFound is returned when no mount point matches the path
	ErrMountNotFound = errors.New("no mount point found for path")
	// ErrMountExists is returned when trying to mount at an existing path
	ErrMountExists = errors.New("mount point already exists")
	// ErrNilAdapter is returned when trying to mount a nil adapter
	ErrNilAdapter = errors.New("adapter cannot be nil")
)

// MountAdapter merges several backends into one tree: each Adapter is
// mounted under a pathname prefix, and operations route to the mount with
// the longest matching prefix. Ancestors of mount points that no mount
// covers appear as virtual directories.
//
// MountAdapter itself implements Adapter, so a [Filesystem] over it hands
// out Nodes that span every mounted backend:
//
//	mounts := NewMountAdapter()
//	mounts.Mount("/staging", memory.New())
//	mounts.Mount("/archive", NewReadOnlyAdapter(archive))
//	fsys, _ := NewFilesystem(mounts)
type MountAdapter struct {
	mu     sync.RWMutex
	conv   Conventions
	mounts map[string]Adapter
	// sorted mount paths for longest-prefix matching
	sortedPaths []string
}

// NewMountAdapter creates an empty mount table using [Posix] conventions
// for mount point paths.
func NewMountAdapter() *MountAdapter {
	return &MountAdapter{
		conv:   Posix,
		mounts: make(map[string]Adapter),
	}
}

// Mount attaches an adapter at the given path. The path must be absolute
// and unique; nested mounts are supported, with the deepest prefix winning.
func (m *MountAdapter) Mount(path string, adapter Adapter) error {
	if adapter == nil {
		return ErrNilAdapter
	}

	p, err := Normalize(path, m.conv)
	if err != nil {
		return err
	}
	if !p.IsAbs() {
		return &PathError{Op: "mount", Path: path, Err: ErrInvalidPath}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := p.String()
	if _, exists := m.mounts[key]; exists {
		return fmt.Errorf("%w: %s", ErrMountExists, key)
	}

	m.mounts[key] = adapter
	m.updateSortedPaths()

	return nil
}

// Unmount removes the adapter at the given path.
func (m *MountAdapter) Unmount(path string) error {
	p, err := Normalize(path, m.conv)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := p.String()
	if _, exists := m.mounts[key]; !exists {
		return fmt.Errorf("%w: %s", ErrMountNotFound, key)
	}

	delete(m.mounts, key)
	m.updateSortedPaths()

	return nil
}

// MountPaths returns all mount paths, longest first.
func (m *MountAdapter) MountPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, len(m.sortedPaths))
	copy(result, m.sortedPaths)
	return result
}

// updateSortedPaths must be called with the lock held.
func (m *MountAdapter) updateSortedPaths() {
	paths := make([]string, 0, len(m.mounts))
	for p := range m.mounts {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		return len(paths[i]) > len(paths[j])
	})
	m.sortedPaths = paths
}

// resolve finds the longest-prefix mount for a pathname and translates the
// pathname into the mount's own rooted namespace.
func (m *MountAdapter) resolve(p Pathname) (Adapter, Pathname, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	canonical := p.String()
	for _, mountPath := range m.sortedPaths {
		if canonical != mountPath && !strings.HasPrefix(canonical, mountPathPrefix(mountPath)) {
			continue
		}
		adapter := m.mounts[mountPath]
		depth := mountDepth(mountPath, m.conv)
		rel := makePathname("/", p.Segments()[depth:], m.conv)
		return adapter, rel, mountPath, nil
	}

	return nil, Pathname{}, "", &PathError{Op: "resolve", Path: canonical, Err: ErrMountNotFound}
}

func mountPathPrefix(mountPath string) string {
	if mountPath == "/" {
		return "/"
	}
	return mountPath + "/"
}

func mountDepth(mountPath string, conv Conventions) int {
	p, err := Normalize(mountPath, conv)
	if err != nil {
		return 0
	}
	return p.Depth()
}

// rebase translates a pathname from a mount's namespace back into the
// merged namespace.
func (m *MountAdapter) rebase(mountPath string, p Pathname) (Pathname, error) {
	base, err := Normalize(mountPath, m.conv)
	if err != nil {
		return Pathname{}, err
	}
	return base.Join(strings.Join(p.Segments(), "/"))
}

// virtualChildren returns the next segment of every mount path strictly
// below p, as virtual directory entries.
func (m *MountAdapter) virtualChildren(p Pathname) []DirEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := mountPathPrefix(p.String())
	seen := make(map[string]bool)
	var entries []DirEntry

	for mountPath := range m.mounts {
		if !strings.HasPrefix(mountPath, prefix) {
			continue
		}
		rest := strings.TrimPrefix(mountPath, prefix)
		name, _, _ := strings.Cut(rest, "/")
		if name != "" && !seen[name] {
			seen[name] = true
			entries = append(entries, DirEntry{Name: name, Type: TypeDir})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return entries
}

// ============================================================================
// Adapter Implementation
// ============================================================================

// Stat implements Adapter. Unmounted ancestors of mount points report as
// virtual directories.
func (m *MountAdapter) Stat(ctx context.Context, p Pathname) (*Metadata, error) {
	adapter, rel, _, err := m.resolve(p)
	if err != nil {
		if len(m.virtualChildren(p)) > 0 || p.IsRoot() {
			return &Metadata{Type: TypeDir}, nil
		}
		return nil, &PathError{Op: "stat", Path: p.String(), Err: ErrNotExist}
	}
	return adapter.Stat(ctx, rel)
}

// ReadDir implements Adapter. Listing a virtual directory yields the mount
// points below it; listing a mounted path delegates, merged with any
// nested mount points the delegate does not know about.
func (m *MountAdapter) ReadDir(ctx context.Context, p Pathname) ([]DirEntry, error) {
	virtual := m.virtualChildren(p)

	adapter, rel, _, err := m.resolve(p)
	if err != nil {
		if len(virtual) > 0 || p.IsRoot() {
			return virtual, nil
		}
		return nil, &PathError{Op: "readdir", Path: p.String(), Err: ErrNotExist}
	}

	entries, err := adapter.ReadDir(ctx, rel)
	if err != nil {
		return nil, err
	}

	if len(virtual) == 0 {
		return entries, nil
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.Name] = true
	}
	for _, v := range virtual {
		if !seen[v.Name] {
			entries = append(entries, v)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// OpenRead implements Adapter.
func (m *MountAdapter) OpenRead(ctx context.Context, p Pathname) (io.ReadCloser, error) {
	adapter, rel, _, err := m.resolve(p)
	if err != nil {
		return nil, err
	}
	return adapter.OpenRead(ctx, rel)
}

// OpenWrite implements Adapter.
func (m *MountAdapter) OpenWrite(ctx context.Context, p Pathname, append bool) (io.WriteCloser, error) {
	adapter, rel, _, err := m.resolve(p)
	if err != nil {
		return nil, err
	}
	return adapter.OpenWrite(ctx, rel, append)
}

// ResolveLink implements Adapter, translating the target back into the
// merged namespace.
func (m *MountAdapter) ResolveLink(ctx context.Context, p Pathname) (Pathname, error) {
	adapter, rel, mountPath, err := m.resolve(p)
	if err != nil {
		return Pathname{}, err
	}
	target, err := adapter.ResolveLink(ctx, rel)
	if err != nil {
		return Pathname{}, err
	}
	return m.rebase(mountPath, target)
}

// CreateDir implements Adapter. Virtual directories cannot be created.
func (m *MountAdapter) CreateDir(ctx context.Context, p Pathname, parents bool) error {
	adapter, rel, _, err := m.resolve(p)
	if err != nil {
		return err
	}
	return adapter.CreateDir(ctx, rel, parents)
}

// CreateFile implements Adapter.
func (m *MountAdapter) CreateFile(ctx context.Context, p Pathname, parents bool) error {
	adapter, rel, _, err := m.resolve(p)
	if err != nil {
		return err
	}
	return adapter.CreateFile(ctx, rel, parents)
}

// Delete implements Adapter. Mount points and virtual directories cannot
// be deleted through the tree; use Unmount.
func (m *MountAdapter) Delete(ctx context.Context, p Pathname, recursive, force bool) error {
	adapter, rel, _, err := m.resolve(p)
	if err != nil {
		return err
	}
	if rel.IsRoot() {
		return &PathError{Op: "delete", Path: p.String(), Err: ErrNotSupported}
	}
	return adapter.Delete(ctx, rel, recursive, force)
}

// ============================================================================
// Optional Capability Delegation
// ============================================================================

// Copy implements CanCopy when source and destination land on the same
// mount and that mount copies natively; otherwise it reports
// [ErrNotSupported] and the node layer streams the content across mounts.
func (m *MountAdapter) Copy(ctx context.Context, src, dst Pathname) error {
	srcAdapter, srcRel, _, err := m.resolve(src)
	if err != nil {
		return err
	}
	dstAdapter, dstRel, _, err := m.resolve(dst)
	if err != nil {
		return err
	}
	if srcAdapter == dstAdapter {
		if copier, ok := srcAdapter.(CanCopy); ok {
			return copier.Copy(ctx, srcRel, dstRel)
		}
	}
	return &PathError{Op: "copy", Path: dst.String(), Err: ErrNotSupported}
}

// Move implements CanMove with the same same-mount rule as Copy.
func (m *MountAdapter) Move(ctx context.Context, src, dst Pathname) error {
	srcAdapter, srcRel, _, err := m.resolve(src)
	if err != nil {
		return err
	}
	dstAdapter, dstRel, _, err := m.resolve(dst)
	if err != nil {
		return err
	}
	if srcAdapter == dstAdapter {
		if mover, ok := srcAdapter.(CanMove); ok {
			return mover.Move(ctx, srcRel, dstRel)
		}
	}
	return &PathError{Op: "move", Path: dst.String(), Err: ErrNotSupported}
}

// Checksum implements CanChecksum by delegating to the underlying mount.
func (m *MountAdapter) Checksum(ctx context.Context, p Pathname, algorithm ChecksumAlgorithm) (string, error) {
	adapter, rel, _, err := m.resolve(p)
	if err != nil {
		return "", err
	}
	if native, ok := adapter.(CanChecksum); ok {
		return native.Checksum(ctx, rel, algorithm)
	}
	return "", &PathError{Op: "checksum", Path: p.String(), Err: ErrNotSupported}
}

// Ensure MountAdapter implements Adapter and optional interfaces
var (
	_ Adapter     = (*MountAdapter)(nil)
	_ CanCopy     = (*MountAdapter)(nil)
	_ CanMove     = (*MountAdapter)(nil)
	_ CanChecksum = (*MountAdapter)(nil)
)
