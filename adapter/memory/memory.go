// Package memory provides an in-memory implementation of nodefs.Adapter.
// It is the reference backend: fast, hermetic, and with full support for
// directories, symbolic links, modes, ownership and native checksums, which
// makes it the natural backend for tests and caching scenarios.
package memory

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobeaver/nodefs"
)

// maxLinkDepth bounds link prefix resolution, as ELOOP does.
const maxLinkDepth = 32

// memoryFile represents a file stored in memory
type memoryFile struct {
	content     []byte
	contentType string
	mode        fs.FileMode
	owner       string
	group       string
	modTime     time.Time
}

// memoryDir represents a directory in memory
type memoryDir struct {
	mode    fs.FileMode
	owner   string
	group   string
	modTime time.Time
}

// memoryLink represents a symbolic link in memory
type memoryLink struct {
	target  string // canonical pathname of the target
	modTime time.Time
}

// Adapter provides an in-memory implementation of nodefs.Adapter.
// All entries are keyed by canonical pathname string.
type Adapter struct {
	mu      sync.RWMutex
	files   map[string]*memoryFile
	dirs    map[string]*memoryDir
	links   map[string]*memoryLink
	maxSize int64 // Maximum total storage size (0 = unlimited)
	size    int64 // Current total size
}

// Config holds configuration for the memory adapter
type Config struct {
	// MaxSize is the maximum total storage size in bytes (0 = unlimited)
	MaxSize int64
}

// New creates a new in-memory adapter with an empty root directory.
func New(cfg ...Config) *Adapter {
	var maxSize int64
	if len(cfg) > 0 {
		maxSize = cfg[0].MaxSize
	}

	a := &Adapter{
		files:   make(map[string]*memoryFile),
		dirs:    make(map[string]*memoryDir),
		links:   make(map[string]*memoryLink),
		maxSize: maxSize,
	}

	a.dirs["/"] = &memoryDir{mode: 0o755, modTime: time.Now()}

	return a
}

// Clear removes everything except the root directory. Useful for test
// cleanup.
func (a *Adapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.files = make(map[string]*memoryFile)
	a.dirs = map[string]*memoryDir{"/": {mode: 0o755, modTime: time.Now()}}
	a.links = make(map[string]*memoryLink)
	a.size = 0
}

// Size returns the current total size of all stored files
func (a *Adapter) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

// FileCount returns the number of files stored
func (a *Adapter) FileCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.files)
}

// ============================================================================
// Path helpers (lock held)
// ============================================================================

func keyOf(p nodefs.Pathname) (string, error) {
	if !p.IsAbs() {
		return "", &nodefs.PathError{Op: "resolve", Path: p.String(), Err: nodefs.ErrInvalidPath}
	}
	return p.String(), nil
}

func splitKey(key string) (parent, name string) {
	idx := strings.LastIndexByte(key, '/')
	name = key[idx+1:]
	parent = key[:idx]
	if parent == "" {
		parent = "/"
	}
	return parent, name
}

func joinKey(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// resolve follows link prefixes anywhere in the key, including the final
// segment, bounded by maxLinkDepth.
func (a *Adapter) resolve(key string) (string, error) {
	for i := 0; i < maxLinkDepth; i++ {
		hit := ""
		for linkPath := range a.links {
			if key == linkPath || strings.HasPrefix(key, linkPath+"/") {
				if len(linkPath) > len(hit) {
					hit = linkPath
				}
			}
		}
		if hit == "" {
			return key, nil
		}
		key = a.links[hit].target + strings.TrimPrefix(key, hit)
	}
	return "", &nodefs.PathError{Op: "resolve", Path: key, Err: nodefs.ErrCyclic}
}

// resolveFinal follows link prefixes strictly above the final segment, so
// that a link at the key itself stays visible (lstat semantics).
func (a *Adapter) resolveFinal(key string) (string, error) {
	if key == "/" {
		return key, nil
	}
	parent, name := splitKey(key)
	rp, err := a.resolve(parent)
	if err != nil {
		return "", err
	}
	return joinKey(rp, name), nil
}

func (a *Adapter) notExist(op, key string) error {
	return &nodefs.PathError{Op: op, Path: key, Err: nodefs.ErrNotExist}
}

// ============================================================================
// Core Adapter Implementation
// ============================================================================

// Stat implements nodefs.Adapter. Links report their own type, not the
// target's.
func (a *Adapter) Stat(ctx context.Context, p nodefs.Pathname) (*nodefs.Metadata, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	key, err := keyOf(p)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	key, err = a.resolveFinal(key)
	if err != nil {
		return nil, err
	}

	if link, ok := a.links[key]; ok {
		modTime := link.modTime
		return &nodefs.Metadata{
			Type:    nodefs.TypeLink,
			Size:    int64(len(link.target)),
			ModTime: &modTime,
		}, nil
	}

	if file, ok := a.files[key]; ok {
		mode, owner, group, modTime := file.mode, file.owner, file.group, file.modTime
		return &nodefs.Metadata{
			Type:        nodefs.TypeFile,
			Size:        int64(len(file.content)),
			ContentType: file.contentType,
			Mode:        &mode,
			Owner:       &owner,
			Group:       &group,
			ModTime:     &modTime,
		}, nil
	}

	if dir, ok := a.dirs[key]; ok {
		mode, owner, group, modTime := dir.mode, dir.owner, dir.group, dir.modTime
		return &nodefs.Metadata{
			Type:    nodefs.TypeDir,
			Mode:    &mode,
			Owner:   &owner,
			Group:   &group,
			ModTime: &modTime,
		}, nil
	}

	return nil, a.notExist("stat", key)
}

// ReadDir implements nodefs.Adapter. A link given as the directory is
// followed.
func (a *Adapter) ReadDir(ctx context.Context, p nodefs.Pathname) ([]nodefs.DirEntry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	key, err := keyOf(p)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	key, err = a.resolve(key)
	if err != nil {
		return nil, err
	}

	if _, ok := a.dirs[key]; !ok {
		if _, isFile := a.files[key]; isFile {
			return nil, &nodefs.PathError{Op: "readdir", Path: key, Err: nodefs.ErrNotDir}
		}
		return nil, a.notExist("readdir", key)
	}

	var entries []nodefs.DirEntry
	collect := func(childKey string, t nodefs.NodeType) {
		parent, name := splitKey(childKey)
		if parent == key && childKey != "/" {
			entries = append(entries, nodefs.DirEntry{Name: name, Type: t})
		}
	}
	for k := range a.files {
		collect(k, nodefs.TypeFile)
	}
	for k := range a.dirs {
		collect(k, nodefs.TypeDir)
	}
	for k := range a.links {
		collect(k, nodefs.TypeLink)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

// OpenRead implements nodefs.Adapter. Links are followed to their content.
func (a *Adapter) OpenRead(ctx context.Context, p nodefs.Pathname) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	key, err := keyOf(p)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	key, err = a.resolve(key)
	if err != nil {
		return nil, err
	}

	file, ok := a.files[key]
	if !ok {
		if _, isDir := a.dirs[key]; isDir {
			return nil, &nodefs.PathError{Op: "read", Path: key, Err: nodefs.ErrIsDir}
		}
		return nil, a.notExist("read", key)
	}

	// Copy so later writes do not leak into an open reader.
	content := make([]byte, len(file.content))
	copy(content, file.content)
	return io.NopCloser(bytes.NewReader(content)), nil
}

// OpenWrite implements nodefs.Adapter. The returned sink buffers writes and
// commits atomically on Close. The parent directory must already exist.
func (a *Adapter) OpenWrite(ctx context.Context, p nodefs.Pathname, append bool) (io.WriteCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	key, err := keyOf(p)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	key, err = a.resolve(key)
	if err != nil {
		return nil, err
	}
	if _, isDir := a.dirs[key]; isDir {
		return nil, &nodefs.PathError{Op: "write", Path: key, Err: nodefs.ErrIsDir}
	}

	parent, _ := splitKey(key)
	if _, ok := a.dirs[parent]; !ok {
		if _, isFile := a.files[parent]; isFile {
			return nil, &nodefs.PathError{Op: "write", Path: key, Err: nodefs.ErrNotDir}
		}
		return nil, a.notExist("write", key)
	}

	return &memWriter{adapter: a, key: key, append: append}, nil
}

// memWriter buffers written bytes and commits them on Close.
type memWriter struct {
	adapter *Adapter
	key     string
	append  bool
	buf     bytes.Buffer
	closed  bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, &nodefs.PathError{Op: "write", Path: w.key, Err: nodefs.ErrClosed}
	}
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	a := w.adapter
	a.mu.Lock()
	defer a.mu.Unlock()

	data := w.buf.Bytes()
	existing := a.files[w.key]

	if w.append && existing != nil {
		data = append(append([]byte{}, existing.content...), data...)
	}

	newSize := a.size + int64(len(data))
	if existing != nil {
		newSize -= int64(len(existing.content))
	}
	if a.maxSize > 0 && newSize > a.maxSize {
		return &nodefs.PathError{Op: "write", Path: w.key, Err: nodefs.ErrNoSpace}
	}

	file := existing
	if file == nil {
		file = &memoryFile{mode: 0o644}
		a.files[w.key] = file
	}
	file.content = data
	file.contentType = nodefs.GuessContentType(w.key, data)
	file.modTime = time.Now()
	a.size = newSize

	return nil
}

// ResolveLink implements nodefs.Adapter.
func (a *Adapter) ResolveLink(ctx context.Context, p nodefs.Pathname) (nodefs.Pathname, error) {
	select {
	case <-ctx.Done():
		return nodefs.Pathname{}, ctx.Err()
	default:
	}

	key, err := keyOf(p)
	if err != nil {
		return nodefs.Pathname{}, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	key, err = a.resolveFinal(key)
	if err != nil {
		return nodefs.Pathname{}, err
	}

	link, ok := a.links[key]
	if !ok {
		if _, exists := a.files[key]; !exists {
			if _, exists := a.dirs[key]; !exists {
				return nodefs.Pathname{}, a.notExist("readlink", key)
			}
		}
		return nodefs.Pathname{}, &nodefs.PathError{Op: "readlink", Path: key, Err: nodefs.ErrNotLink}
	}

	return nodefs.Normalize(link.target, nodefs.Posix)
}

// CreateDir implements nodefs.Adapter.
func (a *Adapter) CreateDir(ctx context.Context, p nodefs.Pathname, parents bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	key, err := keyOf(p)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key, err = a.resolveFinal(key)
	if err != nil {
		return err
	}

	if _, ok := a.dirs[key]; ok {
		if parents {
			return nil
		}
		return &nodefs.PathError{Op: "createdir", Path: key, Err: nodefs.ErrExist}
	}
	if a.occupied(key) {
		return &nodefs.PathError{Op: "createdir", Path: key, Err: nodefs.ErrExist}
	}

	if err := a.requireParent("createdir", key, parents); err != nil {
		return err
	}

	a.dirs[key] = &memoryDir{mode: 0o755, modTime: time.Now()}
	return nil
}

// CreateFile implements nodefs.Adapter.
func (a *Adapter) CreateFile(ctx context.Context, p nodefs.Pathname, parents bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	key, err := keyOf(p)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key, err = a.resolveFinal(key)
	if err != nil {
		return err
	}

	if a.occupied(key) {
		return &nodefs.PathError{Op: "createfile", Path: key, Err: nodefs.ErrExist}
	}

	if err := a.requireParent("createfile", key, parents); err != nil {
		return err
	}

	a.files[key] = &memoryFile{mode: 0o644, modTime: time.Now()}
	return nil
}

// occupied reports whether any entry lives at key. Lock held.
func (a *Adapter) occupied(key string) bool {
	if _, ok := a.files[key]; ok {
		return true
	}
	if _, ok := a.dirs[key]; ok {
		return true
	}
	if _, ok := a.links[key]; ok {
		return true
	}
	return false
}

// requireParent ensures the parent directory of key exists, creating the
// ancestor chain when parents is true. Lock held.
func (a *Adapter) requireParent(op, key string, parents bool) error {
	parent, _ := splitKey(key)
	if _, ok := a.dirs[parent]; ok {
		return nil
	}
	if _, isFile := a.files[parent]; isFile {
		return &nodefs.PathError{Op: op, Path: key, Err: nodefs.ErrNotDir}
	}
	if !parents {
		return a.notExist(op, key)
	}

	// Create missing ancestors from the root down.
	missing := []string{parent}
	for parent != "/" {
		parent, _ = splitKey(parent)
		if _, ok := a.dirs[parent]; ok {
			break
		}
		if _, isFile := a.files[parent]; isFile {
			return &nodefs.PathError{Op: op, Path: key, Err: nodefs.ErrNotDir}
		}
		missing = append(missing, parent)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		a.dirs[missing[i]] = &memoryDir{mode: 0o755, modTime: time.Now()}
	}
	return nil
}

// Delete implements nodefs.Adapter. Deleting a link removes the link, not
// its target. The memory backend has no permission model, so force has
// nothing to override.
func (a *Adapter) Delete(ctx context.Context, p nodefs.Pathname, recursive, force bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	key, err := keyOf(p)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key, err = a.resolveFinal(key)
	if err != nil {
		return err
	}

	if key == "/" {
		return &nodefs.PathError{Op: "delete", Path: key, Err: nodefs.ErrNotSupported}
	}

	if _, ok := a.links[key]; ok {
		delete(a.links, key)
		return nil
	}

	if file, ok := a.files[key]; ok {
		a.size -= int64(len(file.content))
		delete(a.files, key)
		return nil
	}

	if _, ok := a.dirs[key]; !ok {
		return a.notExist("delete", key)
	}

	prefix := key + "/"
	if !recursive {
		for k := range a.files {
			if strings.HasPrefix(k, prefix) {
				return &nodefs.PathError{Op: "delete", Path: key, Err: nodefs.ErrNotEmpty}
			}
		}
		for k := range a.dirs {
			if strings.HasPrefix(k, prefix) {
				return &nodefs.PathError{Op: "delete", Path: key, Err: nodefs.ErrNotEmpty}
			}
		}
		for k := range a.links {
			if strings.HasPrefix(k, prefix) {
				return &nodefs.PathError{Op: "delete", Path: key, Err: nodefs.ErrNotEmpty}
			}
		}
	}

	for k, file := range a.files {
		if strings.HasPrefix(k, prefix) {
			a.size -= int64(len(file.content))
			delete(a.files, k)
		}
	}
	for k := range a.dirs {
		if k == key || strings.HasPrefix(k, prefix) {
			delete(a.dirs, k)
		}
	}
	for k := range a.links {
		if strings.HasPrefix(k, prefix) {
			delete(a.links, k)
		}
	}

	return nil
}

// ============================================================================
// Optional Capability Implementations
// ============================================================================

// Symlink implements nodefs.CanSymlink. The link's parent must exist; the
// target need not (dangling links are valid).
func (a *Adapter) Symlink(ctx context.Context, target, link nodefs.Pathname) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	linkKey, err := keyOf(link)
	if err != nil {
		return err
	}
	targetKey, err := keyOf(target)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.occupied(linkKey) {
		return &nodefs.PathError{Op: "symlink", Path: linkKey, Err: nodefs.ErrExist}
	}
	if err := a.requireParent("symlink", linkKey, false); err != nil {
		return err
	}

	a.links[linkKey] = &memoryLink{target: targetKey, modTime: time.Now()}
	return nil
}

// Chmod implements nodefs.CanChmod.
func (a *Adapter) Chmod(ctx context.Context, p nodefs.Pathname, mode fs.FileMode) error {
	return a.update(ctx, p, "chmod", func(file *memoryFile, dir *memoryDir) {
		if file != nil {
			file.mode = mode
		}
		if dir != nil {
			dir.mode = mode
		}
	})
}

// Chown implements nodefs.CanChown. An empty owner or group leaves that
// half unchanged.
func (a *Adapter) Chown(ctx context.Context, p nodefs.Pathname, owner, group string) error {
	return a.update(ctx, p, "chown", func(file *memoryFile, dir *memoryDir) {
		if file != nil {
			if owner != "" {
				file.owner = owner
			}
			if group != "" {
				file.group = group
			}
		}
		if dir != nil {
			if owner != "" {
				dir.owner = owner
			}
			if group != "" {
				dir.group = group
			}
		}
	})
}

// Chtimes implements nodefs.CanChtimes. The memory backend only tracks
// modification time; a zero mtime leaves it unchanged.
func (a *Adapter) Chtimes(ctx context.Context, p nodefs.Pathname, atime, mtime time.Time) error {
	if mtime.IsZero() {
		return nil
	}
	return a.update(ctx, p, "chtimes", func(file *memoryFile, dir *memoryDir) {
		if file != nil {
			file.modTime = mtime
		}
		if dir != nil {
			dir.modTime = mtime
		}
	})
}

func (a *Adapter) update(ctx context.Context, p nodefs.Pathname, op string, apply func(*memoryFile, *memoryDir)) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	key, err := keyOf(p)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key, err = a.resolve(key)
	if err != nil {
		return err
	}

	if file, ok := a.files[key]; ok {
		apply(file, nil)
		return nil
	}
	if dir, ok := a.dirs[key]; ok {
		apply(nil, dir)
		return nil
	}
	return a.notExist(op, key)
}

// Copy implements nodefs.CanCopy for single files. Directory trees are the
// node layer's job.
func (a *Adapter) Copy(ctx context.Context, src, dst nodefs.Pathname) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	srcKey, err := keyOf(src)
	if err != nil {
		return err
	}
	dstKey, err := keyOf(dst)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	srcKey, err = a.resolve(srcKey)
	if err != nil {
		return err
	}
	dstKey, err = a.resolveFinal(dstKey)
	if err != nil {
		return err
	}

	srcFile, ok := a.files[srcKey]
	if !ok {
		if _, isDir := a.dirs[srcKey]; isDir {
			return &nodefs.PathError{Op: "copy", Path: srcKey, Err: nodefs.ErrNotSupported}
		}
		return a.notExist("copy", srcKey)
	}

	newSize := a.size + int64(len(srcFile.content))
	if existing := a.files[dstKey]; existing != nil {
		newSize -= int64(len(existing.content))
	}
	if a.maxSize > 0 && newSize > a.maxSize {
		return &nodefs.PathError{Op: "copy", Path: dstKey, Err: nodefs.ErrNoSpace}
	}

	if err := a.requireParent("copy", dstKey, false); err != nil {
		return err
	}

	content := make([]byte, len(srcFile.content))
	copy(content, srcFile.content)

	a.files[dstKey] = &memoryFile{
		content:     content,
		contentType: srcFile.contentType,
		mode:        srcFile.mode,
		owner:       srcFile.owner,
		group:       srcFile.group,
		modTime:     time.Now(),
	}
	a.size = newSize

	return nil
}

// Move implements nodefs.CanMove for files and links. Directory moves
// report ErrNotSupported so the node layer degrades to copy plus delete.
func (a *Adapter) Move(ctx context.Context, src, dst nodefs.Pathname) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	srcKey, err := keyOf(src)
	if err != nil {
		return err
	}
	dstKey, err := keyOf(dst)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	srcKey, err = a.resolveFinal(srcKey)
	if err != nil {
		return err
	}
	dstKey, err = a.resolveFinal(dstKey)
	if err != nil {
		return err
	}

	if err := a.requireParent("move", dstKey, false); err != nil {
		return err
	}

	if link, ok := a.links[srcKey]; ok {
		a.links[dstKey] = link
		delete(a.links, srcKey)
		return nil
	}

	srcFile, ok := a.files[srcKey]
	if !ok {
		if _, isDir := a.dirs[srcKey]; isDir {
			return &nodefs.PathError{Op: "move", Path: srcKey, Err: nodefs.ErrNotSupported}
		}
		return a.notExist("move", srcKey)
	}

	if existing := a.files[dstKey]; existing != nil {
		a.size -= int64(len(existing.content))
	}
	a.files[dstKey] = srcFile
	srcFile.modTime = time.Now()
	delete(a.files, srcKey)

	return nil
}

// Checksum implements nodefs.CanChecksum over the in-memory content.
func (a *Adapter) Checksum(ctx context.Context, p nodefs.Pathname, algorithm nodefs.ChecksumAlgorithm) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	key, err := keyOf(p)
	if err != nil {
		return "", err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	key, err = a.resolve(key)
	if err != nil {
		return "", err
	}

	file, ok := a.files[key]
	if !ok {
		return "", a.notExist("checksum", key)
	}

	sum, err := nodefs.CalculateChecksum(bytes.NewReader(file.content), algorithm)
	if err != nil {
		return "", &nodefs.PathError{Op: "checksum", Path: key, Err: err}
	}

	return sum, nil
}

// Ensure Adapter implements the adapter interfaces
var (
	_ nodefs.Adapter     = (*Adapter)(nil)
	_ nodefs.CanSymlink  = (*Adapter)(nil)
	_ nodefs.CanChmod    = (*Adapter)(nil)
	_ nodefs.CanChown    = (*Adapter)(nil)
	_ nodefs.CanChtimes  = (*Adapter)(nil)
	_ nodefs.CanCopy     = (*Adapter)(nil)
	_ nodefs.CanMove     = (*Adapter)(nil)
	_ nodefs.CanChecksum = (*Adapter)(nil)
)
