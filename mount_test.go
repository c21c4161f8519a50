package nodefs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gobeaver/nodefs"
	"github.com/gobeaver/nodefs/adapter/memory"
)

func newMountedFS(t *testing.T) (*nodefs.Filesystem, *memory.Adapter, *memory.Adapter) {
	t.Helper()
	staging := memory.New()
	archive := memory.New()

	mounts := nodefs.NewMountAdapter()
	if err := mounts.Mount("/staging", staging); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mounts.Mount("/archive/2024", archive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fs, err := nodefs.NewFilesystem(mounts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return fs, staging, archive
}

func TestMountTable(t *testing.T) {
	t.Run("mount and unmount", func(t *testing.T) {
		mounts := nodefs.NewMountAdapter()
		if err := mounts.Mount("/a", memory.New()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err := mounts.Mount("/a", memory.New())
		if !errors.Is(err, nodefs.ErrMountExists) {
			t.Errorf("expected ErrMountExists, got: %v", err)
		}

		if err := mounts.Unmount("/a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err = mounts.Unmount("/a")
		if !errors.Is(err, nodefs.ErrMountNotFound) {
			t.Errorf("expected ErrMountNotFound, got: %v", err)
		}
	})

	t.Run("rejects nil adapter", func(t *testing.T) {
		mounts := nodefs.NewMountAdapter()
		if err := mounts.Mount("/a", nil); !errors.Is(err, nodefs.ErrNilAdapter) {
			t.Errorf("expected ErrNilAdapter, got: %v", err)
		}
	})

	t.Run("rejects relative mount path", func(t *testing.T) {
		mounts := nodefs.NewMountAdapter()
		if err := mounts.Mount("a/b", memory.New()); !nodefs.IsInvalidPath(err) {
			t.Errorf("expected ErrInvalidPath, got: %v", err)
		}
	})

	t.Run("mount paths sorted longest first", func(t *testing.T) {
		mounts := nodefs.NewMountAdapter()
		if err := mounts.Mount("/a", memory.New()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mounts.Mount("/a/deeper", memory.New()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := mounts.MountPaths()
		if len(got) != 2 || got[0] != "/a/deeper" || got[1] != "/a" {
			t.Errorf("unexpected mount paths: %v", got)
		}
	})
}

func TestMountRouting(t *testing.T) {
	ctx := context.Background()

	t.Run("operations land on the mounted backend", func(t *testing.T) {
		fs, staging, archive := newMountedFS(t)
		writeFile(t, fs, "/staging/f.txt", "staged")

		if staging.FileCount() != 1 {
			t.Errorf("expected file in staging backend, count=%d", staging.FileCount())
		}
		if archive.FileCount() != 0 {
			t.Errorf("expected archive backend untouched, count=%d", archive.FileCount())
		}

		data, err := mustNode(t, fs, "/staging/f.txt").ReadAll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "staged" {
			t.Errorf("expected %q, got %q", "staged", data)
		}
	})

	t.Run("deepest prefix wins for nested mounts", func(t *testing.T) {
		outer := memory.New()
		inner := memory.New()
		mounts := nodefs.NewMountAdapter()
		if err := mounts.Mount("/data", outer); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mounts.Mount("/data/hot", inner); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		fs, err := nodefs.NewFilesystem(mounts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		writeFile(t, fs, "/data/hot/f.txt", "x")
		if inner.FileCount() != 1 {
			t.Errorf("expected inner backend to receive the write, count=%d", inner.FileCount())
		}
		if outer.FileCount() != 0 {
			t.Errorf("expected outer backend untouched, count=%d", outer.FileCount())
		}
	})

	t.Run("outside any mount fails", func(t *testing.T) {
		fs, _, _ := newMountedFS(t)
		err := mustNode(t, fs, "/elsewhere/f.txt").CreateFile(ctx)
		if !errors.Is(err, nodefs.ErrMountNotFound) {
			t.Errorf("expected ErrMountNotFound, got: %v", err)
		}
	})

	t.Run("virtual ancestors stat as directories", func(t *testing.T) {
		fs, _, _ := newMountedFS(t)
		for _, path := range []string{"/", "/archive"} {
			isDir, err := mustNode(t, fs, path).IsDir(ctx)
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", path, err)
			}
			if !isDir {
				t.Errorf("expected %q to be a virtual directory", path)
			}
		}
	})

	t.Run("root lists mount points as entries", func(t *testing.T) {
		fs, _, _ := newMountedFS(t)
		nodes, err := fs.Root().Ls(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := paths(nodes)
		want := []string{"/archive", "/staging"}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("recursive listing spans mounts", func(t *testing.T) {
		fs, _, _ := newMountedFS(t)
		writeFile(t, fs, "/staging/in.txt", "a")
		writeFile(t, fs, "/archive/2024/old.txt", "b")

		nodes, err := fs.Root().Ls(ctx, nodefs.Recursive(true), nodefs.ByType(nodefs.TypeFile))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := paths(nodes)
		want := []string{"/archive/2024/old.txt", "/staging/in.txt"}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("mount point cannot be deleted through the tree", func(t *testing.T) {
		fs, _, _ := newMountedFS(t)
		err := mustNode(t, fs, "/staging").Delete(ctx, nodefs.WithRecursive(true))
		if !nodefs.IsNotSupported(err) {
			t.Errorf("expected ErrNotSupported, got: %v", err)
		}
	})
}

func TestMountCopyMove(t *testing.T) {
	ctx := context.Background()

	t.Run("same-mount copy uses the backend", func(t *testing.T) {
		fs, _, _ := newMountedFS(t)
		src := writeFile(t, fs, "/staging/src.txt", "data")
		dst := mustNode(t, fs, "/staging/dst.txt")

		if err := src.CopyTo(ctx, dst); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, err := dst.ReadAll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "data" {
			t.Errorf("expected %q, got %q", "data", data)
		}
	})

	t.Run("cross-mount copy streams", func(t *testing.T) {
		fs, _, archive := newMountedFS(t)
		src := writeFile(t, fs, "/staging/src.txt", "promoted")
		dst := mustNode(t, fs, "/archive/2024/src.txt")

		if err := src.CopyTo(ctx, dst); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if archive.FileCount() != 1 {
			t.Errorf("expected archive backend to hold the copy, count=%d", archive.FileCount())
		}
		data, err := dst.ReadAll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "promoted" {
			t.Errorf("expected %q, got %q", "promoted", data)
		}
	})

	t.Run("cross-mount move copies then deletes", func(t *testing.T) {
		fs, staging, _ := newMountedFS(t)
		src := writeFile(t, fs, "/staging/src.txt", "moved")
		dst := mustNode(t, fs, "/archive/2024/src.txt")

		if err := src.MoveTo(ctx, dst); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if staging.FileCount() != 0 {
			t.Errorf("expected staging backend emptied, count=%d", staging.FileCount())
		}
		data, err := dst.ReadAll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "moved" {
			t.Errorf("expected %q, got %q", "moved", data)
		}
	})
}

func TestMountChecksum(t *testing.T) {
	fs, _, _ := newMountedFS(t)
	n := writeFile(t, fs, "/staging/f.txt", "hello world")

	sum, err := n.MD5(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Errorf("unexpected digest: %s", sum)
	}
}

func TestMountLinkRebase(t *testing.T) {
	ctx := context.Background()
	fs, staging, _ := newMountedFS(t)
	writeFile(t, fs, "/staging/target.txt", "t")

	// Create the link inside the backend's own namespace.
	target, err := nodefs.Normalize("/target.txt", nodefs.Posix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	link, err := nodefs.Normalize("/link", nodefs.Posix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := staging.Symlink(ctx, target, link); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Through the merged tree the target comes back mount-qualified.
	resolved, err := mustNode(t, fs, "/staging/link").LinkTarget(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.String() != "/staging/target.txt" {
		t.Errorf("expected /staging/target.txt, got %q", resolved)
	}
}
