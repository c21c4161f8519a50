package nodefs_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gobeaver/nodefs"
	"github.com/gobeaver/nodefs/adapter/memory"
)

func TestGetConfig(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		cfg, err := nodefs.GetConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Adapter != "memory" {
			t.Errorf("expected adapter memory, got %q", cfg.Adapter)
		}
		if cfg.PathStyle != "posix" {
			t.Errorf("expected path style posix, got %q", cfg.PathStyle)
		}
		if cfg.ReadOnly {
			t.Error("expected read-only off by default")
		}
		if cfg.MemoryMaxSize != 0 {
			t.Errorf("expected unlimited memory size, got %d", cfg.MemoryMaxSize)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("NODEFS_ADAPTER", "memory")
		t.Setenv("NODEFS_READ_ONLY", "true")
		t.Setenv("NODEFS_MEMORY_MAX_SIZE", "1024")

		cfg, err := nodefs.GetConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.ReadOnly {
			t.Error("expected read-only on")
		}
		if cfg.MemoryMaxSize != 1024 {
			t.Errorf("expected max size 1024, got %d", cfg.MemoryMaxSize)
		}
	})

	t.Run("loader default prefix is not applied", func(t *testing.T) {
		t.Setenv("BEAVER_NODEFS_READ_ONLY", "true")

		cfg, err := nodefs.GetConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ReadOnly {
			t.Error("prefixed variable must not be read")
		}
	})
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("creates memory-backed filesystem", func(t *testing.T) {
		fs, err := nodefs.New(&nodefs.Config{Adapter: "memory"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n := mustNode(t, fs, "/f.txt")
		if err := n.Write(ctx, strings.NewReader("data")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("unregistered adapter fails", func(t *testing.T) {
		if _, err := nodefs.New(&nodefs.Config{Adapter: "tape"}); err == nil {
			t.Fatal("expected error for unregistered adapter")
		}
	})

	t.Run("empty adapter fails validation", func(t *testing.T) {
		if _, err := nodefs.New(&nodefs.Config{}); err == nil {
			t.Fatal("expected error for missing adapter name")
		}
	})

	t.Run("negative memory size fails validation", func(t *testing.T) {
		if _, err := nodefs.New(&nodefs.Config{Adapter: "memory", MemoryMaxSize: -1}); err == nil {
			t.Fatal("expected error for negative max size")
		}
	})

	t.Run("unknown path style fails", func(t *testing.T) {
		if _, err := nodefs.New(&nodefs.Config{Adapter: "memory", PathStyle: "vms"}); err == nil {
			t.Fatal("expected error for unknown path style")
		}
	})

	t.Run("read-only flag wraps the adapter", func(t *testing.T) {
		fs, err := nodefs.New(&nodefs.Config{Adapter: "memory", ReadOnly: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n := mustNode(t, fs, "/f.txt")
		if err := n.Write(ctx, strings.NewReader("data")); !errors.Is(err, nodefs.ErrReadOnly) {
			t.Errorf("expected ErrReadOnly, got: %v", err)
		}
	})

	t.Run("max size reaches the memory adapter", func(t *testing.T) {
		fs, err := nodefs.New(&nodefs.Config{Adapter: "memory", MemoryMaxSize: 8})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n := mustNode(t, fs, "/big.bin")
		err = n.Write(ctx, strings.NewReader("far too large for the cap"))
		if !errors.Is(err, nodefs.ErrNoSpace) {
			t.Errorf("expected ErrNoSpace, got: %v", err)
		}
	})
}

func TestRegisterAdapter(t *testing.T) {
	nodefs.RegisterAdapter("custom-test", func(cfg *nodefs.Config) (nodefs.Adapter, error) {
		return memory.New(), nil
	})

	fs, err := nodefs.New(&nodefs.Config{Adapter: "custom-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exists, err := fs.Root().Exists(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected root to exist")
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("NODEFS_ADAPTER", "memory")
	t.Setenv("NODEFS_READ_ONLY", "true")

	fs, err := nodefs.NewFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := mustNode(t, fs, "/f.txt")
	err = n.Write(context.Background(), strings.NewReader("data"))
	if !errors.Is(err, nodefs.ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got: %v", err)
	}
}
