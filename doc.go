// Package nodefs provides a backend-agnostic abstraction for file and
// directory entities ("nodes") backed by heterogeneous storage providers,
// presenting one consistent API for metadata access, content I/O, and
// hierarchical listing.
//
// The package is built from four cooperating parts:
//
//   - [Pathname]: the canonical representation of a hierarchical path.
//     Raw path strings from different backend conventions (drive letters,
//     URL schemes, mixed separators, "." and ".." segments) normalize into
//     one comparable form; two spellings of the same location are
//     interchangeable everywhere a Pathname is used as a key.
//   - [Filter] / [Evaluator]: listing filter specifications (type masks,
//     visibility masks, glob patterns, predicates, recursion) compiled into
//     a single traversal decision.
//   - [Node]: the live handle on a file, directory or link. Nodes cache
//     nothing; every query is a fresh backend call, because backends mutate
//     out-of-band.
//   - [Adapter]: the capability set a concrete backend implements. Optional
//     capabilities (ownership, POSIX mode, timestamps, native copy/move,
//     native checksums) are separate interfaces discovered by type
//     assertion, so a backend advertises what it supports instead of
//     faking what it does not.
//
// # Basic Usage
//
//	import (
//	    "github.com/gobeaver/nodefs"
//	    "github.com/gobeaver/nodefs/adapter/memory"
//	)
//
//	fsys, err := nodefs.NewFilesystem(memory.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//
//	n, _ := fsys.Node("/docs/readme.md")
//	err = n.Write(ctx, strings.NewReader("# hello"), nodefs.WithParents(true))
//
//	data, err := n.ReadAll(ctx)
//	sum, err := n.MD5(ctx)
//
// # Filtered Listing
//
//	dir, _ := fsys.Node("/docs")
//	nodes, err := dir.Ls(ctx,
//	    nodefs.ByType(nodefs.TypeFile),
//	    nodefs.ByGlob("*.md"),
//	    nodefs.Recursive(true),
//	)
//
// Filters of the same declarative category OR together and distinct
// categories AND together; see [Compile] for the exact rules.
//
// # Composition
//
// [MountAdapter] merges several backends under one tree with
// longest-prefix routing, and [ReadOnlyAdapter] wraps any backend in a
// read-only view. Both are Adapters themselves and compose freely.
//
// # Errors
//
// Every operation fails with a specific taxonomy member ([ErrNotExist],
// [ErrNotEmpty], [ErrNotSupported], [ErrCyclic], ...) wrapped in a
// [PathError], so callers can branch on cause with [errors.Is] or the
// package's Is* helpers.
package nodefs
