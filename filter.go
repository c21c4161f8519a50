package nodefs

import (
	"context"
	"fmt"

	"github.com/gobwas/glob"
)

// Visibility classifies a node by its hidden-entry marker. The values are
// single bits so that they can be combined into a mask.
type Visibility uint8

const (
	// Visible nodes do not carry the hidden marker.
	Visible Visibility = 1 << iota
	// Hidden nodes carry the conventions' hidden marker (a leading "."
	// under POSIX conventions).
	Hidden
)

// ============================================================================
// Filter Specifications
// ============================================================================

// Filter is one specification in a listing filter list. Filters of the same
// declarative category (type masks, visibility masks, glob patterns) OR
// together; distinct categories AND together; predicates each AND as an
// independent required condition. See [Compile].
type Filter interface {
	applyTo(e *Evaluator) error
}

type typeFilter NodeType

func (f typeFilter) applyTo(e *Evaluator) error {
	e.typeMask |= NodeType(f)
	return nil
}

// ByType selects nodes whose type is in the given mask. Multiple ByType
// filters select the union of their masks.
//
//	ByType(TypeFile | TypeDir)
func ByType(mask NodeType) Filter {
	return typeFilter(mask)
}

type visibilityFilter Visibility

func (f visibilityFilter) applyTo(e *Evaluator) error {
	e.visMask |= Visibility(f)
	return nil
}

// ByVisibility selects nodes whose visibility is in the given mask.
// Visibility is keyed off whether the basename starts with the path
// conventions' hidden marker.
func ByVisibility(mask Visibility) Filter {
	return visibilityFilter(mask)
}

type globFilter string

func (f globFilter) applyTo(e *Evaluator) error {
	g, err := glob.Compile(string(f), '/')
	if err != nil {
		return fmt.Errorf("%w: bad glob pattern %q: %v", ErrInvalidPath, string(f), err)
	}
	e.globs = append(e.globs, g)
	return nil
}

// ByGlob selects nodes whose basename matches the shell-glob pattern.
// Supports: *, ?, [abc], [a-z]. Matching is case-sensitive and applies to
// the basename only, never the full path. Multiple ByGlob filters select
// the union of their patterns.
func ByGlob(pattern string) Filter {
	return globFilter(pattern)
}

type predicateFilter func(*Node) bool

func (f predicateFilter) applyTo(e *Evaluator) error {
	e.predicates = append(e.predicates, f)
	return nil
}

// ByPredicate selects nodes satisfying an arbitrary test. Unlike the
// declarative filters, every predicate is an independent required
// condition: multiple predicates AND together.
func ByPredicate(fn func(*Node) bool) Filter {
	return predicateFilter(fn)
}

type recursiveFilter bool

func (f recursiveFilter) applyTo(e *Evaluator) error {
	e.recursive = bool(f)
	return nil
}

// Recursive toggles descent into subdirectories during listing. It is not
// an acceptance criterion; without it only immediate children are visited.
func Recursive(enabled bool) Filter {
	return recursiveFilter(enabled)
}

// ============================================================================
// Evaluator
// ============================================================================

// Evaluator is a compiled filter list, applied during traversal. Acceptance
// (inclusion in results) and recursion (descent into subdirectories) are
// independent decisions: a type mask that excludes directories still lets
// the traversal descend into them.
type Evaluator struct {
	typeMask   NodeType
	visMask    Visibility
	globs      []glob.Glob
	predicates []func(*Node) bool
	recursive  bool
}

// Compile folds an ordered filter list into a single Evaluator.
//
// Composition rules: all filters combine with logical AND, except multiple
// filters of the same declarative category, which OR together. Two ByType
// filters select the union of both masks, but a ByType and a ByGlob must
// both match. Predicates do not OR with each other; each is a distinct
// required condition. An empty filter list accepts everything and does not
// recurse.
func Compile(filters ...Filter) (*Evaluator, error) {
	e := &Evaluator{}
	for _, f := range filters {
		if f == nil {
			continue
		}
		if err := f.applyTo(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Accepts reports whether the node passes every filter stage. The node's
// type is queried live from its adapter when a type mask is present.
func (e *Evaluator) Accepts(ctx context.Context, n *Node) (bool, error) {
	if e.typeMask != 0 {
		t, err := n.Type(ctx)
		if err != nil {
			return false, err
		}
		return e.acceptsTyped(n, t), nil
	}
	return e.acceptsTyped(n, 0), nil
}

// acceptsTyped applies the filter stages given an already-known node type.
// The traversal uses directory enumeration type hints here to avoid a stat
// per entry.
func (e *Evaluator) acceptsTyped(n *Node, t NodeType) bool {
	if e.typeMask != 0 && e.typeMask&t == 0 {
		return false
	}

	if e.visMask != 0 {
		v := Visible
		if n.Path().Hidden() {
			v = Hidden
		}
		if e.visMask&v == 0 {
			return false
		}
	}

	if len(e.globs) > 0 {
		name := n.Path().Basename("")
		matched := false
		for _, g := range e.globs {
			if g.Match(name) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pred := range e.predicates {
		if !pred(n) {
			return false
		}
	}

	return true
}

// RecursesInto reports whether the traversal descends into the given
// directory node. Only the Recursive filter influences this; type and glob
// filtering control inclusion in output, not traversal reachability.
func (e *Evaluator) RecursesInto(n *Node) bool {
	return e.recursive
}
