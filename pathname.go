package nodefs

import (
	"fmt"
	"strings"
)

// Conventions describes how a backend spells its paths: which runes separate
// segments, how the root of the hierarchy is marked, and how hidden entries
// are recognized.
//
// Raw path strings are only ever interpreted through a Conventions value;
// once normalized into a [Pathname] the spelling differences are gone and
// every comparison happens on the canonical form.
type Conventions struct {
	// Separators is the set of runes treated as segment separators.
	Separators string

	// HiddenPrefix marks hidden entries (e.g. "." on POSIX systems).
	HiddenPrefix string

	// DriveLetters enables recognition of a leading drive root like "C:".
	DriveLetters bool

	// URLSchemes enables recognition of a leading "scheme://authority" root.
	URLSchemes bool
}

// Predefined conventions for common backend families.
var (
	// Posix paths: "/" separated, dot-prefixed hidden entries.
	Posix = Conventions{Separators: "/", HiddenPrefix: "."}

	// Windows paths: both separators accepted, drive letter roots.
	Windows = Conventions{Separators: `\/`, HiddenPrefix: ".", DriveLetters: true}

	// URL paths: "scheme://authority" roots, as used by remote protocol
	// backends (ftp://host/dir, s3://bucket/key).
	URL = Conventions{Separators: "/", HiddenPrefix: ".", URLSchemes: true}
)

func (c Conventions) isSeparator(r rune) bool {
	return strings.ContainsRune(c.Separators, r)
}

// Pathname is the canonical, immutable representation of a hierarchical
// path: a root marker, an ordered sequence of segments, and a cached
// canonical string. Two Pathnames denote the same location iff their
// canonical strings are equal, regardless of how the raw input was spelled.
//
// The zero Pathname is invalid; obtain values through [Normalize] or the
// derivation methods.
type Pathname struct {
	root      string // "", "/", "C:", or "scheme://authority"
	segments  []string
	canonical string
	conv      Conventions
}

// Normalize parses a raw path string under the given backend conventions
// and returns its canonical Pathname.
//
// Normalization discards empty and "." segments, collapses ".." against the
// preceding real segment, and reassembles with "/" as the single canonical
// separator. A ".." that would ascend above the declared root fails with
// [ErrInvalidPath]; it is never silently clamped.
func Normalize(raw string, conv Conventions) (Pathname, error) {
	if conv.Separators == "" {
		conv.Separators = "/"
	}
	if conv.HiddenPrefix == "" {
		conv.HiddenPrefix = "."
	}
	if raw == "" {
		return Pathname{}, &PathError{Op: "normalize", Path: raw, Err: fmt.Errorf("%w: empty path", ErrInvalidPath)}
	}

	root, rest := splitRoot(raw, conv)

	segments := make([]string, 0, 8)
	for _, seg := range strings.FieldsFunc(rest, conv.isSeparator) {
		switch seg {
		case ".":
			// discarded
		case "..":
			if len(segments) == 0 {
				return Pathname{}, &PathError{
					Op:   "normalize",
					Path: raw,
					Err:  fmt.Errorf("%w: path ascends above root", ErrInvalidPath),
				}
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	return makePathname(root, segments, conv), nil
}

// splitRoot extracts the root marker from a raw path, returning the marker
// and the remainder to be segmented.
func splitRoot(raw string, conv Conventions) (root, rest string) {
	if conv.URLSchemes {
		if idx := strings.Index(raw, "://"); idx > 0 && isScheme(raw[:idx]) {
			after := raw[idx+3:]
			sep := strings.IndexFunc(after, conv.isSeparator)
			if sep < 0 {
				return raw, ""
			}
			return raw[:idx+3] + after[:sep], after[sep:]
		}
	}
	if conv.DriveLetters && len(raw) >= 2 && raw[1] == ':' && isDriveLetter(raw[0]) {
		return strings.ToUpper(raw[:1]) + ":", raw[2:]
	}
	if r := []rune(raw); len(r) > 0 && conv.isSeparator(r[0]) {
		return "/", raw
	}
	return "", raw
}

func isScheme(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return s != ""
}

func isDriveLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// makePathname assembles the canonical form. Must only be called with
// already-normalized segments.
func makePathname(root string, segments []string, conv Conventions) Pathname {
	var prefix string
	switch root {
	case "":
		prefix = ""
	case "/":
		prefix = "/"
	default:
		prefix = root + "/"
	}

	canonical := prefix + strings.Join(segments, "/")
	switch {
	case canonical == "":
		canonical = "."
	case len(segments) == 0 && root != "" && root != "/":
		// A rooted path with no segments is the bare root marker, so
		// "s3://bucket/" and "s3://bucket" share one canonical form.
		canonical = root
	}

	return Pathname{
		root:      root,
		segments:  segments,
		canonical: canonical,
		conv:      conv,
	}
}

// String returns the canonical string form.
func (p Pathname) String() string {
	return p.canonical
}

// IsZero reports whether p is the invalid zero value.
func (p Pathname) IsZero() bool {
	return p.canonical == ""
}

// IsAbs reports whether p carries a root marker.
func (p Pathname) IsAbs() bool {
	return p.root != ""
}

// IsRoot reports whether p is the root of its hierarchy.
func (p Pathname) IsRoot() bool {
	return p.root != "" && len(p.segments) == 0
}

// Root returns the root marker ("/", "C:", "scheme://authority"), or the
// empty string for relative pathnames.
func (p Pathname) Root() string {
	return p.root
}

// Segments returns a copy of the ordered path segments.
func (p Pathname) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Depth returns the number of segments below the root.
func (p Pathname) Depth() int {
	return len(p.segments)
}

// Basename returns the final segment. A non-empty suffix is stripped only
// when it is an exact trailing match and does not consume the whole name.
// The root pathname has no basename and returns "".
func (p Pathname) Basename(suffix string) string {
	if len(p.segments) == 0 {
		return ""
	}
	name := p.segments[len(p.segments)-1]
	if suffix != "" && name != suffix && strings.HasSuffix(name, suffix) {
		return name[:len(name)-len(suffix)]
	}
	return name
}

// Hidden reports whether the basename carries the conventions' hidden
// entry marker.
func (p Pathname) Hidden() bool {
	prefix := p.conv.HiddenPrefix
	if prefix == "" {
		prefix = "."
	}
	name := p.Basename("")
	return name != "" && strings.HasPrefix(name, prefix)
}

// Parent returns the pathname one level up. The second result is false for
// the root (or an empty relative pathname), which has no parent.
func (p Pathname) Parent() (Pathname, bool) {
	if len(p.segments) == 0 {
		return Pathname{}, false
	}
	return makePathname(p.root, p.segments[:len(p.segments)-1], p.conv), true
}

// Join resolves a relative path string against p under p's conventions.
// The relative part may itself contain "." and ".." segments; ascending
// above p's root fails with [ErrInvalidPath].
func (p Pathname) Join(rel string) (Pathname, error) {
	segments := make([]string, len(p.segments), len(p.segments)+8)
	copy(segments, p.segments)

	for _, seg := range strings.FieldsFunc(rel, p.conv.isSeparator) {
		switch seg {
		case ".":
		case "..":
			if len(segments) == 0 {
				return Pathname{}, &PathError{
					Op:   "join",
					Path: p.canonical + "+" + rel,
					Err:  fmt.Errorf("%w: path ascends above root", ErrInvalidPath),
				}
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	return makePathname(p.root, segments, p.conv), nil
}

// Child appends a single literal segment. The name must not contain
// separators or be a navigation segment.
func (p Pathname) Child(name string) (Pathname, error) {
	if name == "" || name == "." || name == ".." || strings.IndexFunc(name, p.conv.isSeparator) >= 0 {
		return Pathname{}, &PathError{
			Op:   "child",
			Path: p.canonical,
			Err:  fmt.Errorf("%w: invalid child name %q", ErrInvalidPath, name),
		}
	}
	return makePathname(p.root, append(p.Segments(), name), p.conv), nil
}

// Equal reports whether two pathnames denote the same canonical location.
func (p Pathname) Equal(q Pathname) bool {
	return p.canonical == q.canonical
}
