package nodefs

// Option configures a structural node operation.
type Option func(*Options)

// Options collects the flags accepted by structural operations. The zero
// value is the default for every operation: fail on a missing parent, fail
// on a non-empty directory, fail on an existing destination.
type Options struct {
	// Parents creates missing ancestor directories transparently.
	Parents bool

	// Recursive deletes directory contents along with the directory.
	Recursive bool

	// Force overrides permission-style refusals where the backend allows.
	Force bool

	// Overwrite replaces an existing destination on copy and move.
	Overwrite bool
}

// WithParents controls transparent creation of missing ancestor
// directories. The default is to fail when the parent is absent.
func WithParents(parents bool) Option {
	return func(o *Options) {
		o.Parents = parents
	}
}

// WithRecursive controls recursive deletion. A non-recursive delete of a
// non-empty directory is an error, never a silent partial delete.
func WithRecursive(recursive bool) Option {
	return func(o *Options) {
		o.Recursive = recursive
	}
}

// WithForce controls whether permission-style refusals are overridden.
func WithForce(force bool) Option {
	return func(o *Options) {
		o.Force = force
	}
}

// WithOverwrite controls whether copy and move replace an existing
// destination.
func WithOverwrite(overwrite bool) Option {
	return func(o *Options) {
		o.Overwrite = overwrite
	}
}

func processOptions(options ...Option) *Options {
	opts := &Options{}
	for _, option := range options {
		option(opts)
	}
	return opts
}
