package nodefs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gobeaver/beaver-kit/config"
)

// AdapterFactory is a function that creates an Adapter from a config
type AdapterFactory func(cfg *Config) (Adapter, error)

var (
	adapterFactories = make(map[string]AdapterFactory)
	factoryMutex     sync.RWMutex
)

// RegisterAdapter registers an adapter factory function. Adapter packages
// register themselves in init, so importing a package for side effect makes
// its name available:
//
//	import _ "github.com/gobeaver/nodefs/adapter/memory"
func RegisterAdapter(name string, factory AdapterFactory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	adapterFactories[name] = factory
}

// CreateAdapter creates an adapter instance from config
func CreateAdapter(cfg *Config) (Adapter, error) {
	factoryMutex.RLock()
	factory, exists := adapterFactories[cfg.Adapter]
	factoryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("adapter %s not registered", cfg.Adapter)
	}

	return factory(cfg)
}

// Builder provides a way to create Filesystem instances with a custom
// environment variable prefix
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// New creates a new Filesystem instance using the builder's prefix
func (b *Builder) New() (*Filesystem, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return nil, err
	}
	return New(cfg)
}

// New creates a Filesystem from config: validate, create the adapter,
// apply the read-only decorator if requested, pick path conventions.
func New(cfg *Config) (*Filesystem, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	adapter, err := CreateAdapter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}

	if cfg.ReadOnly {
		adapter = NewReadOnlyAdapter(adapter)
	}

	conv, err := conventionsFor(cfg.PathStyle)
	if err != nil {
		return nil, err
	}

	return NewFilesystem(adapter, WithConventions(conv))
}

// NewFromEnv creates a Filesystem from environment variables
func NewFromEnv() (*Filesystem, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// validateConfig checks configuration validity
func validateConfig(cfg *Config) error {
	if cfg.Adapter == "" {
		return errors.New("adapter is required")
	}
	if cfg.MemoryMaxSize < 0 {
		return errors.New("memory max size cannot be negative")
	}
	return nil
}

func conventionsFor(style string) (Conventions, error) {
	switch style {
	case "", "posix":
		return Posix, nil
	case "windows":
		return Windows, nil
	case "url":
		return URL, nil
	default:
		return Conventions{}, fmt.Errorf("unknown path style: %s", style)
	}
}
