package nodefs

import (
	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Adapter to back the filesystem with (memory, or any registered name)
	Adapter string `env:"NODEFS_ADAPTER,default:memory"`

	// Path conventions (posix, windows, url)
	PathStyle string `env:"NODEFS_PATH_STYLE,default:posix"`

	// Wrap the adapter so every write operation fails
	ReadOnly bool `env:"NODEFS_READ_ONLY,default:false"`

	// Memory adapter configuration
	MemoryMaxSize int64 `env:"NODEFS_MEMORY_MAX_SIZE,default:0"` // bytes, 0 = unlimited
}

// GetConfig returns config loaded from environment. The empty prefix keeps
// the loader reading the variable names spelled in the struct tags.
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: ""}); err != nil {
		return nil, err
	}
	return cfg, nil
}
