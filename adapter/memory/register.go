package memory

import (
	"github.com/gobeaver/nodefs"
)

func init() {
	nodefs.RegisterAdapter("memory", func(cfg *nodefs.Config) (nodefs.Adapter, error) {
		return New(Config{MaxSize: cfg.MemoryMaxSize}), nil
	})
}
