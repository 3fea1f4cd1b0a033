package registry

import (
	"sync"

	"github.com/papapumpkin/manifest/pkg/manifest"
)

var (
	globalRegistry *Registry
	globalOnce     sync.Once
)

// Global returns the process-wide registry, creating an empty one on first
// use.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = New()
	})
	return globalRegistry
}

// InitGlobal installs r as the process-wide registry. Only the first call
// to InitGlobal or Global has any effect.
func InitGlobal(r *Registry) {
	globalOnce.Do(func() {
		globalRegistry = r
	})
}

// ResetGlobal clears the process-wide registry. It is not safe for
// concurrent use and exists for tests.
func ResetGlobal() {
	globalOnce = sync.Once{}
	globalRegistry = nil
}

// Register adds m to the process-wide registry.
func Register(m *manifest.Manifest, opts ...RegisterOption) error {
	return Global().Register(m, opts...)
}

// Lookup finds loc in the process-wide registry.
func Lookup(loc manifest.Location) (*manifest.Manifest, error) {
	return Global().Lookup(loc)
}

// All lists the process-wide registry.
func All() []*manifest.Manifest {
	return Global().All()
}
