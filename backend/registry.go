package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gpurender/gpu"
)

// Backend name constants.
const (
	// BackendVulkan is the name of the Vulkan backend.
	BackendVulkan = "vulkan"
	// BackendSoftware is the name of the in-memory reference backend.
	BackendSoftware = "software"
)

// ErrBackendNotAvailable is returned when no registered backend could open
// a device.
var ErrBackendNotAvailable = errors.New("backend: not available")

// Factory opens a device of one backend.
type Factory func() (gpu.Device, error)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first that opens wins).
	backendPriority = []string{BackendVulkan, BackendSoftware}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Open opens a device of the named backend.
func Open(name string) (gpu.Device, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrBackendNotAvailable, name)
	}
	d, err := factory()
	if err != nil {
		return nil, fmt.Errorf("backend: open %q: %w", name, err)
	}
	return d, nil
}

// order returns the selection order: known backends by priority, then the
// rest by name.
func order() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for _, name := range backendPriority {
		if _, ok := backends[name]; ok {
			names = append(names, name)
		}
	}
	rest := make([]string, 0, len(backends))
	for name := range backends {
		if !slices.Contains(backendPriority, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

// Default opens the best available backend. A backend whose factory fails
// is skipped and the next one is tried; the returned error joins every
// failure when none opens.
// Priority order: vulkan > software > others by name.
func Default() (gpu.Device, error) {
	var errs []error
	for _, name := range order() {
		d, err := Open(name)
		if err == nil && d != nil {
			return d, nil
		}
		if err == nil {
			err = fmt.Errorf("backend: %q returned no device", name)
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(append([]error{ErrBackendNotAvailable}, errs...)...)
}

// MustDefault returns the default device or panics.
func MustDefault() gpu.Device {
	d, err := Default()
	if err != nil {
		panic(err)
	}
	return d
}
