package store

import (
	"fmt"
	"sync"
)

// Factory is a function that creates a Store from a raw driver config map.
// Each driver decodes the map itself (see platform/cfg).
type Factory func(raw map[string]any) (Store, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// NewFromConfig creates a Store for the named driver, passing it the matching
// entry of the [store.drivers.<name>] config section (may be nil).
func NewFromConfig(driver string, driverConfigs map[string]map[string]any) (Store, error) {
	driversMu.RLock()
	factory, ok := drivers[driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store driver: %s (available: %v)", driver, AvailableDrivers())
	}

	return factory(driverConfigs[driver])
}

// AvailableDrivers returns the list of registered driver names.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}
