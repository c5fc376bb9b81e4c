package core

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// registry holds the modules compiled into the binary, keyed by ID.
type registry struct {
	mu   sync.RWMutex
	byID map[ModuleID]ModuleInfo
}

func newRegistry() *registry {
	return &registry{byID: make(map[ModuleID]ModuleInfo)}
}

var modules = newRegistry()

func (r *registry) add(info ModuleInfo) error {
	if err := info.ID.Validate(); err != nil {
		return err
	}
	if info.New == nil {
		return fmt.Errorf("module %s: New must not be nil", info.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[info.ID]; dup {
		return fmt.Errorf("module %s registered twice", info.ID)
	}
	r.byID[info.ID] = info
	return nil
}

func (r *registry) get(id ModuleID) (ModuleInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byID[id]
	return info, ok
}

func (r *registry) sorted() []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(r.byID))
	out := make([]ModuleInfo, len(ids))
	for i, id := range ids {
		out[i] = r.byID[id]
	}
	return out
}

// RegisterModule adds a module to the registry. It is meant to be called
// from the module package's init() and panics on an invalid or duplicate ID,
// which is a build mistake rather than a runtime condition.
func RegisterModule(instance Module) {
	if err := modules.add(instance.ModuleInfo()); err != nil {
		panic("core: " + err.Error())
	}
}

// GetModule returns the registered module with the given ID.
func GetModule(id string) (ModuleInfo, bool) {
	return modules.get(ModuleID(id))
}

// GetModules returns every registered module sorted by ID.
func GetModules() []ModuleInfo {
	return modules.sorted()
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	modules = newRegistry()
}
