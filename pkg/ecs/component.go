package ecs

import (
	"math"
	"reflect"
	"sync"

	"github.com/melevo/melevo/pkg/assert"
	"github.com/rotisserie/eris"
)

// Component is the interface that all components must implement.
// Components are pure data containers that can be attached to entities.
type Component interface { //nolint:iface // We may add more methods in the future.
	// Name returns a unique string identifier for the component type.
	// This should be consistent across program executions.
	Name() string
}

// ComponentID is a dense identifier assigned to a component type when it is first registered in a
// World. IDs index the world's pool table and the bits of an Access.
type ComponentID = uint32

// MaxComponentID is the largest component ID that can be assigned.
const MaxComponentID = math.MaxUint32 - 1

// poolFactory creates an empty pool for the component type it was built for.
type poolFactory func(id ComponentID, name string, capacity int) componentPool

func newPoolFactory[T Component]() poolFactory {
	return func(id ComponentID, name string, capacity int) componentPool {
		return newPool[T](id, name, capacity)
	}
}

// componentManager manages component type registration and lookup. Pools are created lazily the
// first time a component of their type is attached.
type componentManager struct {
	nextID    ComponentID            // The next available component ID
	catalog   map[string]ComponentID // Component name -> component ID
	types     []reflect.Type         // Component ID -> Go type
	names     []string               // Component ID -> component name
	factories []poolFactory          // Component ID -> pool factory
	pools     []componentPool        // Component ID -> pool, nil until first attach
	mu        sync.RWMutex
}

func newComponentManager() componentManager {
	return componentManager{
		nextID:    0,
		catalog:   make(map[string]ComponentID),
		types:     make([]reflect.Type, 0),
		names:     make([]string, 0),
		factories: make([]poolFactory, 0),
		pools:     make([]componentPool, 0),
	}
}

// registerComponent registers T and returns its ID. Registering an already registered type is a
// no-op, registering a different type under a taken name is an error.
func registerComponent[T Component](cm *componentManager) (ComponentID, error) {
	var zero T
	name := zero.Name()
	typ := reflect.TypeFor[T]()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if name == "" {
		return 0, eris.Errorf("component name of %s cannot be empty", typ)
	}

	if id, exists := cm.catalog[name]; exists {
		if cm.types[id] != typ {
			return 0, eris.Wrapf(ErrComponentNameConflict, "%q is registered by %s, not %s", name, cm.types[id], typ)
		}
		return id, nil
	}

	if cm.nextID > MaxComponentID {
		return 0, eris.Errorf("max number of component types (%d) exceeded", uint64(MaxComponentID)+1)
	}

	id := cm.nextID
	cm.catalog[name] = id
	cm.types = append(cm.types, typ)
	cm.names = append(cm.names, name)
	cm.factories = append(cm.factories, newPoolFactory[T]())
	cm.pools = append(cm.pools, nil)
	cm.nextID++
	assert.That(int(cm.nextID) == len(cm.factories), "component id doesn't match number of components")

	return id, nil
}

// lookupComponent returns T's ID if T has been registered.
func lookupComponent[T Component](cm *componentManager) (ComponentID, bool) {
	var zero T

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	id, exists := cm.catalog[zero.Name()]
	if !exists || cm.types[id] != reflect.TypeFor[T]() {
		return 0, false
	}
	return id, true
}

// idOf returns the ID registered under c's name, checking that c has the registered type.
func (cm *componentManager) idOf(c Component) (ComponentID, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	id, exists := cm.catalog[c.Name()]
	if !exists {
		return 0, eris.Wrapf(ErrComponentNotRegistered, "component %s", c.Name())
	}
	if typ := reflect.TypeOf(c); cm.types[id] != typ {
		return 0, eris.Wrapf(ErrComponentTypeMismatch, "%q is registered by %s, got %s", c.Name(), cm.types[id], typ)
	}
	return id, nil
}

// getID returns a component's ID given a name.
func (cm *componentManager) getID(name string) (ComponentID, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	id, exists := cm.catalog[name]
	if !exists {
		return 0, eris.Wrapf(ErrComponentNotRegistered, "component %s", name)
	}
	return id, nil
}

func (cm *componentManager) name(id ComponentID) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if int(id) >= len(cm.names) {
		return ""
	}
	return cm.names[id]
}

// pool returns the pool for a component ID, or nil if none has been created.
func (cm *componentManager) pool(id ComponentID) componentPool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if int(id) >= len(cm.pools) {
		return nil
	}
	return cm.pools[id]
}

// poolOrCreate returns the pool for a registered component ID, creating it on first use.
func (cm *componentManager) poolOrCreate(id ComponentID, capacity int) componentPool {
	if p := cm.pool(id); p != nil {
		return p
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	assert.That(int(id) < len(cm.factories), "component %d is not registered", id)
	if cm.pools[id] == nil {
		cm.pools[id] = cm.factories[id](id, cm.names[id], capacity)
	}
	return cm.pools[id]
}

// resolve returns the pools for the given IDs in order. Returns false if any of them has not been
// created yet.
func (cm *componentManager) resolve(ids []ComponentID) ([]componentPool, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	pools := make([]componentPool, len(ids))
	for i, id := range ids {
		if int(id) >= len(cm.pools) || cm.pools[id] == nil {
			return nil, false
		}
		pools[i] = cm.pools[id]
	}
	return pools, true
}

// allPools returns every created pool ordered by component ID.
func (cm *componentManager) allPools() []componentPool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	pools := make([]componentPool, 0, len(cm.pools))
	for _, p := range cm.pools {
		if p != nil {
			pools = append(pools, p)
		}
	}
	return pools
}

// registered returns the names of all registered components ordered by ID.
func (cm *componentManager) registered() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	names := make([]string, len(cm.names))
	copy(names, cm.names)
	return names
}
