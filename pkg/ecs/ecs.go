package ecs

import (
	"github.com/melevo/melevo/pkg/assert"
	"github.com/rotisserie/eris"
)

// RegisterComponent registers T with the world and returns its ID. Components are registered
// implicitly by AddComponent and by queries, so this is only needed before type-erased inserts.
func RegisterComponent[T Component](w *World) (ComponentID, error) {
	return registerComponent[T](&w.components)
}

// ComponentIDOf returns T's ID if T is registered with the world.
func ComponentIDOf[T Component](w *World) (ComponentID, bool) {
	return lookupComponent[T](&w.components)
}

// ComponentPool returns T's pool. Returns false if no component of type T has been attached yet.
func ComponentPool[T Component](w *World) (*Pool[T], bool) {
	id, ok := lookupComponent[T](&w.components)
	if !ok {
		return nil, false
	}
	p := w.components.pool(id)
	if p == nil {
		return nil, false
	}
	typed, ok := p.(*Pool[T])
	assert.That(ok, "pool %s has the wrong type", p.Name())
	return typed, true
}

// AddComponent attaches a component to an entity. If the entity already has a component of type
// T, its value is replaced.
func AddComponent[T Component](w *World, e Entity, component T) error {
	if !w.entities.isAlive(e) {
		return eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}

	id, err := registerComponent[T](&w.components)
	if err != nil {
		return err
	}

	p, ok := w.components.poolOrCreate(id, w.capacity).(*Pool[T])
	assert.That(ok, "pool %s has the wrong type", component.Name())

	if err := p.insert(e, component); err != nil {
		return eris.Wrapf(err, "failed to add %s to entity %s", component.Name(), e)
	}
	return nil
}

// GetComponent returns a copy of an entity's component.
// Returns an error if the entity doesn't exist or doesn't contain the component type.
func GetComponent[T Component](w *World, e Entity) (T, error) {
	var zero T
	p, err := entityPool[T](w, e)
	if err != nil {
		return zero, err
	}
	v, ok := p.Value(e)
	if !ok {
		return zero, eris.Wrapf(ErrComponentNotFound, "entity %s has no %s", e, zero.Name())
	}
	return v, nil
}

// UpdateComponent calls fn with exclusive access to an entity's component.
func UpdateComponent[T Component](w *World, e Entity, fn func(*T)) error {
	p, err := entityPool[T](w, e)
	if err != nil {
		return err
	}
	if !p.Update(e, fn) {
		var zero T
		return eris.Wrapf(ErrComponentNotFound, "entity %s has no %s", e, zero.Name())
	}
	return nil
}

// RemoveComponent removes a component from an entity.
// Returns an error if the entity or the component to remove doesn't exist.
func RemoveComponent[T Component](w *World, e Entity) error {
	p, err := entityPool[T](w, e)
	if err != nil {
		return err
	}
	if !p.remove(e) {
		var zero T
		return eris.Wrapf(ErrComponentNotFound, "entity %s has no %s", e, zero.Name())
	}
	return nil
}

// HasComponent checks if an entity has a specific component type.
// Returns false if either the entity doesn't exist or doesn't have the component.
func HasComponent[T Component](w *World, e Entity) bool {
	p, err := entityPool[T](w, e)
	return err == nil && p.Has(e)
}

// entityPool checks that the entity is alive and returns T's pool.
func entityPool[T Component](w *World, e Entity) (*Pool[T], error) {
	if !w.entities.isAlive(e) {
		return nil, eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}
	p, ok := ComponentPool[T](w)
	if !ok {
		var zero T
		return nil, eris.Wrapf(ErrComponentNotFound, "entity %s has no %s", e, zero.Name())
	}
	return p, nil
}
