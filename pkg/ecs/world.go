// Package ecs implements the entity-component storage engine: entities, per-type component pools
// with borrow tracking, typed queries with read/write access sets, and a scheduler that runs
// non-conflicting systems concurrently.
package ecs

import (
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// World owns the entities and component pools of one simulation.
type World struct {
	entities   entityManager
	components componentManager

	capacity       int // Capacity of every pool created by this world
	sequential     bool
	maxConcurrency int
	logger         zerolog.Logger
}

// WorldOption configures a World.
type WorldOption func(*World)

// WithPoolCapacity sets the capacity of the world's component pools. Entities with an ID at or
// above the capacity can't hold components. Non-positive values are ignored.
func WithPoolCapacity(capacity int) WorldOption {
	return func(w *World) {
		if capacity > 0 {
			w.capacity = capacity
		}
	}
}

// WithLogger sets the logger used by the world and the schedulers built on it.
func WithLogger(logger zerolog.Logger) WorldOption {
	return func(w *World) {
		w.logger = logger
	}
}

// WithConfig applies a loaded Config.
func WithConfig(cfg Config) WorldOption {
	return func(w *World) {
		WithPoolCapacity(cfg.PoolCapacity)(w)
		w.sequential = cfg.Sequential
		w.maxConcurrency = cfg.MaxConcurrency
	}
}

// NewWorld creates an empty world.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		entities:   newEntityManager(),
		components: newComponentManager(),
		capacity:   DefaultPoolCapacity,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Logger returns the world's logger.
func (w *World) Logger() *zerolog.Logger {
	return &w.logger
}

// Capacity returns the capacity of the world's component pools.
func (w *World) Capacity() int {
	return w.capacity
}

// CreateEntity creates an entity without any components.
func (w *World) CreateEntity() Entity {
	return w.entities.new()
}

// DestroyEntity removes the entity and all of its components. The entity's handle and every copy
// of it become invalid.
func (w *World) DestroyEntity(e Entity) error {
	if !w.entities.isAlive(e) {
		return eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}
	for _, p := range w.components.allPools() {
		p.remove(e)
	}
	return w.entities.remove(e)
}

// Alive reports whether the entity handle is still valid.
func (w *World) Alive(e Entity) bool {
	return w.entities.isAlive(e)
}

// Entities returns the live entities ordered by ID.
func (w *World) Entities() []Entity {
	return w.entities.all()
}

// EntityCount returns the number of live entities.
func (w *World) EntityCount() int {
	return w.entities.len()
}

// AddComponents inserts components whose types are only known at runtime. Each component's type
// must already be registered, and must be the type registered under its name. Nothing is inserted
// if any component fails that check.
func (w *World) AddComponents(e Entity, components ...Component) error {
	if !w.entities.isAlive(e) {
		return eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}
	ids := make([]ComponentID, len(components))
	for i, c := range components {
		id, err := w.components.idOf(c)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	for i, c := range components {
		p := w.components.poolOrCreate(ids[i], w.capacity)
		if err := p.Add(e, c); err != nil {
			return eris.Wrapf(err, "failed to add %s to entity %s", c.Name(), e)
		}
	}
	return nil
}

// RemoveComponents removes components by name. Components the entity doesn't have are skipped.
func (w *World) RemoveComponents(e Entity, components ...Component) error {
	if !w.entities.isAlive(e) {
		return eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}
	for _, c := range components {
		id, err := w.components.getID(c.Name())
		if err != nil {
			return err
		}
		if p := w.components.pool(id); p != nil {
			p.remove(e)
		}
	}
	return nil
}

// Pool returns the type-erased pool of a component ID. Returns false if no component of that type
// has been attached yet.
func (w *World) Pool(id ComponentID) (AnyPool, bool) {
	p := w.components.pool(id)
	if p == nil {
		return nil, false
	}
	return p, true
}

// PoolByName returns the type-erased pool of a component name.
func (w *World) PoolByName(name string) (AnyPool, bool) {
	id, err := w.components.getID(name)
	if err != nil {
		return nil, false
	}
	return w.Pool(id)
}

// ComponentName returns the name registered for a component ID, or "" if the ID is unknown.
func (w *World) ComponentName(id ComponentID) string {
	return w.components.name(id)
}

// ComponentNames returns the names of the registered components ordered by ID.
func (w *World) ComponentNames() []string {
	return w.components.registered()
}
