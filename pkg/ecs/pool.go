package ecs

import (
	"iter"
	"slices"
	"sync/atomic"

	"github.com/melevo/melevo/pkg/sparse"
	"github.com/rotisserie/eris"
)

// AnyPool is the type-erased view of a component pool, used where the component type is only
// known at runtime (search, logging, command buffers).
type AnyPool interface {
	// ID returns the ID of the pool's component type.
	ID() ComponentID
	// Name returns the name of the pool's component type.
	Name() string
	// Len returns the number of entities in the pool.
	Len() int
	// Cap returns the largest entity ID the pool can hold, plus one.
	Cap() int
	// Entities returns a copy of the pool's entities in storage order.
	Entities() []Entity
	// Has reports whether the entity has a component in this pool.
	Has(e Entity) bool
	// Get returns a copy of the entity's component taken under a shared borrow.
	Get(e Entity) (Component, bool)
	// Add inserts or replaces the entity's component. The concrete type of c must match the
	// pool's component type.
	Add(e Entity, c Component) error
	// RangeMut calls fn with a pointer to every component in storage order while holding that
	// component's exclusive borrow. Iteration stops when fn returns false.
	RangeMut(fn func(e Entity, ptr any) bool)
}

// componentPool is the pool capability the world and queries use internally.
type componentPool interface {
	AnyPool
	remove(e Entity) bool
	generation() uint64
	keys() []Entity
}

var _ componentPool = (*Pool[Component])(nil)

// Pool stores every component of type T in a World, keyed by entity. Values live in heap cells
// that carry a borrow counter, so conflicting access to the same component panics instead of
// racing.
type Pool[T Component] struct {
	id   ComponentID
	name string
	set  *sparse.Set[Entity, *cell[T]]
	// gen changes whenever an entity is added to or removed from the pool.
	gen atomic.Uint64
}

func newPool[T Component](id ComponentID, name string, capacity int) *Pool[T] {
	return &Pool[T]{
		id:   id,
		name: name,
		set:  sparse.NewKeyed[Entity, *cell[T]](capacity),
	}
}

func (p *Pool[T]) ID() ComponentID { return p.id }

func (p *Pool[T]) Name() string { return p.name }

func (p *Pool[T]) Len() int { return p.set.Len() }

func (p *Pool[T]) Cap() int { return p.set.Cap() }

func (p *Pool[T]) Entities() []Entity { return slices.Clone(p.set.Keys()) }

func (p *Pool[T]) Has(e Entity) bool {
	ok, err := p.set.Contains(e)
	return err == nil && ok
}

func (p *Pool[T]) Get(e Entity) (Component, bool) {
	v, ok := p.Value(e)
	if !ok {
		return nil, false
	}
	return v, true
}

func (p *Pool[T]) Add(e Entity, c Component) error {
	v, ok := c.(T)
	if !ok {
		var zero T
		return eris.Wrapf(ErrComponentTypeMismatch, "pool %s stores %T, got %T", p.name, zero, c)
	}
	return p.insert(e, v)
}

// Value returns a copy of the entity's component.
func (p *Pool[T]) Value(e Entity) (T, bool) {
	c, ok := p.cell(e)
	if !ok {
		var zero T
		return zero, false
	}
	return p.read(e, c), true
}

// Update calls fn with exclusive access to the entity's component. Returns false if the entity
// doesn't have one.
func (p *Pool[T]) Update(e Entity, fn func(*T)) bool {
	c, ok := p.cell(e)
	if !ok {
		return false
	}
	if !c.tryExclusive() {
		panic(aliasingViolation(p.name, e, AccessWrite))
	}
	defer c.releaseExclusive()
	fn(&c.value)
	return true
}

// All iterates over copies of the pool's components in storage order. Adding or removing entities
// from the pool during iteration panics.
func (p *Pool[T]) All() iter.Seq2[Entity, T] {
	return func(yield func(Entity, T) bool) {
		gen := p.gen.Load()
		keys, cells := p.set.Keys(), p.set.Values()
		for i := 0; i < len(keys); i++ {
			p.checkGeneration(gen)
			if !yield(keys[i], p.read(keys[i], cells[i])) {
				return
			}
		}
	}
}

// RangeMut calls fn with a *T for each component until fn returns false.
func (p *Pool[T]) RangeMut(fn func(e Entity, ptr any) bool) {
	gen := p.gen.Load()
	keys, cells := p.set.Keys(), p.set.Values()
	for i := 0; i < len(keys); i++ {
		p.checkGeneration(gen)
		if !p.visitMut(keys[i], cells[i], fn) {
			return
		}
	}
}

func (p *Pool[T]) read(e Entity, c *cell[T]) T {
	if !c.tryShared() {
		panic(aliasingViolation(p.name, e, AccessRead))
	}
	defer c.releaseShared()
	return c.value
}

func (p *Pool[T]) visitMut(e Entity, c *cell[T], fn func(Entity, any) bool) bool {
	if !c.tryExclusive() {
		panic(aliasingViolation(p.name, e, AccessWrite))
	}
	defer c.releaseExclusive()
	return fn(e, &c.value)
}

func (p *Pool[T]) checkGeneration(gen uint64) {
	if p.gen.Load() != gen {
		panic(eris.Wrapf(ErrPoolMutated, "pool %s", p.name))
	}
}

// insert adds the component or replaces the existing value. Replacing takes the exclusive borrow
// and doesn't count as a structural change.
func (p *Pool[T]) insert(e Entity, v T) error {
	c, ok, err := p.set.Get(e)
	if err != nil {
		return err
	}
	if ok {
		if !c.tryExclusive() {
			panic(aliasingViolation(p.name, e, AccessWrite))
		}
		c.value = v
		c.releaseExclusive()
		return nil
	}

	if _, _, err := p.set.Insert(e, newCell(v)); err != nil {
		return err
	}
	p.gen.Add(1)
	return nil
}

func (p *Pool[T]) remove(e Entity) bool {
	c, ok := p.cell(e)
	if !ok {
		return false
	}
	if !c.tryExclusive() {
		panic(aliasingViolation(p.name, e, AccessWrite))
	}
	defer c.releaseExclusive()

	_, removed, err := p.set.Remove(e)
	if err != nil || !removed {
		return false
	}
	p.gen.Add(1)
	return true
}

func (p *Pool[T]) cell(e Entity) (*cell[T], bool) {
	c, ok, err := p.set.Get(e)
	if err != nil || !ok {
		return nil, false
	}
	return c, true
}

func (p *Pool[T]) generation() uint64 { return p.gen.Load() }

// keys returns the pool's entities without copying. The slice is only valid until the next
// structural change.
func (p *Pool[T]) keys() []Entity { return p.set.Keys() }
