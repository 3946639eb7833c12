package ecs

import (
	"iter"
	"reflect"

	"github.com/melevo/melevo/pkg/assert"
	"github.com/rotisserie/eris"
)

// Query iterates over the entities that have every component named by T. T must be a struct whose
// exported fields are all Read[C] or Write[C], e.g.:
//
//	type Mover struct {
//	    Velocity ecs.Read[Velocity]
//	    Position ecs.Write[Position]
//	}
//
// A Query is either built with NewQuery or declared as a field of a system state struct, in which
// case it is initialized when the system is registered and its access is added to the system's.
// A Query must not be iterated from two goroutines at once. Nesting a query inside its own loop is
// fine as long as the nested borrows don't conflict with the outer ones, e.g. for pairwise reads.
type Query[T any] struct {
	world  *World
	ids    []ComponentID // Component ID of each field, in field order
	fields []descriptor  // Pointers to the fields of result
	result T             // Reusable instance of the result type
	access Access
}

var _ systemField = &Query[struct{}]{}

// NewQuery builds a query against the world. Every component type named in T is registered.
func NewQuery[T any](w *World) (*Query[T], error) {
	q := &Query[T]{}
	if err := q.build(w); err != nil {
		return nil, err
	}
	return q, nil
}

// init initializes the query as a system state field.
func (q *Query[T]) init(meta *systemInitMetadata) error {
	if err := q.build(meta.world); err != nil {
		return err
	}
	meta.access.Merge(q.access)
	return nil
}

// build analyzes the result type's fields, registers their components, and computes the access.
func (q *Query[T]) build(w *World) error {
	resultType := reflect.TypeFor[T]()
	if resultType.Kind() != reflect.Struct {
		return eris.Wrapf(ErrInvalidQuery, "%s is not a struct", resultType)
	}
	if resultType.NumField() == 0 {
		return eris.Wrapf(ErrInvalidQuery, "%s has no fields", resultType)
	}

	resultValue := reflect.ValueOf(&q.result).Elem()
	modes := make(map[ComponentID]AccessMode, resultType.NumField())

	q.world = w
	q.ids = make([]ComponentID, 0, resultType.NumField())
	q.fields = make([]descriptor, 0, resultType.NumField())
	q.access = Access{}

	for i := range resultType.NumField() {
		field := resultType.Field(i)
		if !field.IsExported() {
			return eris.Wrapf(ErrInvalidQuery, "field %s must be exported", field.Name)
		}

		desc, ok := resultValue.Field(i).Addr().Interface().(descriptor)
		if !ok {
			return eris.Wrapf(ErrInvalidQuery, "field %s must be Read[Component] or Write[Component], got %s",
				field.Name, field.Type)
		}

		id, err := desc.register(w)
		if err != nil {
			return eris.Wrapf(err, "failed to register component of field %s", field.Name)
		}

		mode := desc.mode()
		if prev, seen := modes[id]; seen && (prev == AccessWrite || mode == AccessWrite) {
			return eris.Wrapf(ErrInvalidQuery, "field %s: component %s is already borrowed by another field",
				field.Name, w.ComponentName(id))
		}
		modes[id] = mode

		q.ids = append(q.ids, id)
		q.fields = append(q.fields, desc)
		q.access.add(id, mode)
	}
	return nil
}

// Access returns the components the query reads and writes.
func (q *Query[T]) Access() Access {
	return q.access.clone()
}

// Components returns the component IDs of the query's fields in field order.
func (q *Query[T]) Components() []ComponentID {
	ids := make([]ComponentID, len(q.ids))
	copy(ids, q.ids)
	return ids
}

// Iter returns an iterator over the matching entities. The yielded result's fields hold borrows on
// the entity's components that are released when the loop body returns, so they must not be used
// after that. Entities are visited in the storage order of the smallest pool involved.
//
// Adding or removing entities from any pool involved while iterating panics with an error wrapping
// ErrPoolMutated. Use Commands to make structural changes from inside a loop.
//
// Example:
//
//	for _, mover := range query.Iter() {
//	    vel := mover.Velocity.Get()
//	    pos := mover.Position.Ptr()
//	    pos.X += vel.X
//	}
func (q *Query[T]) Iter() iter.Seq2[Entity, T] {
	return func(yield func(Entity, T) bool) {
		pools, ok := q.world.components.resolve(q.ids)
		if !ok {
			return // Some component was never attached, nothing can match
		}

		driver := smallest(pools)
		entities := driver.keys()
		gens := generations(pools)

		for i := 0; i < len(entities); i++ {
			checkGenerations(pools, gens)

			entity := entities[i]
			if !hasAll(pools, entity) {
				continue
			}
			if !q.yieldOne(yield, pools, entity) {
				return
			}
		}
	}
}

// Count returns the number of matching entities without borrowing any component.
func (q *Query[T]) Count() int {
	pools, ok := q.world.components.resolve(q.ids)
	if !ok {
		return 0
	}

	count := 0
	for _, entity := range smallest(pools).keys() {
		if hasAll(pools, entity) {
			count++
		}
	}
	return count
}

// Visit calls fn with the entity's result if the entity matches the query. Returns false if it
// doesn't.
func (q *Query[T]) Visit(e Entity, fn func(T)) bool {
	if !q.world.Alive(e) {
		return false
	}
	pools, ok := q.world.components.resolve(q.ids)
	if !ok || !hasAll(pools, e) {
		return false
	}
	q.yieldOne(func(_ Entity, result T) bool {
		fn(result)
		return true
	}, pools, e)
	return true
}

// yieldOne borrows the entity's components for the duration of one loop body. The borrows are
// recorded locally so nested iteration over the same query releases each body's own borrows.
func (q *Query[T]) yieldOne(yield func(Entity, T) bool, pools []componentPool, e Entity) bool {
	held := make([]releaser, 0, len(q.fields))
	defer func() {
		for _, b := range held {
			b.release()
		}
	}()
	for i, field := range q.fields {
		held = append(held, field.acquire(pools[i], e))
	}
	return yield(e, q.result)
}

func smallest(pools []componentPool) componentPool {
	assert.That(len(pools) > 0, "query has no pools")
	driver := pools[0]
	for _, p := range pools[1:] {
		if p.Len() < driver.Len() {
			driver = p
		}
	}
	return driver
}

func hasAll(pools []componentPool, e Entity) bool {
	for _, p := range pools {
		if !p.Has(e) {
			return false
		}
	}
	return true
}

func generations(pools []componentPool) []uint64 {
	gens := make([]uint64, len(pools))
	for i, p := range pools {
		gens[i] = p.generation()
	}
	return gens
}

func checkGenerations(pools []componentPool, gens []uint64) {
	for i, p := range pools {
		if p.generation() != gens[i] {
			panic(eris.Wrapf(ErrPoolMutated, "pool %s", p.Name()))
		}
	}
}

// -------------------------------------------------------------------------------------------------
// Access Descriptors
// -------------------------------------------------------------------------------------------------

// descriptor is implemented by the fields of a query result.
type descriptor interface {
	register(w *World) (ComponentID, error)
	mode() AccessMode
	acquire(p componentPool, e Entity) releaser
}

type releaser interface {
	release()
}

var _ descriptor = &Read[Component]{}
var _ descriptor = &Write[Component]{}

// borrow is a component borrow held for one loop body. Query results are passed by value, so
// every copy of a field points at the same borrow and sees it end.
type borrow[T Component] struct {
	cell *cell[T]
	mode AccessMode
}

func acquireBorrow[T Component](p componentPool, e Entity, mode AccessMode) *borrow[T] {
	c, ok := p.(*Pool[T]).cell(e)
	assert.That(ok, "entity %s is not in pool %s", e, p.Name())

	acquired := c.tryShared
	if mode == AccessWrite {
		acquired = c.tryExclusive
	}
	if !acquired() {
		panic(aliasingViolation(p.Name(), e, mode))
	}
	return &borrow[T]{cell: c, mode: mode}
}

func (b *borrow[T]) release() {
	if b.cell == nil {
		return
	}
	if b.mode == AccessWrite {
		b.cell.releaseExclusive()
	} else {
		b.cell.releaseShared()
	}
	b.cell = nil
}

// live returns the borrowed cell. Using a field outside the loop body that produced it would
// access the component without holding a borrow, so it panics.
func (b *borrow[T]) live() *cell[T] {
	if b == nil || b.cell == nil {
		var zero T
		panic(eris.Wrapf(ErrAliasingViolation, "%s used outside of its query loop body", zero.Name()))
	}
	return b.cell
}

// Read is a query field with shared access to a component of type T.
type Read[T Component] struct {
	entity Entity
	borrow *borrow[T]
}

func (r *Read[T]) register(w *World) (ComponentID, error) {
	return registerComponent[T](&w.components)
}

func (r *Read[T]) mode() AccessMode { return AccessRead }

func (r *Read[T]) acquire(p componentPool, e Entity) releaser {
	r.entity = e
	r.borrow = acquireBorrow[T](p, e, AccessRead)
	return r.borrow
}

// Entity returns the entity the component belongs to.
func (r *Read[T]) Entity() Entity {
	return r.entity
}

// Get returns a copy of the component.
func (r *Read[T]) Get() T {
	return r.borrow.live().value
}

// Write is a query field with exclusive access to a component of type T.
type Write[T Component] struct {
	entity Entity
	borrow *borrow[T]
}

func (w *Write[T]) register(world *World) (ComponentID, error) {
	return registerComponent[T](&world.components)
}

func (w *Write[T]) mode() AccessMode { return AccessWrite }

func (w *Write[T]) acquire(p componentPool, e Entity) releaser {
	w.entity = e
	w.borrow = acquireBorrow[T](p, e, AccessWrite)
	return w.borrow
}

// Entity returns the entity the component belongs to.
func (w *Write[T]) Entity() Entity {
	return w.entity
}

// Get returns a copy of the component.
func (w *Write[T]) Get() T {
	return w.borrow.live().value
}

// Set replaces the component's value.
func (w *Write[T]) Set(value T) {
	w.borrow.live().value = value
}

// Ptr returns a pointer to the stored component. It is only valid inside the loop body.
func (w *Write[T]) Ptr() *T {
	return &w.borrow.live().value
}
