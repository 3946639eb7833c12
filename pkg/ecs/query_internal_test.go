package ecs

import (
	"testing"

	. "github.com/melevo/melevo/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_SingleRead(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	want := make(map[Entity]Health)
	for i := range 20 {
		e := w.CreateEntity()
		if i%3 == 0 {
			continue
		}
		require.NoError(t, AddComponent(w, e, Health{HP: i}))
		want[e] = Health{HP: i}
	}

	q, err := NewQuery[struct{ Health Read[Health] }](w)
	require.NoError(t, err)

	got := make(map[Entity]Health)
	for e, r := range q.Iter() {
		_, dup := got[e]
		require.False(t, dup, "entity %s yielded twice", e)
		got[e] = r.Health.Get()
		assert.Equal(t, e, r.Health.Entity())
	}
	assert.Equal(t, want, got)
	assert.Equal(t, len(want), q.Count())
}

func TestQuery_MissingPoolIsEmpty(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	e := w.CreateEntity()
	require.NoError(t, AddComponent(w, e, Health{HP: 1}))

	q, err := NewQuery[struct {
		Health   Read[Health]
		Velocity Read[Velocity]
	}](w)
	require.NoError(t, err)

	for range q.Iter() {
		t.Fatal("no entity has a velocity")
	}
	assert.Equal(t, 0, q.Count())
}

type joinResult struct {
	Position Read[Position]
	Velocity Write[Velocity]
}

// The join yields exactly the intersection whichever pool is smaller.
func TestQuery_Join(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		positionEvery int
		velocityEvery int
	}{
		{name: "position pool smaller", positionEvery: 5, velocityEvery: 2},
		{name: "velocity pool smaller", positionEvery: 2, velocityEvery: 5},
		{name: "same pools", positionEvery: 1, velocityEvery: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := NewWorld()
			want := make(map[Entity]struct{})
			for i := range 50 {
				e := w.CreateEntity()
				hasPos := i%tt.positionEvery == 0
				hasVel := i%tt.velocityEvery == 0
				if hasPos {
					require.NoError(t, AddComponent(w, e, Position{X: float64(i)}))
				}
				if hasVel {
					require.NoError(t, AddComponent(w, e, Velocity{X: 1}))
				}
				if hasPos && hasVel {
					want[e] = struct{}{}
				}
			}

			q, err := NewQuery[joinResult](w)
			require.NoError(t, err)

			got := make(map[Entity]struct{})
			for e, r := range q.Iter() {
				got[e] = struct{}{}
				assert.Equal(t, float64(e.ID()), r.Position.Get().X)
				r.Velocity.Set(Velocity{X: r.Position.Get().X})
			}
			assert.Equal(t, want, got)

			for e := range want {
				v, err := GetComponent[Velocity](w, e)
				require.NoError(t, err)
				assert.Equal(t, float64(e.ID()), v.X)
			}
		})
	}
}

type wideResult struct {
	Position  Read[Position]
	Velocity  Write[Velocity]
	Health    Read[Health]
	PlayerTag Read[PlayerTag]
	A         Write[ComponentA]
	B         Read[ComponentB]
	C         Write[ComponentC]
	D         Read[ComponentD]
}

func TestQuery_Arity8(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	full := make([]Entity, 0)
	for i := range 10 {
		e := w.CreateEntity()
		require.NoError(t, AddComponent(w, e, Position{X: 1}))
		require.NoError(t, AddComponent(w, e, Velocity{}))
		require.NoError(t, AddComponent(w, e, Health{HP: 2}))
		require.NoError(t, AddComponent(w, e, PlayerTag{Nickname: "p"}))
		require.NoError(t, AddComponent(w, e, ComponentA{Value: 3}))
		require.NoError(t, AddComponent(w, e, ComponentB{Value: 4}))
		require.NoError(t, AddComponent(w, e, ComponentC{Value: 5}))
		if i%2 == 0 {
			require.NoError(t, AddComponent(w, e, ComponentD{Value: 6}))
			full = append(full, e)
		}
	}

	q, err := NewQuery[wideResult](w)
	require.NoError(t, err)
	assert.Len(t, q.Access().Reads(), 5)
	assert.Len(t, q.Access().Writes(), 3)

	got := make([]Entity, 0)
	for e, r := range q.Iter() {
		got = append(got, e)
		sum := r.Position.Get().X + float64(r.Health.Get().HP+r.A.Get().Value+r.B.Get().Value+
			r.C.Get().Value+r.D.Get().Value)
		r.Velocity.Set(Velocity{X: sum})
		r.A.Ptr().Value++
		r.C.Set(ComponentC{Value: len(r.PlayerTag.Get().Nickname)})
	}
	assert.ElementsMatch(t, full, got)

	for _, e := range full {
		v, _ := GetComponent[Velocity](w, e)
		assert.Equal(t, 21.0, v.X)
		a, _ := GetComponent[ComponentA](w, e)
		assert.Equal(t, 4, a.Value)
		c, _ := GetComponent[ComponentC](w, e)
		assert.Equal(t, 1, c.Value)
	}
}

func TestQuery_Invalid(t *testing.T) {
	t.Parallel()

	w := NewWorld()

	_, err := NewQuery[struct{}](w)
	require.ErrorIs(t, err, ErrInvalidQuery, "empty struct")

	_, err = NewQuery[int](w)
	require.ErrorIs(t, err, ErrInvalidQuery, "not a struct")

	_, err = NewQuery[struct{ Health Health }](w)
	require.ErrorIs(t, err, ErrInvalidQuery, "not a descriptor")

	_, err = NewQuery[struct{ health Read[Health] }](w)
	require.ErrorIs(t, err, ErrInvalidQuery, "unexported field")

	_, err = NewQuery[struct {
		A Read[Health]
		B Write[Health]
	}](w)
	require.ErrorIs(t, err, ErrInvalidQuery, "read and write of the same component")

	_, err = NewQuery[struct {
		A Write[Health]
		B Write[Health]
	}](w)
	require.ErrorIs(t, err, ErrInvalidQuery, "two writes of the same component")

	q, err := NewQuery[struct {
		A Read[Health]
		B Read[Health]
	}](w)
	require.NoError(t, err, "two reads of the same component share")
	assert.Len(t, q.Access().Reads(), 1)
}

func TestQuery_AliasingAcrossQueries(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	e := w.CreateEntity()
	require.NoError(t, AddComponent(w, e, Health{HP: 1}))

	readers, err := NewQuery[struct{ Health Read[Health] }](w)
	require.NoError(t, err)
	writers, err := NewQuery[struct{ Health Write[Health] }](w)
	require.NoError(t, err)
	otherReaders, err := NewQuery[struct{ Health Read[Health] }](w)
	require.NoError(t, err)

	// Nested readers share.
	for range readers.Iter() {
		for _, r := range otherReaders.Iter() {
			assert.Equal(t, 1, r.Health.Get().HP)
		}
	}

	// A writer inside a reader doesn't.
	err = recoverError(t, func() {
		for range readers.Iter() {
			for range writers.Iter() {
			}
		}
	})
	require.ErrorIs(t, err, ErrAliasingViolation)

	// Nor does a direct read inside a writer.
	err = recoverError(t, func() {
		for range writers.Iter() {
			_, _ = GetComponent[Health](w, e)
		}
	})
	require.ErrorIs(t, err, ErrAliasingViolation)

	// Every borrow was released on the way out.
	require.NoError(t, UpdateComponent(w, e, func(h *Health) { h.HP = 2 }))
	for _, r := range writers.Iter() {
		assert.Equal(t, 2, r.Health.Get().HP)
	}
}

func TestQuery_BreakReleasesBorrows(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	for range 3 {
		require.NoError(t, AddComponent(w, w.CreateEntity(), Health{}))
	}

	q, err := NewQuery[struct{ Health Write[Health] }](w)
	require.NoError(t, err)

	for range q.Iter() {
		break
	}
	for _, e := range w.Entities() {
		require.NoError(t, UpdateComponent(w, e, func(h *Health) { h.HP++ }))
	}
}

func TestQuery_NestedSelfIteration(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	a := w.CreateEntity()
	b := w.CreateEntity()
	require.NoError(t, AddComponent(w, a, Health{HP: 1}))
	require.NoError(t, AddComponent(w, b, Health{HP: 2}))

	q, err := NewQuery[struct{ Health Read[Health] }](w)
	require.NoError(t, err)

	pairs := 0
	for _, outer := range q.Iter() {
		for _, inner := range q.Iter() {
			assert.Positive(t, outer.Health.Get().HP+inner.Health.Get().HP)
			pairs++
		}
		// The inner loop released its own borrows, not the outer one.
		assert.Positive(t, outer.Health.Get().HP)
	}
	assert.Equal(t, 4, pairs)

	for _, e := range []Entity{a, b} {
		require.NoError(t, UpdateComponent(w, e, func(h *Health) { h.HP = 10 }))
	}

	// A nested writer over the same entity is still refused, and both levels release on the way out.
	writers, err := NewQuery[struct{ Health Write[Health] }](w)
	require.NoError(t, err)
	err = recoverError(t, func() {
		for range writers.Iter() {
			for range writers.Iter() {
			}
		}
	})
	require.ErrorIs(t, err, ErrAliasingViolation)
	require.NoError(t, UpdateComponent(w, a, func(h *Health) { h.HP = 11 }))
}

func TestQuery_EscapedResultPanics(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	e := w.CreateEntity()
	require.NoError(t, AddComponent(w, e, Health{HP: 1}))

	type writeResult = struct{ Health Write[Health] }
	writers, err := NewQuery[writeResult](w)
	require.NoError(t, err)
	readers, err := NewQuery[struct{ Health Read[Health] }](w)
	require.NoError(t, err)

	var escaped writeResult
	for _, r := range writers.Iter() {
		escaped = r
	}

	err = recoverError(t, func() {
		for _, r := range readers.Iter() {
			before := r.Health.Get().HP
			escaped.Health.Set(99)
			assert.Equal(t, before, r.Health.Get().HP)
		}
	})
	require.ErrorIs(t, err, ErrAliasingViolation)

	err = recoverError(t, func() { _ = escaped.Health.Ptr() })
	require.ErrorIs(t, err, ErrAliasingViolation)

	var unused Read[Health]
	err = recoverError(t, func() { _ = unused.Get() })
	require.ErrorIs(t, err, ErrAliasingViolation)

	h, err := GetComponent[Health](w, e)
	require.NoError(t, err)
	assert.Equal(t, 1, h.HP)
}

func TestQuery_StructuralMutationPanics(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	entities := make([]Entity, 0)
	for range 3 {
		e := w.CreateEntity()
		require.NoError(t, AddComponent(w, e, Health{}))
		require.NoError(t, AddComponent(w, e, Position{}))
		entities = append(entities, e)
	}

	q, err := NewQuery[struct {
		Health   Read[Health]
		Position Read[Position]
	}](w)
	require.NoError(t, err)

	err = recoverError(t, func() {
		for range q.Iter() {
			require.NoError(t, AddComponent(w, w.CreateEntity(), Position{}))
		}
	})
	require.ErrorIs(t, err, ErrPoolMutated)

	err = recoverError(t, func() {
		for e := range q.Iter() {
			require.NoError(t, w.DestroyEntity(e))
		}
	})
	require.ErrorIs(t, err, ErrAliasingViolation, "destroying an entity whose components are borrowed")

	// Replacing the values of other entities is not structural.
	for e := range q.Iter() {
		for _, other := range entities {
			if other != e {
				require.NoError(t, AddComponent(w, other, Position{X: 1}))
			}
		}
	}
}

func TestQuery_Visit(t *testing.T) {
	t.Parallel()

	w := NewWorld()
	e := w.CreateEntity()
	require.NoError(t, AddComponent(w, e, Health{HP: 1}))
	bare := w.CreateEntity()

	q, err := NewQuery[struct{ Health Write[Health] }](w)
	require.NoError(t, err)

	ok := q.Visit(e, func(r struct{ Health Write[Health] }) {
		r.Health.Ptr().HP = 9
	})
	require.True(t, ok)
	h, _ := GetComponent[Health](w, e)
	assert.Equal(t, 9, h.HP)

	assert.False(t, q.Visit(bare, func(struct{ Health Write[Health] }) {}))
	require.NoError(t, w.DestroyEntity(e))
	assert.False(t, q.Visit(e, func(struct{ Health Write[Health] }) {}))
}
