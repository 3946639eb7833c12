package ecs

import (
	"testing"

	. "github.com/melevo/melevo/pkg/testutils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommands(t *testing.T) (*World, *Commands) {
	t.Helper()
	w := NewWorld()
	for _, register := range []func(*World) (ComponentID, error){
		RegisterComponent[Health],
		RegisterComponent[Position],
	} {
		_, err := register(w)
		require.NoError(t, err)
	}
	logger := zerolog.Nop()
	return w, newCommands(w, &logger)
}

func TestCommands_Apply(t *testing.T) {
	t.Parallel()

	w, cmds := newTestCommands(t)
	existing := w.CreateEntity()
	doomed := w.CreateEntity()
	require.NoError(t, AddComponent(w, existing, Health{HP: 1}))

	cmds.Destroy(doomed)
	cmds.Destroy(doomed)
	cmds.Insert(doomed, Position{})
	cmds.Insert(existing, Position{X: 1}, Health{HP: 2})
	cmds.Remove(existing, Health{})
	cmds.Spawn(Health{HP: 3})
	assert.Equal(t, 5, cmds.Len(), "duplicate destroys are queued once")

	// Nothing happens until the buffer is applied.
	assert.True(t, w.Alive(doomed))
	assert.Equal(t, 2, w.EntityCount())

	require.NoError(t, cmds.apply())
	assert.Equal(t, 0, cmds.Len())

	assert.False(t, w.Alive(doomed))
	assert.Equal(t, 2, w.EntityCount())

	// Inserts and removes apply in the order they were recorded.
	pos, err := GetComponent[Position](w, existing)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 1}, pos)
	assert.False(t, HasComponent[Health](w, existing))

	// The spawned entity reuses no slot because the destroy happens after the spawn.
	spawned := w.Entities()[1]
	assert.Equal(t, uint64(2), spawned.ID())
	h, err := GetComponent[Health](w, spawned)
	require.NoError(t, err)
	assert.Equal(t, 3, h.HP)
}

func TestCommands_DeadTargets(t *testing.T) {
	t.Parallel()

	w, cmds := newTestCommands(t)
	e := w.CreateEntity()
	require.NoError(t, w.DestroyEntity(e))

	cmds.Insert(e, Health{})
	cmds.Remove(e, Health{})
	cmds.Destroy(e)
	require.NoError(t, cmds.apply())
	assert.Equal(t, 0, w.EntityCount())
}

func TestCommands_Errors(t *testing.T) {
	t.Parallel()

	w, cmds := newTestCommands(t)
	cmds.Spawn(Velocity{})
	require.ErrorIs(t, cmds.apply(), ErrComponentNotRegistered)
	assert.Equal(t, 0, cmds.Len(), "the buffer is cleared even on failure")

	e := w.CreateEntity()
	cmds.Insert(e, Health{HP: 1}, otherPosition{})
	require.ErrorIs(t, cmds.apply(), ErrComponentTypeMismatch)
	assert.False(t, HasComponent[Health](w, e), "a failed insert adds nothing")
}

func TestCommands_FailedSpawnLeavesNoEntity(t *testing.T) {
	t.Parallel()

	w, cmds := newTestCommands(t)
	doomed := w.CreateEntity()

	cmds.Spawn(Health{HP: 1}, Velocity{}) // Velocity is never registered
	cmds.Spawn(Health{HP: 2})
	cmds.Destroy(doomed)

	err := cmds.apply()
	require.ErrorIs(t, err, ErrComponentNotRegistered)

	// The failed spawn was rolled back and the rest of the buffer still applied.
	entities := w.Entities()
	require.Len(t, entities, 1)
	h, err := GetComponent[Health](w, entities[0])
	require.NoError(t, err)
	assert.Equal(t, 2, h.HP)
	assert.False(t, w.Alive(doomed))

	health, ok := ComponentPool[Health](w)
	require.True(t, ok)
	assert.Equal(t, 1, health.Len())
}
