package ecs

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	. "github.com/melevo/melevo/pkg/testutils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLog(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	buf.Reset()
	return event
}

func TestLog_World(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWorld(WithLogger(zerolog.New(&buf)))

	e := w.CreateEntity()
	require.NoError(t, AddComponent(w, e, Position{X: 1, Y: 2}))
	require.NoError(t, AddComponent(w, e, PlayerTag{Nickname: "neo"}))
	_, err := RegisterComponent[Health](w)
	require.NoError(t, err)

	w.LogComponents(zerolog.InfoLevel)
	event := decodeLog(t, &buf)
	assert.Equal(t, "info", event["level"])
	assert.InDelta(t, 3, event["total_components"], 0)
	components, ok := event["components"].([]any)
	require.True(t, ok)
	require.Len(t, components, 3)
	assert.Equal(t, "position", components[0].(map[string]any)["component_name"])
	assert.InDelta(t, 1, components[0].(map[string]any)["entities"], 0)
	assert.InDelta(t, 0, components[2].(map[string]any)["entities"], 0)

	require.NoError(t, w.LogEntity(zerolog.DebugLevel, e))
	event = decodeLog(t, &buf)
	assert.InDelta(t, 0, event["entity_id"], 0)
	components, ok = event["components"].([]any)
	require.True(t, ok)
	require.Len(t, components, 2)
	position := components[0].(map[string]any)
	assert.Equal(t, "position", position["component_name"])
	assert.Equal(t, map[string]any{"X": 1.0, "Y": 2.0}, position["value"])
	tag := components[1].(map[string]any)
	assert.Equal(t, map[string]any{"Nickname": "neo"}, tag["value"])

	require.NoError(t, w.DestroyEntity(e))
	require.ErrorIs(t, w.LogEntity(zerolog.DebugLevel, e), ErrEntityNotFound)
}

func TestLog_Systems(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWorld(WithLogger(zerolog.New(&buf)))
	s := NewScheduler(w)
	require.NoError(t, RegisterSystem(s, movementSystem))

	s.LogSystems(zerolog.InfoLevel)
	event := decodeLog(t, &buf)
	assert.Equal(t, "scheduler", event["component"])
	assert.InDelta(t, 1, event["total_systems"], 0)

	systems, ok := event["systems"].([]any)
	require.True(t, ok)
	require.Len(t, systems, 1)
	assert.Equal(t, map[string]any{
		"name":   "ecs.movementSystem",
		"hook":   "update",
		"reads":  []any{"velocity"},
		"writes": []any{"position"},
	}, systems[0])
}

func TestLog_SystemLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWorld(WithLogger(zerolog.New(&buf).Level(zerolog.InfoLevel)))
	s := NewScheduler(w)
	require.NoError(t, RegisterSystem(s, func(state *tickState) error {
		state.Logger().Info().Msg("hello")
		return nil
	}, WithName("greeter")))

	require.NoError(t, s.RunOnce())
	event := decodeLog(t, &buf)
	assert.Equal(t, "greeter", event["system"])
	assert.Equal(t, "hello", event["message"])
}
