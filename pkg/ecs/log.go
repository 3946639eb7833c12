package ecs

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// LogComponents logs the registered component types and the size of their pools.
func (w *World) LogComponents(level zerolog.Level) {
	names := w.components.registered()
	arr := zerolog.Arr()
	for id, name := range names {
		size := 0
		if p := w.components.pool(ComponentID(id)); p != nil { //nolint:gosec // Bounded by MaxComponentID
			size = p.Len()
		}
		arr = arr.Dict(zerolog.Dict().
			Int("component_id", id).
			Str("component_name", name).
			Int("entities", size))
	}
	w.logger.WithLevel(level).
		Int("total_components", len(names)).
		Array("components", arr).
		Send()
}

// LogEntity logs an entity and the JSON encoding of each of its components.
func (w *World) LogEntity(level zerolog.Level, e Entity) error {
	if !w.Alive(e) {
		return eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}

	arr := zerolog.Arr()
	for _, p := range w.components.allPools() {
		component, ok := p.Get(e)
		if !ok {
			continue
		}
		value, err := json.Marshal(component)
		if err != nil {
			w.logger.Err(err).Str("component_name", p.Name()).Msg("failed to encode component")
			continue
		}
		arr = arr.Dict(zerolog.Dict().
			Uint32("component_id", p.ID()).
			Str("component_name", p.Name()).
			RawJSON("value", value))
	}

	w.logger.WithLevel(level).
		Uint64("entity_id", e.ID()).
		Uint64("entity_version", e.Version()).
		Array("components", arr).
		Send()
	return nil
}

// LogSystems logs the registered systems with their hooks and the components they read and write.
func (s *Scheduler) LogSystems(level zerolog.Level) {
	systems := s.Systems()
	arr := zerolog.Arr()
	for _, system := range systems {
		arr = arr.Dict(zerolog.Dict().
			Str("name", system.Name).
			Stringer("hook", system.Hook).
			Strs("reads", s.componentNames(system.Access.Reads())).
			Strs("writes", s.componentNames(system.Access.Writes())))
	}
	s.logger.WithLevel(level).
		Int("total_systems", len(systems)).
		Array("systems", arr).
		Send()
}

func (s *Scheduler) componentNames(ids []ComponentID) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = s.world.ComponentName(id)
	}
	return names
}
