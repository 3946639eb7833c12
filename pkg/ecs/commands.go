package ecs

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

type commandKind uint8

const (
	commandInsert commandKind = iota
	commandRemove
)

type componentCommand struct {
	kind       commandKind
	entity     Entity
	components []Component
}

// Commands buffers structural changes made by a system while it runs. The scheduler applies them
// after every system in the hook has finished: spawns first, then component inserts and removals
// in the order they were recorded, then destroys. Component changes on entities destroyed by the
// same buffer are dropped. A command that fails leaves no partial entity behind and doesn't
// prevent the other commands from being applied.
//
// Components passed to Commands must have been registered with the world, e.g. by a query.
type Commands struct {
	world      *World
	logger     *zerolog.Logger
	spawns     [][]Component
	ops        []componentCommand
	destroys   []Entity
	destroying map[Entity]struct{}
}

func newCommands(w *World, logger *zerolog.Logger) *Commands {
	return &Commands{
		world:      w,
		logger:     logger,
		destroying: make(map[Entity]struct{}),
	}
}

// Spawn queues the creation of an entity with the given components.
func (c *Commands) Spawn(components ...Component) {
	c.spawns = append(c.spawns, components)
}

// Insert queues adding (or replacing) components on an entity.
func (c *Commands) Insert(e Entity, components ...Component) {
	c.ops = append(c.ops, componentCommand{kind: commandInsert, entity: e, components: components})
}

// Remove queues removing components from an entity. Only the components' types matter.
func (c *Commands) Remove(e Entity, components ...Component) {
	c.ops = append(c.ops, componentCommand{kind: commandRemove, entity: e, components: components})
}

// Destroy queues destroying an entity.
func (c *Commands) Destroy(e Entity) {
	if _, queued := c.destroying[e]; queued {
		return
	}
	c.destroying[e] = struct{}{}
	c.destroys = append(c.destroys, e)
}

// Len returns the number of queued commands.
func (c *Commands) Len() int {
	return len(c.spawns) + len(c.ops) + len(c.destroys)
}

// apply executes and clears the queued commands. Commands targeting entities that are no longer
// alive are skipped. A failing command doesn't stop the rest of the buffer; the errors of every
// failed command are joined.
func (c *Commands) apply() error {
	defer c.reset()

	var errs []error
	for _, components := range c.spawns {
		if err := c.spawn(components); err != nil {
			errs = append(errs, err)
		}
	}

	for _, op := range c.ops {
		if _, destroyed := c.destroying[op.entity]; destroyed {
			continue
		}
		if !c.world.Alive(op.entity) {
			c.logger.Debug().Stringer("entity", op.entity).Msg("skipping command on dead entity")
			continue
		}

		var err error
		switch op.kind {
		case commandInsert:
			err = c.world.AddComponents(op.entity, op.components...)
		case commandRemove:
			err = c.world.RemoveComponents(op.entity, op.components...)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	for _, e := range c.destroys {
		if !c.world.Alive(e) {
			c.logger.Debug().Stringer("entity", e).Msg("entity already destroyed")
			continue
		}
		if err := c.world.DestroyEntity(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// spawn creates an entity with the components, or no entity at all if any can't be added.
func (c *Commands) spawn(components []Component) error {
	e := c.world.CreateEntity()
	if err := c.world.AddComponents(e, components...); err != nil {
		if destroyErr := c.world.DestroyEntity(e); destroyErr != nil {
			return errors.Join(err, destroyErr)
		}
		return eris.Wrap(err, "failed to spawn entity")
	}
	return nil
}

func (c *Commands) reset() {
	c.spawns = c.spawns[:0]
	c.ops = c.ops[:0]
	c.destroys = c.destroys[:0]
	clear(c.destroying)
}
