package main

import (
	"math"
	"math/rand/v2"

	"github.com/melevo/melevo/pkg/ecs"
)

// spawner creates particles with random velocities and lifetimes.
type spawner struct {
	prng        *rand.Rand
	speed       float64
	maxLifetime int
}

func (s *spawner) spawn(cmds *ecs.Commands) {
	angle := s.prng.Float64() * 2 * math.Pi
	cmds.Spawn(
		Transform{},
		Velocity{X: math.Cos(angle) * s.speed, Y: math.Sin(angle) * s.speed},
		Lifetime{Ticks: 1 + s.prng.IntN(s.maxLifetime)},
	)
}

type SpawnSystemState struct {
	ecs.BaseSystemState
	// Registers the particle components so spawn commands can be applied.
	Particles ecs.Query[struct {
		Transform ecs.Read[Transform]
		Velocity  ecs.Read[Velocity]
		Lifetime  ecs.Read[Lifetime]
	}]
}

// newSpawnSystem spawns the initial population on the first tick.
func newSpawnSystem(s *spawner, population int) ecs.System[SpawnSystemState] {
	return func(state *SpawnSystemState) error {
		for range population {
			s.spawn(state.Commands())
		}
		state.Logger().Info().Int("population", population).Msg("spawning particles")
		return nil
	}
}

type MovementSystemState struct {
	ecs.BaseSystemState
	Movers ecs.Query[struct {
		Velocity  ecs.Read[Velocity]
		Transform ecs.Write[Transform]
	}]
}

// MovementSystem moves every entity by its velocity.
func MovementSystem(state *MovementSystemState) error {
	for _, mover := range state.Movers.Iter() {
		vel := mover.Velocity.Get()
		t := mover.Transform.Ptr()
		t.X += vel.X
		t.Y += vel.Y
	}
	return nil
}

type LifetimeSystemState struct {
	ecs.BaseSystemState
	Mortals ecs.Query[struct{ Lifetime ecs.Write[Lifetime] }]
}

// newLifetimeSystem ages every entity and replaces the ones that expire.
func newLifetimeSystem(s *spawner) ecs.System[LifetimeSystemState] {
	return func(state *LifetimeSystemState) error {
		expired := 0
		for entity, mortal := range state.Mortals.Iter() {
			life := mortal.Lifetime.Ptr()
			life.Ticks--
			if life.Ticks > 0 {
				continue
			}
			state.Commands().Destroy(entity)
			s.spawn(state.Commands())
			expired++
		}
		if expired > 0 {
			state.Logger().Debug().Int("expired", expired).Uint64("tick", state.Tick()).Msg("particles expired")
		}
		return nil
	}
}

// Frame is the render-ready summary of one tick.
type Frame struct {
	Tick     uint64
	Visible  int
	MinX     float64
	MinY     float64
	MaxX     float64
	MaxY     float64
	Centroid Transform
}

type RenderExtractSystemState struct {
	ecs.BaseSystemState
	Drawables ecs.Query[struct{ Transform ecs.Read[Transform] }]
}

// newRenderExtractSystem copies what a renderer needs out of the world into frame.
func newRenderExtractSystem(frame *Frame) ecs.System[RenderExtractSystemState] {
	return func(state *RenderExtractSystemState) error {
		*frame = Frame{
			Tick: state.Tick(),
			MinX: math.Inf(1), MinY: math.Inf(1),
			MaxX: math.Inf(-1), MaxY: math.Inf(-1),
		}
		var sumX, sumY float64
		for _, drawable := range state.Drawables.Iter() {
			t := drawable.Transform.Get()
			frame.Visible++
			frame.MinX, frame.MaxX = min(frame.MinX, t.X), max(frame.MaxX, t.X)
			frame.MinY, frame.MaxY = min(frame.MinY, t.Y), max(frame.MaxY, t.Y)
			sumX += t.X
			sumY += t.Y
		}
		if frame.Visible > 0 {
			frame.Centroid = Transform{X: sumX / float64(frame.Visible), Y: sumY / float64(frame.Visible)}
		}
		return nil
	}
}

// registerSystems registers the simulation's systems. Movement and lifetime touch disjoint
// components and run concurrently; the render extract reads transforms after both.
func registerSystems(sched *ecs.Scheduler, cfg simConfig, frame *Frame) error {
	s := &spawner{
		prng:        rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)), //nolint:gosec // Simulation only
		speed:       cfg.Speed,
		maxLifetime: cfg.MaxLifetime,
	}

	if err := ecs.RegisterSystem(sched, newSpawnSystem(s, cfg.Population),
		ecs.WithName("spawn"), ecs.WithHook(ecs.Startup)); err != nil {
		return err
	}
	if err := ecs.RegisterSystem(sched, MovementSystem, ecs.WithName("movement")); err != nil {
		return err
	}
	if err := ecs.RegisterSystem(sched, newLifetimeSystem(s), ecs.WithName("lifetime")); err != nil {
		return err
	}
	return ecs.RegisterSystem(sched, newRenderExtractSystem(frame),
		ecs.WithName("render_extract"), ecs.WithHook(ecs.PostUpdate))
}
