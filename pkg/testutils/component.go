package testutils

// -------------------------------------------------------------------------------------------------
// Components shared by the ecs tests
// -------------------------------------------------------------------------------------------------

type Position struct {
	X, Y float64
}

func (Position) Name() string { return "position" }

type Velocity struct {
	X, Y float64
}

func (Velocity) Name() string { return "velocity" }

type Health struct {
	HP int
}

func (Health) Name() string { return "health" }

type PlayerTag struct {
	Nickname string
}

func (PlayerTag) Name() string { return "player_tag" }

// The following components only exist to fill wide (arity 8) queries.

type ComponentA struct{ Value int }

func (ComponentA) Name() string { return "component_a" }

type ComponentB struct{ Value int }

func (ComponentB) Name() string { return "component_b" }

type ComponentC struct{ Value int }

func (ComponentC) Name() string { return "component_c" }

type ComponentD struct{ Value int }

func (ComponentD) Name() string { return "component_d" }
