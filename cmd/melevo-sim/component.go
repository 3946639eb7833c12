package main

// Transform is an entity's position in the simulation plane.
type Transform struct {
	X, Y float64
}

func (Transform) Name() string { return "transform" }

// Velocity is the distance an entity moves per tick.
type Velocity struct {
	X, Y float64
}

func (Velocity) Name() string { return "velocity" }

// Lifetime is the number of ticks an entity has left before it is destroyed.
type Lifetime struct {
	Ticks int
}

func (Lifetime) Name() string { return "lifetime" }
