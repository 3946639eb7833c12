package ecs

import "github.com/rotisserie/eris"

var (
	// ErrEntityNotFound is returned when operating on an entity that was never created, has been
	// destroyed, or whose version is stale.
	ErrEntityNotFound = eris.New("entity does not exist")

	// ErrComponentNotFound is returned when an entity doesn't have the requested component.
	ErrComponentNotFound = eris.New("component not found on entity")

	// ErrComponentNotRegistered is returned by type-erased operations on a component name that no
	// typed operation has registered yet.
	ErrComponentNotRegistered = eris.New("component is not registered")

	// ErrComponentNameConflict is returned when two Go types return the same component name.
	ErrComponentNameConflict = eris.New("component name is registered by another type")

	// ErrComponentTypeMismatch is returned when a type-erased component is inserted into a pool
	// that stores a different concrete type.
	ErrComponentTypeMismatch = eris.New("component type mismatch")

	// ErrAliasingViolation is the panic value (wrapped) raised when a component is borrowed
	// exclusively while other borrows are live, or shared while an exclusive borrow is live.
	ErrAliasingViolation = eris.New("component aliasing violation")

	// ErrPoolMutated is the panic value (wrapped) raised when a pool gains or loses entities while
	// it is being iterated.
	ErrPoolMutated = eris.New("component pool mutated during iteration")

	// ErrInvalidQuery is returned when a query's result type is not a struct of Read/Write fields.
	ErrInvalidQuery = eris.New("invalid query")

	// ErrDuplicateSystem is returned when registering a system under a name already in use.
	ErrDuplicateSystem = eris.New("system is already registered")

	// ErrSystemPanicked wraps a panic recovered from a running system.
	ErrSystemPanicked = eris.New("system panicked")

	// ErrInvalidConfig is returned when configuration values fail validation.
	ErrInvalidConfig = eris.New("invalid config")
)
