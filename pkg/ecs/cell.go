package ecs

import (
	"sync/atomic"

	"github.com/melevo/melevo/pkg/assert"
	"github.com/rotisserie/eris"
)

const exclusiveBorrow = -1

// cell stores one component value with its borrow state: 0 when unborrowed, n > 0 while n shared
// borrows are live, exclusiveBorrow while one exclusive borrow is live. Cells are heap allocated
// and referenced by pointer from the pool so a borrow stays valid when the pool swaps entries.
type cell[T any] struct {
	value  T
	borrow atomic.Int32
}

func newCell[T any](value T) *cell[T] {
	return &cell[T]{value: value}
}

// tryShared takes a shared borrow. Fails if an exclusive borrow is live.
func (c *cell[T]) tryShared() bool {
	for {
		current := c.borrow.Load()
		if current == exclusiveBorrow {
			return false
		}
		if c.borrow.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (c *cell[T]) releaseShared() {
	remaining := c.borrow.Add(-1)
	assert.That(remaining >= 0, "shared borrow released more than once")
}

// tryExclusive takes the exclusive borrow. Fails if any borrow is live.
func (c *cell[T]) tryExclusive() bool {
	return c.borrow.CompareAndSwap(0, exclusiveBorrow)
}

func (c *cell[T]) releaseExclusive() {
	ok := c.borrow.CompareAndSwap(exclusiveBorrow, 0)
	assert.That(ok, "exclusive borrow released without being held")
}

// aliasingViolation builds the panic value for a failed borrow.
func aliasingViolation(component string, e Entity, mode AccessMode) error {
	if mode == AccessWrite {
		return eris.Wrapf(ErrAliasingViolation,
			"cannot borrow %s of entity %s exclusively: it is already borrowed", component, e)
	}
	return eris.Wrapf(ErrAliasingViolation,
		"cannot borrow %s of entity %s: it is borrowed exclusively", component, e)
}
