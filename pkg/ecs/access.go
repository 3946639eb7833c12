package ecs

import "github.com/kelindar/bitmap"

// AccessMode is how a query field borrows its component.
type AccessMode uint8

const (
	// AccessRead borrows a component shared. Any number of readers may hold it at once.
	AccessRead AccessMode = iota
	// AccessWrite borrows a component exclusively.
	AccessWrite
)

func (m AccessMode) String() string {
	switch m {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Access is the set of component types a query or system reads and writes. A component that is
// both read and written by a system appears in both sets.
type Access struct {
	reads  bitmap.Bitmap
	writes bitmap.Bitmap
}

func (a *Access) add(id ComponentID, mode AccessMode) {
	switch mode {
	case AccessRead:
		a.reads.Set(id)
	case AccessWrite:
		a.writes.Set(id)
	}
}

// Merge adds the reads and writes of other to a.
func (a *Access) Merge(other Access) {
	other.reads.Range(func(id uint32) {
		a.reads.Set(id)
	})
	other.writes.Range(func(id uint32) {
		a.writes.Set(id)
	})
}

// clone returns a copy that doesn't share bitmap storage with a.
func (a Access) clone() Access {
	var c Access
	c.Merge(a)
	return c
}

// Reads returns the IDs of the components read, in ascending order.
func (a Access) Reads() []ComponentID {
	return members(a.reads)
}

// Writes returns the IDs of the components written, in ascending order.
func (a Access) Writes() []ComponentID {
	return members(a.writes)
}

// ReadsComponent reports whether id is in the read set.
func (a Access) ReadsComponent(id ComponentID) bool {
	return a.reads.Contains(id)
}

// WritesComponent reports whether id is in the write set.
func (a Access) WritesComponent(id ComponentID) bool {
	return a.writes.Contains(id)
}

// IsEmpty reports whether the access touches no components.
func (a Access) IsEmpty() bool {
	return a.reads.Count() == 0 && a.writes.Count() == 0
}

// Conflicts reports whether a and other can't run at the same time: either one writes a component
// the other reads or writes. Shared reads never conflict.
func (a Access) Conflicts(other Access) bool {
	return overlaps(a.writes, other.reads) ||
		overlaps(a.writes, other.writes) ||
		overlaps(other.writes, a.reads)
}

func overlaps(x, y bitmap.Bitmap) bool {
	found := false
	x.Range(func(id uint32) {
		if !found && y.Contains(id) {
			found = true
		}
	})
	return found
}

func members(b bitmap.Bitmap) []ComponentID {
	ids := make([]ComponentID, 0, b.Count())
	b.Range(func(id uint32) {
		ids = append(ids, id)
	})
	return ids
}
