// Package sparse provides a fixed-capacity sparse set: a dense array of values addressed through
// a sparse array of indices keyed by small integers. Insert, lookup, membership and removal are
// O(1). Removal swaps the last element into the removed slot, so iteration order is not stable
// across removals.
package sparse

import (
	"iter"
	"math"

	"github.com/melevo/melevo/pkg/assert"
)

const tombstone = -1

// Unsigned is the set of builtin key types that convert to an index directly.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint | ~uintptr
}

// Key is implemented by custom key types. SlotIndex is the position in the sparse array. Two keys
// with the same SlotIndex address the same slot, but only the key stored in the slot is considered
// present; this is how generational keys detect stale handles.
type Key interface {
	comparable
	SlotIndex() uint64
}

// Set is a sparse set of values of type T keyed by K. The zero value is not usable, create sets
// with New or NewKeyed.
//
// Invariant: for every stored key k at dense position i, sparse[index(k)] == i and keys[i] == k.
type Set[K comparable, T any] struct {
	capacity int
	sparse   []int // Slot index -> dense position, tombstone if empty
	dense    []T   // Values, contiguous
	keys     []K   // Keys aligned with dense
	index    func(K) uint64
}

// New creates a set with the given capacity keyed by a builtin unsigned integer type.
func New[K Unsigned, T any](capacity int) *Set[K, T] {
	return newSet[K, T](capacity, func(k K) uint64 { return uint64(k) })
}

// NewKeyed creates a set with the given capacity keyed by a type implementing Key.
func NewKeyed[K Key, T any](capacity int) *Set[K, T] {
	return newSet[K, T](capacity, func(k K) uint64 { return k.SlotIndex() })
}

func newSet[K comparable, T any](capacity int, index func(K) uint64) *Set[K, T] {
	assert.That(capacity >= 0, "negative sparse set capacity %d", capacity)

	sparse := make([]int, capacity)
	for i := range sparse {
		sparse[i] = tombstone
	}
	return &Set[K, T]{
		capacity: capacity,
		sparse:   sparse,
		dense:    make([]T, 0),
		keys:     make([]K, 0),
		index:    index,
	}
}

// validate converts the key to an index and checks it against the capacity.
func (s *Set[K, T]) validate(key K) (int, error) {
	idx := s.index(key)
	if idx > math.MaxInt {
		return 0, &InvalidKeyError{Kind: KeyNotIndexable, Index: idx, Capacity: s.capacity}
	}
	if int(idx) >= s.capacity {
		return 0, &InvalidKeyError{Kind: KeyExceedsCapacity, Index: idx, Capacity: s.capacity}
	}
	return int(idx), nil
}

// lookup returns the dense position of key, or -1 if the slot is empty or holds another key.
func (s *Set[K, T]) lookup(key K) (int, error) {
	idx, err := s.validate(key)
	if err != nil {
		return tombstone, err
	}
	pos := s.sparse[idx]
	if pos == tombstone || s.keys[pos] != key {
		return tombstone, nil
	}
	return pos, nil
}

// Insert stores value under key. If the key's slot is already occupied, the value (and the stored
// key) is replaced and the previous value is returned with replaced set to true.
func (s *Set[K, T]) Insert(key K, value T) (T, bool, error) {
	var prev T

	idx, err := s.validate(key)
	if err != nil {
		return prev, false, err
	}

	if pos := s.sparse[idx]; pos != tombstone {
		prev = s.dense[pos]
		s.dense[pos] = value
		s.keys[pos] = key
		return prev, true, nil
	}

	s.sparse[idx] = len(s.dense)
	s.dense = append(s.dense, value)
	s.keys = append(s.keys, key)
	return prev, false, nil
}

// Get returns a copy of the value stored under key.
func (s *Set[K, T]) Get(key K) (T, bool, error) {
	var zero T
	pos, err := s.lookup(key)
	if err != nil || pos == tombstone {
		return zero, false, err
	}
	return s.dense[pos], true, nil
}

// GetPtr returns a pointer to the value stored under key. The pointer is only valid until the next
// Insert of a new key or Remove, either of which may move values around.
func (s *Set[K, T]) GetPtr(key K) (*T, bool, error) {
	pos, err := s.lookup(key)
	if err != nil || pos == tombstone {
		return nil, false, err
	}
	return &s.dense[pos], true, nil
}

// Contains reports whether key is stored in the set.
func (s *Set[K, T]) Contains(key K) (bool, error) {
	pos, err := s.lookup(key)
	return pos != tombstone, err
}

// Remove deletes key and returns its value. The last element is moved into the removed position.
func (s *Set[K, T]) Remove(key K) (T, bool, error) {
	var zero T

	pos, err := s.lookup(key)
	if err != nil || pos == tombstone {
		return zero, false, err
	}

	removed := s.dense[pos]
	last := len(s.dense) - 1

	// Move the last element into the vacated position and point its slot at the new position.
	// When pos == last this rewrites the removed slot, which is tombstoned right after.
	movedKey := s.keys[last]
	s.dense[pos] = s.dense[last]
	s.keys[pos] = movedKey
	s.sparse[int(s.index(movedKey))] = pos

	s.sparse[int(s.index(key))] = tombstone

	// Clear the tail so the backing arrays don't retain references.
	s.dense[last] = zero
	var zeroKey K
	s.keys[last] = zeroKey
	s.dense = s.dense[:last]
	s.keys = s.keys[:last]

	assert.That(len(s.dense) == len(s.keys), "dense and keys length mismatch")
	return removed, true, nil
}

// Len returns the number of stored values.
func (s *Set[K, T]) Len() int {
	return len(s.dense)
}

// Cap returns the fixed capacity of the set.
func (s *Set[K, T]) Cap() int {
	return s.capacity
}

// Keys returns the stored keys in dense order. The slice is owned by the set and must not be
// modified; it is invalidated by the next Insert of a new key or Remove.
func (s *Set[K, T]) Keys() []K {
	return s.keys
}

// Values returns the stored values in dense order, aligned with Keys. Same ownership rules as Keys.
func (s *Set[K, T]) Values() []T {
	return s.dense
}

// All iterates over key/value pairs in dense order.
func (s *Set[K, T]) All() iter.Seq2[K, T] {
	return func(yield func(K, T) bool) {
		for i := range s.dense {
			if !yield(s.keys[i], s.dense[i]) {
				return
			}
		}
	}
}

// Clear removes every value while keeping the capacity.
func (s *Set[K, T]) Clear() {
	for i := range s.sparse {
		s.sparse[i] = tombstone
	}
	clear(s.dense)
	clear(s.keys)
	s.dense = s.dense[:0]
	s.keys = s.keys[:0]
}
