package ecs

import (
	"cmp"
	"fmt"
	"math"
	"sync"

	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
)

// MaxEntityID is the largest entity ID that can be allocated. Liveness is tracked in a bitmap
// indexed by uint32.
const MaxEntityID = math.MaxUint32 - 1

// Entity is a handle to a bundle of components. It pairs a slot ID with the generation of that slot
// at the time the handle was issued. An entity is valid iff it is alive and its version equals the
// slot's current generation, so a handle kept past DestroyEntity never aliases the slot's next
// occupant.
type Entity struct {
	id      uint64
	version uint64
}

// ID returns the entity's slot ID.
func (e Entity) ID() uint64 { return e.id }

// Version returns the generation of the entity's slot when the handle was issued.
func (e Entity) Version() uint64 { return e.version }

// SlotIndex returns the entity's index in component pools. The version doesn't take part in
// addressing, so pools key their sparse sets with the whole Entity to detect stale handles.
func (e Entity) SlotIndex() uint64 { return e.id }

// Compare orders entities by ID, then version.
func (e Entity) Compare(other Entity) int {
	if c := cmp.Compare(e.id, other.id); c != 0 {
		return c
	}
	return cmp.Compare(e.version, other.version)
}

func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.id, e.version)
}

// entityManager allocates entity IDs and tracks which handles are still valid. Destroyed IDs are
// reused in FIFO order with their generation bumped.
type entityManager struct {
	nextID   uint64        // The next ID to allocate if no free IDs are available
	free     []uint64      // A queue of free IDs
	versions []uint64      // Slot ID -> current generation
	alive    bitmap.Bitmap // Set of live slot IDs
	count    int           // Number of live entities
	mu       sync.Mutex
}

func newEntityManager() entityManager {
	return entityManager{
		nextID:   0,
		free:     make([]uint64, 0),
		versions: make([]uint64, 0),
	}
}

// new allocates an entity, reusing a destroyed slot if one is available.
func (em *entityManager) new() Entity {
	em.mu.Lock()
	defer em.mu.Unlock()

	var id uint64
	if len(em.free) > 0 {
		id = em.free[0]
		em.free = em.free[1:]
	} else {
		id = em.nextID
		if id > MaxEntityID {
			panic(eris.Errorf("max number of entities (%d) exceeded", uint64(MaxEntityID)+1))
		}
		em.nextID++
		em.versions = append(em.versions, 0)
	}

	em.alive.Set(uint32(id))
	em.count++
	return Entity{id: id, version: em.versions[id]}
}

// remove invalidates the entity and queues its slot for reuse under the next generation.
func (em *entityManager) remove(e Entity) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if !em.isAliveLocked(e) {
		return eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}

	em.alive.Remove(uint32(e.id))
	em.versions[e.id]++
	em.free = append(em.free, e.id)
	em.count--
	return nil
}

func (em *entityManager) isAlive(e Entity) bool {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.isAliveLocked(e)
}

func (em *entityManager) isAliveLocked(e Entity) bool {
	if e.id >= uint64(len(em.versions)) {
		return false
	}
	return em.alive.Contains(uint32(e.id)) && em.versions[e.id] == e.version
}

// all returns the live entities ordered by ID.
func (em *entityManager) all() []Entity {
	em.mu.Lock()
	defer em.mu.Unlock()

	entities := make([]Entity, 0, em.count)
	em.alive.Range(func(id uint32) {
		entities = append(entities, Entity{id: uint64(id), version: em.versions[id]})
	})
	return entities
}

func (em *entityManager) len() int {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.count
}
