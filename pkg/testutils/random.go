package testutils

import (
	"cmp"
	"fmt"
	"maps"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"testing"
	"time"
)

// Seed drives every PRNG returned by NewRand. Set TEST_SEED (decimal or 0x hex) to replay a run.
var Seed uint64 //nolint:gochecknoglobals // intentionally global for test reproducibility

func init() { //nolint:gochecknoinits // intentionally using init to set seed
	Seed = uint64(time.Now().UnixNano()) //nolint:gosec // overflow is acceptable for test seeds
	if envSeed := os.Getenv("TEST_SEED"); envSeed != "" {
		if parsed, err := strconv.ParseUint(envSeed, 0, 64); err == nil {
			Seed = parsed
		}
	}
}

// NewRand returns a PRNG seeded from Seed and logs the seed on the test.
func NewRand(t *testing.T) *rand.Rand {
	t.Helper()
	t.Logf("to reproduce: TEST_SEED=0x%x", Seed)
	return rand.New(rand.NewPCG(Seed, Seed)) //nolint:gosec // weak RNG is fine for tests
}

// RandKey returns a random key of a non-empty map. Keys are sorted before picking so the result
// only depends on the PRNG, not on map iteration order.
func RandKey[K cmp.Ordered, V any](r *rand.Rand, m map[K]V) K {
	return RandKeyFunc(r, m, cmp.Compare[K])
}

// RandKeyFunc is RandKey for keys ordered by compare.
func RandKeyFunc[K comparable, V any](r *rand.Rand, m map[K]V, compare func(a, b K) int) K {
	if len(m) == 0 {
		panic("testutils: random key of an empty map")
	}
	keys := slices.SortedFunc(maps.Keys(m), compare)
	return keys[r.IntN(len(keys))]
}

// Weight pairs an operation with its relative frequency.
type Weight[T comparable] struct {
	Op     T
	Weight int
}

// Weighted is shorthand for a Weight literal.
func Weighted[T comparable](op T, weight int) Weight[T] {
	return Weight[T]{Op: op, Weight: weight}
}

// OpTable picks operations at random in proportion to their weights.
type OpTable[T comparable] struct {
	ops        []T
	cumulative []int // cumulative[i] is the sum of the weights of ops[0..i]
}

// NewOpTable builds a table. Panics if an op appears twice or a weight isn't positive, since
// either would silently skew the distribution.
func NewOpTable[T comparable](weights ...Weight[T]) *OpTable[T] {
	t := &OpTable[T]{}
	total := 0
	for _, w := range weights {
		if w.Weight <= 0 {
			panic(fmt.Sprintf("testutils: op %v has weight %d", w.Op, w.Weight))
		}
		if slices.Contains(t.ops, w.Op) {
			panic(fmt.Sprintf("testutils: op %v listed twice", w.Op))
		}
		total += w.Weight
		t.ops = append(t.ops, w.Op)
		t.cumulative = append(t.cumulative, total)
	}
	if total == 0 {
		panic("testutils: empty op table")
	}
	return t
}

// Pick returns a random op.
func (t *OpTable[T]) Pick(r *rand.Rand) T {
	n := r.IntN(t.cumulative[len(t.cumulative)-1])
	i, _ := slices.BinarySearch(t.cumulative, n+1)
	return t.ops[i]
}
