package sparse

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrInvalidKey is matched (via errors.Is) by every error returned from a Set operation.
var ErrInvalidKey = eris.New("invalid key")

// InvalidKeyKind describes why a key was rejected.
type InvalidKeyKind uint8

const (
	// KeyExceedsCapacity means the key's index is not below the set's capacity.
	KeyExceedsCapacity InvalidKeyKind = iota + 1
	// KeyNotIndexable means the key's index cannot be represented as an int on this platform.
	KeyNotIndexable
)

func (k InvalidKeyKind) String() string {
	switch k {
	case KeyExceedsCapacity:
		return "key exceeds capacity"
	case KeyNotIndexable:
		return "key not indexable"
	default:
		return fmt.Sprintf("InvalidKeyKind(%d)", uint8(k))
	}
}

// InvalidKeyError is returned when a key fails validation. The set is never modified when this
// error is returned. It is a plain struct instead of an eris error because key validation sits on
// the hot path and capturing a stack trace per lookup is too expensive.
type InvalidKeyError struct {
	Kind     InvalidKeyKind
	Index    uint64 // The index the key converted to
	Capacity int    // The capacity of the set that rejected the key
}

func (e *InvalidKeyError) Error() string {
	if e.Kind == KeyExceedsCapacity {
		return fmt.Sprintf("invalid key: index %d is not below capacity %d", e.Index, e.Capacity)
	}
	return fmt.Sprintf("invalid key: index %d cannot be used as a slice index", e.Index)
}

// Is makes errors.Is(err, ErrInvalidKey) hold for every InvalidKeyError.
func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey //nolint:errorlint // sentinel identity is intended
}
