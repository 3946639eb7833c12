//go:build !release

// Package assert checks internal invariants. A failed check means a bug in this module, never a
// caller mistake, so it panics instead of returning an error. Release builds compile it out.
package assert

import "fmt"

// That panics with the formatted message if cond is false.
func That(cond bool, format string, args ...any) { //nolint:goprintffuncname // it's ok
	if !cond {
		panic("assertion failed: " + fmt.Sprintf(format, args...))
	}
}
