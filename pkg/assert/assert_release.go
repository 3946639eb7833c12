//go:build release

package assert

// That is a no-op in release builds.
func That(bool, string, ...any) {}
