// Package storage writes files so that readers never observe partial content.
package storage

// Provider is the interface for files kept under a single root directory.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Resolve maps a path relative to the root to an absolute path,
	// rejecting anything that escapes the root.
	Resolve(rel string) (string, error)
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
