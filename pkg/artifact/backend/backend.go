// Package backend defines the pluggable blob storage behind the artifact store.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when a document does not exist in the backend.
var ErrNotFound = errors.New("document not found")

// Backend stores artifact documents as opaque blobs keyed by path.
//
// Write must be atomic with respect to readers: an interrupted write may
// lose the new document but must never make a previously saved document
// unreadable or expose a partially written one.
type Backend interface {
	// Type returns the backend identifier (e.g., "local", "s3")
	Type() string

	// Read opens the document at path, or returns ErrNotFound
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write atomically replaces the document at path
	Write(ctx context.Context, path string, data io.Reader) error

	// Delete removes the document at path; deleting a missing document is a no-op
	Delete(ctx context.Context, path string) error

	// List returns the paths of all documents under prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists reports whether a document exists at path
	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a backend.
type Config struct {
	// Type is the registered backend name
	Type string

	// Config carries backend-specific key/value settings
	Config map[string]string
}

// Factory constructs a backend from its configuration.
type Factory func(config map[string]string) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend type available by name. Backends call this
// from init().
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Create instantiates the backend named by config.Type.
func Create(config Config) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[config.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown backend type %q (registered: %s)", config.Type, strings.Join(Registered(), ", "))
	}

	return factory(config.Config)
}

// Registered returns the names of all registered backend types.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
