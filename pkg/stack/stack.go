// Package stack abstracts the declarative template engine that
// provisions a stage's bulk resources. The orchestrator hands it a
// context map and consumes its structured outputs; the template bodies
// themselves are data, owned elsewhere.
package stack

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/launchpath/stagectl/pkg/creds"
)

// Engine deploys and tears down declarative stacks.
type Engine interface {
	// Name returns the engine identifier (e.g., "cloudformation")
	Name() string

	// Deploy creates or updates a stack and blocks until it converges.
	// A deploy of an unchanged stack is a successful no-op.
	Deploy(ctx context.Context, cred *creds.Context, opts DeployOptions) (*DeployResult, error)

	// Outputs returns the structured outputs of a converged stack.
	Outputs(ctx context.Context, cred *creds.Context, stackName string) (map[string]string, error)

	// Exists reports whether the named stack is present.
	Exists(ctx context.Context, cred *creds.Context, stackName string) (bool, error)

	// Delete tears the stack down as a bulk operation and blocks until
	// it is gone. Deleting a missing stack is a no-op.
	Delete(ctx context.Context, cred *creds.Context, stackName string) error
}

// DeployOptions configures one stack deployment.
type DeployOptions struct {
	// StackName is the stack's unique name within the account/region.
	StackName string

	// TemplateBody is the full declarative template document.
	TemplateBody string

	// Parameters are the template's input values.
	Parameters map[string]string

	// Tags are applied to the stack and propagated to its resources.
	Tags map[string]string

	// PollInterval and MaxAttempts bound the convergence wait.
	PollInterval time.Duration
	MaxAttempts  int
}

// DeployResult reports a completed deployment.
type DeployResult struct {
	// Outputs are the stack's structured outputs after convergence.
	Outputs map[string]string

	// Changed is false when the deploy was a no-op.
	Changed bool
}

// Factory constructs an engine.
type Factory func() Engine

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes an engine available by name. Engines call this from
// init().
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Create instantiates the named engine.
func Create(name string) (Engine, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown stack engine %q (registered: %v)", name, Registered())
	}
	return factory(), nil
}

// Registered returns the names of all registered engines.
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
