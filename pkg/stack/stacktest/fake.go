// Package stacktest provides an in-memory stack engine for tests.
package stacktest

import (
	"context"
	"fmt"
	"sync"

	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/stack"
)

// Fake is an in-memory stack.Engine. Outputs are scripted per stack
// name; deploys and deletes are recorded for assertion.
type Fake struct {
	mu sync.Mutex

	deployed map[string]map[string]string
	outputs  map[string]map[string]string
	failures map[string]error

	// Calls records every mutating engine call as "Op stackName".
	Calls []string

	// Deploys counts Deploy calls that actually changed a stack.
	Deploys int
}

// NewFake creates an empty fake engine.
func NewFake() *Fake {
	return &Fake{
		deployed: make(map[string]map[string]string),
		outputs:  make(map[string]map[string]string),
		failures: make(map[string]error),
	}
}

var _ stack.Engine = (*Fake)(nil)

// SetOutputs scripts the outputs the named stack will report once
// deployed.
func (f *Fake) SetOutputs(stackName string, outputs map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[stackName] = outputs
}

// SeedDeployed marks a stack as already deployed, as if a previous run
// created it.
func (f *Fake) SeedDeployed(stackName string, outputs map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployed[stackName] = outputs
	f.outputs[stackName] = outputs
}

// FailDeploy makes the next Deploy of the named stack return err.
func (f *Fake) FailDeploy(stackName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[stackName] = err
}

func (f *Fake) Name() string {
	return "fake"
}

func (f *Fake) Deploy(ctx context.Context, cred *creds.Context, opts stack.DeployOptions) (*stack.DeployResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failures[opts.StackName]; ok {
		delete(f.failures, opts.StackName)
		return nil, err
	}

	outputs, ok := f.outputs[opts.StackName]
	if !ok {
		outputs = map[string]string{}
	}

	if existing, deployed := f.deployed[opts.StackName]; deployed {
		return &stack.DeployResult{Outputs: existing, Changed: false}, nil
	}

	f.Calls = append(f.Calls, fmt.Sprintf("Deploy %s", opts.StackName))
	f.Deploys++
	f.deployed[opts.StackName] = outputs
	return &stack.DeployResult{Outputs: outputs, Changed: true}, nil
}

func (f *Fake) Outputs(ctx context.Context, cred *creds.Context, stackName string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	outputs, ok := f.deployed[stackName]
	if !ok {
		return nil, errors.NotFoundError("stack", stackName)
	}
	return outputs, nil
}

func (f *Fake) Exists(ctx context.Context, cred *creds.Context, stackName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.deployed[stackName]
	return ok, nil
}

func (f *Fake) Delete(ctx context.Context, cred *creds.Context, stackName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failures[stackName]; ok {
		delete(f.failures, stackName)
		return err
	}

	if _, ok := f.deployed[stackName]; !ok {
		return nil
	}
	f.Calls = append(f.Calls, fmt.Sprintf("Delete %s", stackName))
	delete(f.deployed, stackName)
	return nil
}
