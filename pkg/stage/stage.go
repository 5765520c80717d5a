// Package stage contains the deployment orchestrator: the ordered stage
// pipeline, the step runner with idempotent skip, and the dependency
// resolver that gates each stage on its predecessor's readiness flag.
package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/provider"
	"github.com/launchpath/stagectl/pkg/stack"
)

// Pipeline is the fixed stage order. Stages run strictly in this
// sequence; each consumes the previous stage's outputs artifact.
var Pipeline = []string{"app", "edge", "release"}

// aliases maps single-letter stage names to their pipeline names.
var aliases = map[string]string{
	"a": "app",
	"b": "edge",
	"c": "release",
}

// Normalize resolves a stage name or single-letter alias to its
// canonical pipeline name.
func Normalize(name string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[lower]; ok {
		lower = canonical
	}
	for _, s := range Pipeline {
		if s == lower {
			return s, nil
		}
	}
	return "", errors.ValidationError(
		fmt.Sprintf("unknown stage %q (expected one of %s)", name, strings.Join(Pipeline, ", ")),
		map[string]interface{}{"stage": name},
	)
}

// Next returns the stage after the given one, or "" for the last stage.
func Next(stage string) string {
	for i, s := range Pipeline {
		if s == stage && i+1 < len(Pipeline) {
			return Pipeline[i+1]
		}
	}
	return ""
}

// Previous returns the stage before the given one, or "" for the first.
func Previous(stage string) string {
	for i, s := range Pipeline {
		if s == stage && i > 0 {
			return Pipeline[i-1]
		}
	}
	return ""
}

// CompletionFlag returns the boolean field a stage's outputs document
// carries to signal completion: the next stage's readiness flag, or
// "complete" for the final stage.
func CompletionFlag(stage string) string {
	next := Next(stage)
	if next == "" {
		return "complete"
	}
	return artifact.ReadinessFlag(next)
}

// Step is one idempotent unit of work within a stage. Steps are
// immutable definitions; only their completion status, derived from
// artifacts and the live environment, changes between runs.
type Step struct {
	// Name identifies the step in logs and failure messages.
	Name string

	// Complete reports whether the step's effect is already present.
	// It must not mutate anything.
	Complete func(ctx context.Context, rc *RunContext) (bool, error)

	// Run performs the step's effect. It may record results on the
	// RunContext's discovery and outputs documents.
	Run func(ctx context.Context, rc *RunContext) error
}

// Stage is a fixed ordered list of steps plus the metadata the runner
// needs to persist its results.
type Stage struct {
	// Name is the canonical pipeline name.
	Name string

	// Summary is a one-line description for command help and logs.
	Summary string

	// Steps run strictly in order.
	Steps []Step
}

// RunContext carries everything a step needs: the artifact store, the
// provisioning API, the stack engine, and both credential contexts.
// Steps read Inputs and Deps, and write Discovery and Outputs; the
// runner persists those documents.
type RunContext struct {
	Stage  string
	Prefix string

	Store    *artifact.Store
	Provider provider.API
	Engine   stack.Engine

	// Infra and Target are the two account contexts. Steps pick the one
	// each call belongs to; nothing here is ambient.
	Infra  *creds.Context
	Target *creds.Context

	Inputs    artifact.Document
	Discovery artifact.Document
	Outputs   artifact.Document

	// Deps holds the resolved outputs of prerequisite stages, keyed by
	// stage name.
	Deps map[string]artifact.Document

	// Confirm obtains operator confirmation for a destructive or
	// conflicting action. A nil Confirm denies everything.
	Confirm func(prompt string) (bool, error)

	Log zerolog.Logger
}

// NewRunContext loads the stage's three artifact documents. A missing
// document is an empty one: inputs may legitimately be absent on a
// fresh run, and discovery/outputs absence just means no step has
// persisted anything yet.
func NewRunContext(ctx context.Context, store *artifact.Store, stageName string) (*RunContext, error) {
	rc := &RunContext{
		Stage: stageName,
		Store: store,
		Deps:  make(map[string]artifact.Document),
		Log:   zerolog.Nop(),
	}

	for _, kind := range artifact.Kinds {
		doc, err := store.Load(ctx, stageName, kind)
		if err != nil {
			if artifact.IsNotFound(err) {
				doc = artifact.Document{}
			} else {
				return nil, err
			}
		}
		switch kind {
		case artifact.KindInputs:
			rc.Inputs = doc
		case artifact.KindDiscovery:
			rc.Discovery = doc
		case artifact.KindOutputs:
			rc.Outputs = doc
		}
	}
	return rc, nil
}

// Dep returns a resolved prerequisite's outputs document.
func (rc *RunContext) Dep(stage string) artifact.Document {
	if doc, ok := rc.Deps[stage]; ok {
		return doc
	}
	return artifact.Document{}
}

// ConfirmOrAbort asks the operator for confirmation and converts a
// refusal into a conflict error.
func (rc *RunContext) ConfirmOrAbort(prompt string, count int) error {
	if rc.Confirm == nil {
		return errors.ConflictDetected(rc.Prefix, count)
	}
	ok, err := rc.Confirm(prompt)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ConflictDetected(rc.Prefix, count)
	}
	return nil
}
