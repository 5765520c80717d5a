package stage

import (
	"context"
	"fmt"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/errors"
)

// Resolver loads prerequisite stage outputs and gates on their
// completion flags. Every cross-stage field access goes through
// Require so a missing field fails with its name, not a nil
// dereference three steps later.
type Resolver struct {
	store *artifact.Store
}

// NewResolver creates a resolver over the given artifact store.
func NewResolver(store *artifact.Store) *Resolver {
	return &Resolver{store: store}
}

// Require loads the named stage's outputs document, verifies its
// completion flag is true, and verifies every named field is present.
// Any miss fails with PREREQUISITE_NOT_MET.
func (r *Resolver) Require(ctx context.Context, stageName string, fields ...string) (artifact.Document, error) {
	doc, err := r.store.Load(ctx, stageName, artifact.KindOutputs)
	if err != nil {
		if artifact.IsNotFound(err) {
			return nil, errors.PrerequisiteNotMet(stageName,
				fmt.Sprintf("no outputs artifact found; run `stagectl deploy %s` first", stageName))
		}
		return nil, err
	}

	flag := CompletionFlag(stageName)
	if !doc.Bool(flag) {
		return nil, errors.PrerequisiteNotMet(stageName,
			fmt.Sprintf("outputs field %q is false or missing; stage %s has not completed", flag, stageName))
	}

	for _, field := range fields {
		if _, ok := doc.Field(field); !ok {
			return nil, errors.MissingField(stageName, field)
		}
	}
	return doc, nil
}

// Resolve runs Require for every prerequisite of the given stage and
// stores the results on the run context. Field requirements come from
// the requirements map, keyed by prerequisite stage name; prerequisites
// not in the map are still gated on their completion flag.
func (r *Resolver) Resolve(ctx context.Context, rc *RunContext, requirements map[string][]string) error {
	for _, prior := range Pipeline {
		if prior == rc.Stage {
			break
		}
		doc, err := r.Require(ctx, prior, requirements[prior]...)
		if err != nil {
			return err
		}
		rc.Deps[prior] = doc
	}
	return nil
}
