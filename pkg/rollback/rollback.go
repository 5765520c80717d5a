// Package rollback unwinds a stage's effects in dependency-safe order:
// dependent wiring is detached (and its propagation waited on) before
// any primary resource is deleted, stack resources are torn down in
// bulk afterwards, and the stage's artifacts are removed last.
// Cross-account validation records are never deleted.
package rollback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/probe"
)

// Mode selects how much of a stage to unwind.
type Mode string

const (
	// ModeFull removes provider resources and local artifacts.
	ModeFull Mode = "full"

	// ModeResourcesOnly removes provider resources but keeps the
	// artifact documents for inspection.
	ModeResourcesOnly Mode = "resources-only"

	// ModeDataOnly removes the artifact documents and touches nothing
	// in the provider.
	ModeDataOnly Mode = "data-only"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeFull:
		return ModeFull, nil
	case ModeResourcesOnly:
		return ModeResourcesOnly, nil
	case ModeDataOnly:
		return ModeDataOnly, nil
	default:
		return "", errors.ValidationError(
			fmt.Sprintf("unknown rollback mode %q (expected full, resources-only, or data-only)", s),
			map[string]interface{}{"mode": s},
		)
	}
}

// Action is one named rollback operation. Detach actions poll their own
// propagation before returning; delete actions are retried by the
// coordinator when the provider reports the resource still in use.
type Action struct {
	Name string
	Run  func(ctx context.Context) error
}

// Plan is the ordered unwinding of one stage. Phases execute strictly
// in field order: Detach, Delete, Teardown, then artifact removal.
type Plan struct {
	// Stage names the stage being unwound.
	Stage string

	// Detach reverts dependent wiring that references resources about
	// to be deleted.
	Detach []Action

	// Delete removes primary resources once nothing references them.
	Delete []Action

	// Teardown removes declarative stacks as bulk operations.
	Teardown []Action

	// Retained names resources that are deliberately left in place,
	// such as DNS validation records in the target account.
	Retained []string

	// Fallback is an earlier stage's plan to delegate to when this
	// plan cannot complete.
	Fallback *Plan
}

// Describe renders the ordered action list for a dry run.
func (p *Plan) Describe(mode Mode) []string {
	var lines []string
	if mode != ModeDataOnly {
		for _, a := range p.Detach {
			lines = append(lines, fmt.Sprintf("detach   %s", a.Name))
		}
		for _, a := range p.Delete {
			lines = append(lines, fmt.Sprintf("delete   %s", a.Name))
		}
		for _, a := range p.Teardown {
			lines = append(lines, fmt.Sprintf("teardown %s", a.Name))
		}
	}
	if mode != ModeResourcesOnly {
		lines = append(lines, fmt.Sprintf("remove   artifacts for stage %s", p.Stage))
	}
	for _, name := range p.Retained {
		lines = append(lines, fmt.Sprintf("retain   %s", name))
	}
	return lines
}

// Options tunes the coordinator's in-use retry policy.
type Options struct {
	// InUseAttempts bounds retries of a delete that failed because the
	// resource is still referenced.
	InUseAttempts int

	// InUseInterval is the pause between those retries, long enough
	// for a detach to propagate.
	InUseInterval time.Duration
}

// DefaultOptions returns the production retry policy.
func DefaultOptions() Options {
	return Options{
		InUseAttempts: 6,
		InUseInterval: 20 * time.Second,
	}
}

// Coordinator executes rollback plans.
type Coordinator struct {
	store *artifact.Store
	opts  Options
	log   zerolog.Logger
}

// NewCoordinator creates a coordinator over the given artifact store.
func NewCoordinator(store *artifact.Store, opts Options, log zerolog.Logger) *Coordinator {
	if opts.InUseAttempts <= 0 {
		opts.InUseAttempts = 1
	}
	return &Coordinator{store: store, opts: opts, log: log}
}

// Result reports what a rollback did.
type Result struct {
	// Executed lists completed actions in execution order.
	Executed []string

	// FellBackTo is the stage whose plan was delegated to, if any.
	FellBackTo string
}

// Run executes the plan. If the plan's resource phases fail
// irrecoverably and an earlier stage's fallback plan is attached, the
// coordinator delegates to it so the environment still reaches a
// consistent terminal state.
func (c *Coordinator) Run(ctx context.Context, plan *Plan, mode Mode) (*Result, error) {
	result := &Result{}
	err := c.execute(ctx, plan, mode, result)
	if err == nil {
		return result, nil
	}
	if plan.Fallback == nil {
		return result, err
	}

	c.log.Warn().
		Str("stage", plan.Stage).
		Str("fallbackStage", plan.Fallback.Stage).
		Err(err).
		Msg("rollback failed, delegating to earlier stage")

	result.FellBackTo = plan.Fallback.Stage
	if ferr := c.execute(ctx, plan.Fallback, mode, result); ferr != nil {
		return result, errors.Wrap(errors.CodeOf(ferr),
			fmt.Sprintf("rollback of stage %s failed and fallback to stage %s also failed", plan.Stage, plan.Fallback.Stage),
			ferr)
	}
	return result, err
}

func (c *Coordinator) execute(ctx context.Context, plan *Plan, mode Mode, result *Result) error {
	if mode != ModeDataOnly {
		if err := c.resources(ctx, plan, result); err != nil {
			return err
		}
	}

	if mode != ModeResourcesOnly {
		c.log.Info().Str("stage", plan.Stage).Msg("removing stage artifacts")
		if err := c.store.DeleteStage(ctx, plan.Stage); err != nil {
			return err
		}
		result.Executed = append(result.Executed, fmt.Sprintf("remove artifacts %s", plan.Stage))
	}

	for _, name := range plan.Retained {
		c.log.Info().Str("stage", plan.Stage).Str("resource", name).Msg("retaining resource")
	}
	return nil
}

func (c *Coordinator) resources(ctx context.Context, plan *Plan, result *Result) error {
	// Dependent wiring first. Each detach waits on its own propagation,
	// so by the time deletes run the references are gone or on their
	// way out.
	for _, action := range plan.Detach {
		c.log.Info().Str("stage", plan.Stage).Str("action", action.Name).Msg("detaching")
		if err := action.Run(ctx); err != nil {
			return errors.Wrap(errors.CodeOf(err), fmt.Sprintf("detach %q failed", action.Name), err)
		}
		result.Executed = append(result.Executed, "detach "+action.Name)
	}

	for _, action := range plan.Delete {
		c.log.Info().Str("stage", plan.Stage).Str("action", action.Name).Msg("deleting")
		err := probe.RetryWhile(ctx, c.opts.InUseAttempts, c.opts.InUseInterval, func(err error) bool {
			return errors.Is(err, errors.ErrCodeResourceStillInUse)
		}, action.Run)
		if err != nil {
			return errors.Wrap(errors.CodeOf(err), fmt.Sprintf("delete %q failed", action.Name), err)
		}
		result.Executed = append(result.Executed, "delete "+action.Name)
	}

	for _, action := range plan.Teardown {
		c.log.Info().Str("stage", plan.Stage).Str("action", action.Name).Msg("tearing down stack")
		if err := action.Run(ctx); err != nil {
			return errors.Wrap(errors.CodeOf(err), fmt.Sprintf("teardown %q failed", action.Name), err)
		}
		result.Executed = append(result.Executed, "teardown "+action.Name)
	}
	return nil
}
