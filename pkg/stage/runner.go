package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/probe"
)

// RunnerOptions tunes the runner's step-local retry policy.
type RunnerOptions struct {
	// TransientAttempts bounds retries of a step whose action failed
	// with a transient provider error.
	TransientAttempts int

	// TransientInterval is the pause between those retries.
	TransientInterval time.Duration
}

// DefaultRunnerOptions returns the production retry policy.
func DefaultRunnerOptions() RunnerOptions {
	return RunnerOptions{
		TransientAttempts: 3,
		TransientInterval: 5 * time.Second,
	}
}

// Runner executes a stage's steps in order. Each step's completion
// predicate is evaluated first; steps whose effect is already present
// are skipped, which makes a re-run of a completed stage a pure
// read-only no-op.
type Runner struct {
	opts RunnerOptions
}

// NewRunner creates a runner.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.TransientAttempts <= 0 {
		opts.TransientAttempts = 1
	}
	return &Runner{opts: opts}
}

// StepResult records what the runner did with one step.
type StepResult struct {
	Name    string
	Skipped bool
}

// Report summarizes a stage run.
type Report struct {
	Stage string
	Steps []StepResult

	// AlreadyComplete is true when every step was skipped and the
	// outputs artifact already carried the completion flag.
	AlreadyComplete bool
}

// Run executes the stage. On the first step failure it stops, leaving
// the artifact store at the last successfully persisted state, and
// returns an error naming the step. The outputs document, including the
// completion flag, is written only after every step has succeeded.
func (r *Runner) Run(ctx context.Context, rc *RunContext, st *Stage) (*Report, error) {
	report := &Report{Stage: st.Name}
	flag := CompletionFlag(st.Name)
	ranAny := false

	if rc.Discovery == nil {
		rc.Discovery = artifact.Document{}
	}
	if rc.Outputs == nil {
		rc.Outputs = artifact.Document{}
	}

	for _, step := range st.Steps {
		done, err := step.Complete(ctx, rc)
		if err != nil {
			return report, r.stepError(step.Name, err)
		}
		if done {
			rc.Log.Info().Str("stage", st.Name).Str("step", step.Name).Msg("already complete, skipping")
			report.Steps = append(report.Steps, StepResult{Name: step.Name, Skipped: true})
			continue
		}

		rc.Log.Info().Str("stage", st.Name).Str("step", step.Name).Msg("running step")
		err = probe.RetryTransient(ctx, r.opts.TransientAttempts, r.opts.TransientInterval, func(ctx context.Context) error {
			return step.Run(ctx, rc)
		})
		if err != nil {
			return report, r.stepError(step.Name, err)
		}

		ranAny = true
		report.Steps = append(report.Steps, StepResult{Name: step.Name})

		// Persist intermediate results after each step so an interrupt
		// resumes from exactly here. The outputs document is withheld
		// until the whole stage succeeds.
		if err := rc.Store.Save(ctx, st.Name, artifact.KindDiscovery, rc.Discovery); err != nil {
			return report, r.stepError(step.Name, err)
		}
	}

	if !ranAny && rc.Outputs.Bool(flag) {
		report.AlreadyComplete = true
		rc.Log.Info().Str("stage", st.Name).Msg("stage already complete")
		return report, nil
	}

	rc.Outputs[flag] = true
	if err := rc.Store.Save(ctx, st.Name, artifact.KindOutputs, rc.Outputs); err != nil {
		return report, errors.Wrap(errors.CodeOf(err), fmt.Sprintf("stage %s succeeded but persisting outputs failed", st.Name), err)
	}

	rc.Log.Info().Str("stage", st.Name).Str("flag", flag).Msg("stage complete")
	return report, nil
}

// Status evaluates every step's completion predicate without running
// anything.
func (r *Runner) Status(ctx context.Context, rc *RunContext, st *Stage) ([]StepResult, error) {
	results := make([]StepResult, 0, len(st.Steps))
	for _, step := range st.Steps {
		done, err := step.Complete(ctx, rc)
		if err != nil {
			return results, r.stepError(step.Name, err)
		}
		results = append(results, StepResult{Name: step.Name, Skipped: done})
	}
	return results, nil
}

// stepError wraps a step failure so the operator sees the step name,
// the classification, and its remediation.
func (r *Runner) stepError(stepName string, err error) error {
	code := errors.CodeOf(err)
	wrapped := errors.Wrap(code, fmt.Sprintf("step %q failed", stepName), err)
	return wrapped.WithDetail("step", stepName).WithDetail("remediation", errors.Remediation(err))
}
