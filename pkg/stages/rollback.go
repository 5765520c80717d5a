package stages

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/names"
	"github.com/launchpath/stagectl/pkg/probe"
	"github.com/launchpath/stagectl/pkg/provider"
	"github.com/launchpath/stagectl/pkg/rollback"
	"github.com/launchpath/stagectl/pkg/stack"
	"github.com/launchpath/stagectl/pkg/stage"
)

// PlanDeps carries the collaborators rollback plans close over.
type PlanDeps struct {
	Store    *artifact.Store
	Provider provider.API
	Engine   stack.Engine
	Infra    *creds.Context
	Target   *creds.Context
	Prefix   string
	Opts     Options
	Log      zerolog.Logger
}

// BuildRollbackPlan assembles the ordered unwinding of one stage from
// its persisted artifacts. Each plan carries the previous stage's plan
// as its fallback, so a rollback that cannot complete can still drive
// the environment to a consistent terminal state.
func BuildRollbackPlan(ctx context.Context, d PlanDeps, stageName string) (*rollback.Plan, error) {
	var plan *rollback.Plan
	var err error
	switch stageName {
	case "app":
		plan, err = appPlan(ctx, d)
	case "edge":
		plan, err = edgePlan(ctx, d)
	case "release":
		plan, err = releasePlan(ctx, d)
	default:
		return nil, errors.ValidationError(fmt.Sprintf("no rollback plan for stage %q", stageName), nil)
	}
	if err != nil {
		return nil, err
	}

	if prev := stage.Previous(stageName); prev != "" {
		fallback, err := BuildRollbackPlan(ctx, d, prev)
		if err != nil {
			return nil, err
		}
		plan.Fallback = fallback
	}
	return plan, nil
}

func appPlan(ctx context.Context, d PlanDeps) (*rollback.Plan, error) {
	discovery, err := loadOrEmpty(ctx, d.Store, "app", artifact.KindDiscovery)
	if err != nil {
		return nil, err
	}

	stackName := discovery.String("stackName")
	if stackName == "" {
		stackName = names.Stack(d.Prefix, "app")
	}

	return &rollback.Plan{
		Stage: "app",
		Teardown: []rollback.Action{{
			Name: "stack " + stackName,
			Run: func(ctx context.Context) error {
				return d.Engine.Delete(ctx, d.Infra, stackName)
			},
		}},
	}, nil
}

func edgePlan(ctx context.Context, d PlanDeps) (*rollback.Plan, error) {
	discovery, err := loadOrEmpty(ctx, d.Store, "edge", artifact.KindDiscovery)
	if err != nil {
		return nil, err
	}

	plan := &rollback.Plan{Stage: "edge"}

	// The certificate must be detached from the distribution before it
	// can be deleted, and the detach has to finish propagating or the
	// delete keeps failing as in-use.
	distributionID, err := appDistributionID(ctx, d)
	if err != nil {
		return nil, err
	}
	if distributionID != "" && discovery.Bool("certificateAttached") {
		plan.Detach = append(plan.Detach, rollback.Action{
			Name: fmt.Sprintf("certificate from distribution %s", distributionID),
			Run: func(ctx context.Context) error {
				handle := provider.Handle{Kind: provider.KindDistribution, ID: distributionID}
				if _, err := d.Provider.Update(ctx, d.Infra, handle, map[string]string{
					provider.AttrCertificateArn: "",
					provider.AttrAliases:        "",
				}); err != nil {
					return err
				}

				result, err := probe.WaitFor(ctx, func(ctx context.Context) (provider.Status, error) {
					res, err := d.Provider.Describe(ctx, d.Infra, handle)
					if err != nil {
						return "", err
					}
					return res.Status, nil
				}, []provider.Status{provider.DistributionDeployed}, nil, d.Opts.poll(d.Log, distributionPoll))
				if err != nil {
					return err
				}
				if result.TimedOut {
					return errors.ConvergencePending(fmt.Sprintf("distribution %s detach", distributionID))
				}
				return nil
			},
		})
	}

	if arn := discovery.String("certificateArn"); arn != "" {
		plan.Delete = append(plan.Delete, rollback.Action{
			Name: "certificate " + arn,
			Run: func(ctx context.Context) error {
				return d.Provider.Delete(ctx, d.Infra, provider.Handle{
					Kind: provider.KindCertificate,
					ID:   arn,
				})
			},
		})
	}

	// Validation records in the target zone are kept on purpose: they
	// stay valid for future certificate requests on the same domain and
	// deleting them would break a concurrent reissue.
	for _, name := range stringSlice(discovery, "validationRecordNames") {
		plan.Retained = append(plan.Retained, "validation record "+name)
	}

	return plan, nil
}

func releasePlan(ctx context.Context, d PlanDeps) (*rollback.Plan, error) {
	discovery, err := loadOrEmpty(ctx, d.Store, "release", artifact.KindDiscovery)
	if err != nil {
		return nil, err
	}

	plan := &rollback.Plan{Stage: "release"}
	if id := discovery.String("aliasRecordId"); id != "" {
		plan.Delete = append(plan.Delete, rollback.Action{
			Name: "alias record " + id,
			Run: func(ctx context.Context) error {
				return d.Provider.Delete(ctx, d.Target, provider.Handle{
					Kind: provider.KindRecordSet,
					ID:   id,
				})
			},
		})
	}
	return plan, nil
}

// appDistributionID resolves the distribution the app stage created,
// preferring published outputs over partial-run discovery.
func appDistributionID(ctx context.Context, d PlanDeps) (string, error) {
	outputs, err := loadOrEmpty(ctx, d.Store, "app", artifact.KindOutputs)
	if err != nil {
		return "", err
	}
	if id := outputs.String("distributionId"); id != "" {
		return id, nil
	}
	discovery, err := loadOrEmpty(ctx, d.Store, "app", artifact.KindDiscovery)
	if err != nil {
		return "", err
	}
	return discovery.String("distributionId"), nil
}

func loadOrEmpty(ctx context.Context, store *artifact.Store, stageName string, kind artifact.Kind) (artifact.Document, error) {
	doc, err := store.Load(ctx, stageName, kind)
	if err != nil {
		if artifact.IsNotFound(err) {
			return artifact.Document{}, nil
		}
		return nil, err
	}
	return doc, nil
}

func stringSlice(doc artifact.Document, path string) []string {
	raw, ok := doc.Field(path)
	if !ok {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
