package stages

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/launchpath/stagectl/pkg/conflict"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/names"
	"github.com/launchpath/stagectl/pkg/probe"
	"github.com/launchpath/stagectl/pkg/provider"
	"github.com/launchpath/stagectl/pkg/stack"
	"github.com/launchpath/stagectl/pkg/stage"
)

//go:embed templates/app.yaml
var appTemplate string

var distributionPoll = probe.Options{Interval: 15 * time.Second, MaxAttempts: 60}

// App provisions the serverless application foundation: bucket,
// distribution, function, role, and log sink, all through one
// declarative stack.
func App(opts Options) *stage.Stage {
	return &stage.Stage{
		Name:    "app",
		Summary: "deploy the serverless application stack",
		Steps: []stage.Step{
			{
				Name: "discover-environment",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.String("infraAccountId") != "", nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					rc.Discovery["infraAccountId"] = rc.Infra.AccountID
					rc.Discovery["targetAccountId"] = rc.Target.AccountID
					rc.Discovery["region"] = rc.Infra.Region
					return nil
				},
			},
			{
				Name: "check-name-conflicts",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.Bool("conflictsCleared"), nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					detector := conflict.NewDetector(rc.Provider)
					matches, err := detector.Scan(ctx, rc.Infra, rc.Prefix, provider.ConflictKinds)
					if err != nil {
						return err
					}
					if len(matches) > 0 {
						prompt := fmt.Sprintf("%d existing resource(s) match prefix %q:\n%s\nProceed anyway?",
							len(matches), rc.Prefix, conflict.Format(matches))
						if err := rc.ConfirmOrAbort(prompt, len(matches)); err != nil {
							return err
						}
					}
					rc.Discovery["conflictsFound"] = len(matches)
					rc.Discovery["conflictsCleared"] = true
					return nil
				},
			},
			{
				Name: "deploy-application-stack",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.String("distributionId") != "", nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					in, err := decodeAppInputs(rc.Inputs)
					if err != nil {
						return err
					}

					params := map[string]string{"NamePrefix": rc.Prefix}
					if in.IndexDocument != "" {
						params["IndexDocument"] = in.IndexDocument
					}
					if in.FunctionMemoryMB != 0 {
						params["FunctionMemoryMB"] = strconv.Itoa(in.FunctionMemoryMB)
					}

					stackName := names.Stack(rc.Prefix, "app")
					result, err := rc.Engine.Deploy(ctx, rc.Infra, stack.DeployOptions{
						StackName:    stackName,
						TemplateBody: appTemplate,
						Parameters:   params,
						Tags: map[string]string{
							"stagectl:prefix": rc.Prefix,
							"stagectl:stage":  "app",
						},
					})
					if err != nil {
						return err
					}

					rc.Discovery["stackName"] = stackName
					for out, field := range map[string]string{
						"BucketName":             "bucketName",
						"DistributionId":         "distributionId",
						"DistributionDomainName": "distributionDomain",
						"FunctionArn":            "functionArn",
					} {
						value, ok := result.Outputs[out]
						if !ok || value == "" {
							return errors.Fatal(fmt.Sprintf("stack %s produced no %s output", stackName, out), nil)
						}
						rc.Discovery[field] = value
					}
					return nil
				},
			},
			{
				Name: "wait-distribution-deployed",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.Bool("distributionDeployed"), nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					handle := provider.Handle{
						Kind: provider.KindDistribution,
						ID:   rc.Discovery.String("distributionId"),
					}
					result, err := probe.WaitFor(ctx, func(ctx context.Context) (provider.Status, error) {
						res, err := rc.Provider.Describe(ctx, rc.Infra, handle)
						if err != nil {
							return "", err
						}
						return res.Status, nil
					}, []provider.Status{provider.DistributionDeployed}, nil, opts.poll(rc.Log, distributionPoll))
					if err != nil {
						return err
					}

					// Propagation can outlast the poll budget; the release
					// stage re-verifies the distribution before going live.
					if result.TimedOut {
						rc.Log.Warn().
							Str("distributionId", handle.ID).
							Str("lastStatus", string(result.Status)).
							Msg("distribution still propagating, proceeding")
					}
					rc.Discovery["distributionLastStatus"] = string(result.Status)
					rc.Discovery["distributionDeployed"] = true
					return nil
				},
			},
			{
				Name: "publish-outputs",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Outputs.Bool("readyForStageEdge") && rc.Outputs.String("distributionId") != "", nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					for _, field := range []string{"stackName", "bucketName", "distributionId", "distributionDomain", "functionArn"} {
						rc.Outputs[field] = rc.Discovery.String(field)
					}
					return nil
				},
			},
		},
	}
}
