package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/provider/aws"
	"github.com/launchpath/stagectl/pkg/stack"
	"github.com/launchpath/stagectl/pkg/stage"
	"github.com/launchpath/stagectl/pkg/stages"
)

func newDeployCmd() *cobra.Command {
	var (
		variables     []string
		varFile       string
		autoApprove   bool
		engineName    string
		backendType   string
		backendConfig []string
	)

	cmd := &cobra.Command{
		Use:   "deploy <stage>",
		Short: "Deploy one stage of the pipeline",
		Long: `Deploy one stage of the pipeline: app, edge, or release (aliases a, b, c).

Stages run strictly in order; a stage refuses to start until the previous
stage's outputs carry its readiness flag. Re-running a completed stage is
a no-op, and an interrupted stage resumes from the last completed step.

Examples:
  stagectl deploy app --prefix demo --infra-profile infra --target-profile dns
  stagectl deploy edge --var domain=www.example.com --var hostedZoneId=Z0TARGET
  stagectl deploy release --auto-approve`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			stageName, err := stage.Normalize(args[0])
			if err != nil {
				return fail(err)
			}

			prefix, err := requirePrefix()
			if err != nil {
				return fail(err)
			}

			store, err := createStoreWithConfig(backendType, backendConfig)
			if err != nil {
				return fail(err)
			}

			// Merge operator variables into the stage's inputs document
			// and validate it once, before anything runs.
			vars, err := collectVars(variables, varFile)
			if err != nil {
				return fail(err)
			}
			inputs, err := mergeInputs(ctx, store, stageName, vars)
			if err != nil {
				return fail(err)
			}
			if err := stages.ValidateInputs(stageName, inputs); err != nil {
				return fail(err)
			}
			if err := store.Save(ctx, stageName, artifact.KindInputs, inputs); err != nil {
				return fail(err)
			}

			infra, target, err := loadCredentials(ctx)
			if err != nil {
				return fail(err)
			}

			engine, err := stack.Create(engineName)
			if err != nil {
				return fail(err)
			}

			rc, err := stage.NewRunContext(ctx, store, stageName)
			if err != nil {
				return fail(err)
			}
			rc.Prefix = prefix
			rc.Provider = aws.NewProvider()
			rc.Engine = engine
			rc.Infra = infra
			rc.Target = target
			rc.Confirm = confirmFunc(autoApprove)
			rc.Log = log.Logger

			resolver := stage.NewResolver(store)
			if err := resolver.Resolve(ctx, rc, stages.Requirements(stageName)); err != nil {
				return fail(err)
			}

			def, err := stages.Get(stageName, stages.Options{})
			if err != nil {
				return fail(err)
			}

			fmt.Printf("Stage:  %s (%s)\n", stageName, def.Summary)
			fmt.Printf("Prefix: %s\n", prefix)
			fmt.Println()

			report, err := stage.NewRunner(stage.DefaultRunnerOptions()).Run(ctx, rc, def)
			printReport(report)
			if err != nil {
				return fail(err)
			}

			if report.AlreadyComplete {
				fmt.Printf("\nStage %s is already complete.\n", stageName)
			} else {
				fmt.Printf("\nStage %s complete.\n", stageName)
			}
			if next := stage.Next(stageName); next != "" {
				fmt.Printf("Next: stagectl deploy %s\n", next)
			} else if url := rc.Outputs.String("siteUrl"); url != "" {
				fmt.Printf("Site: %s\n", url)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&variables, "var", nil, "Set input variable (key=value)")
	cmd.Flags().StringVar(&varFile, "var-file", "", "Load input variables from a YAML file")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip confirmation prompts")
	cmd.Flags().StringVar(&engineName, "engine", "cloudformation", "Stack engine")
	cmd.Flags().StringVar(&backendType, "backend", "", "Artifact backend type")
	cmd.Flags().StringArrayVar(&backendConfig, "backend-config", nil, "Backend configuration (key=value)")

	return cmd
}

// mergeInputs overlays operator variables onto the stage's persisted
// inputs document.
func mergeInputs(ctx context.Context, store *artifact.Store, stageName string, vars artifact.Document) (artifact.Document, error) {
	inputs, err := store.Load(ctx, stageName, artifact.KindInputs)
	if err != nil {
		if !artifact.IsNotFound(err) {
			return nil, err
		}
		inputs = artifact.Document{}
	}
	for k, v := range vars {
		inputs[k] = v
	}
	return inputs, nil
}

func printReport(report *stage.Report) {
	if report == nil {
		return
	}
	for _, step := range report.Steps {
		marker := "done"
		if step.Skipped {
			marker = "skipped"
		}
		fmt.Printf("  [%s] %s\n", marker, step.Name)
	}
}
