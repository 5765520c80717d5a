package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/launchpath/stagectl/pkg/provider/aws"
	"github.com/launchpath/stagectl/pkg/rollback"
	"github.com/launchpath/stagectl/pkg/stack"
	"github.com/launchpath/stagectl/pkg/stage"
	"github.com/launchpath/stagectl/pkg/stages"
)

func newRollbackCmd() *cobra.Command {
	var (
		mode          string
		dryRun        bool
		autoApprove   bool
		engineName    string
		backendType   string
		backendConfig []string
	)

	cmd := &cobra.Command{
		Use:   "rollback <stage>",
		Short: "Unwind one stage of the pipeline",
		Long: `Unwind a stage in dependency-safe order: dependent wiring is detached
first and its propagation waited on, primary resources are deleted once
nothing references them, stack resources are torn down in bulk, and the
stage's artifacts are removed last. DNS validation records are retained.

If the stage's own rollback cannot complete, the coordinator falls back
to the previous stage's rollback so the environment still reaches a
consistent terminal state.

Modes:
  full            remove provider resources and local artifacts (default)
  resources-only  remove provider resources, keep artifacts for inspection
  data-only       remove artifacts, touch nothing in the provider

Examples:
  stagectl rollback release --prefix demo
  stagectl rollback edge --mode resources-only
  stagectl rollback app --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			stageName, err := stage.Normalize(args[0])
			if err != nil {
				return fail(err)
			}
			rollbackMode, err := rollback.ParseMode(mode)
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

			deps := stages.PlanDeps{
				Store:  store,
				Prefix: prefix,
				Log:    log.Logger,
			}

			// A dry run never talks to the provider, so it needs neither
			// credentials nor a live engine.
			if !dryRun {
				infra, target, err := loadCredentials(ctx)
				if err != nil {
					return fail(err)
				}
				engine, err := stack.Create(engineName)
				if err != nil {
					return fail(err)
				}
				deps.Provider = aws.NewProvider()
				deps.Engine = engine
				deps.Infra = infra
				deps.Target = target
			}

			plan, err := stages.BuildRollbackPlan(ctx, deps, stageName)
			if err != nil {
				return fail(err)
			}

			fmt.Printf("Rollback plan for stage %s (%s):\n", stageName, rollbackMode)
			for _, line := range plan.Describe(rollbackMode) {
				fmt.Printf("  %s\n", line)
			}
			fmt.Println()

			if dryRun {
				fmt.Println("Dry run: nothing was changed.")
				return nil
			}

			if !autoApprove && isInteractive() {
				ok, err := confirm(fmt.Sprintf("Roll back stage %s?", stageName))
				if err != nil {
					return fail(err)
				}
				if !ok {
					fmt.Println("Rollback cancelled.")
					return nil
				}
			}

			coordinator := rollback.NewCoordinator(store, rollback.DefaultOptions(), log.Logger)
			result, err := coordinator.Run(ctx, plan, rollbackMode)
			for _, action := range result.Executed {
				fmt.Printf("  [done] %s\n", action)
			}
			if err != nil {
				if result.FellBackTo != "" {
					fmt.Printf("\nRollback of stage %s delegated to stage %s.\n", stageName, result.FellBackTo)
				}
				return fail(err)
			}

			fmt.Printf("\nStage %s rolled back.\n", stageName)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(rollback.ModeFull), "Rollback mode (full, resources-only, data-only)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the ordered action plan without executing it")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip the confirmation prompt")
	cmd.Flags().StringVar(&engineName, "engine", "cloudformation", "Stack engine")
	cmd.Flags().StringVar(&backendType, "backend", "", "Artifact backend type")
	cmd.Flags().StringArrayVar(&backendConfig, "backend-config", nil, "Backend configuration (key=value)")

	return cmd
}
