package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/stage"
	"github.com/launchpath/stagectl/pkg/stages"
)

func newStatusCmd() *cobra.Command {
	var (
		backendType   string
		backendConfig []string
	)

	cmd := &cobra.Command{
		Use:   "status [stage]",
		Short: "Show pipeline progress without changing anything",
		Long: `Show each stage's artifact documents, readiness flag, and per-step
completion. Status only reads artifacts; it never calls the provider.

Examples:
  stagectl status
  stagectl status edge`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			store, err := createStoreWithConfig(backendType, backendConfig)
			if err != nil {
				return fail(err)
			}

			names := stage.Pipeline
			if len(args) == 1 {
				name, err := stage.Normalize(args[0])
				if err != nil {
					return fail(err)
				}
				names = []string{name}
			}

			for _, stageName := range names {
				if err := printStageStatus(ctx, store, stageName); err != nil {
					return fail(err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&backendType, "backend", "", "Artifact backend type")
	cmd.Flags().StringArrayVar(&backendConfig, "backend-config", nil, "Backend configuration (key=value)")

	return cmd
}

func printStageStatus(ctx context.Context, store *artifact.Store, stageName string) error {
	rc, err := stage.NewRunContext(ctx, store, stageName)
	if err != nil {
		return err
	}

	flag := stage.CompletionFlag(stageName)
	state := "not started"
	if rc.Outputs.Bool(flag) {
		state = "complete"
	} else if len(rc.Discovery) > 0 {
		state = "in progress"
	}
	fmt.Printf("%s: %s\n", stageName, state)

	for _, kind := range artifact.Kinds {
		exists, err := store.Exists(ctx, stageName, kind)
		if err != nil {
			return err
		}
		presence := "absent"
		if exists {
			presence = "present"
		}
		fmt.Printf("  %-9s %s\n", kind, presence)
	}

	def, err := stages.Get(stageName, stages.Options{})
	if err != nil {
		return err
	}
	results, err := stage.NewRunner(stage.RunnerOptions{}).Status(ctx, rc, def)
	if err != nil {
		return err
	}
	for _, step := range results {
		marker := "pending"
		if step.Skipped {
			marker = "complete"
		}
		fmt.Printf("  %-9s %s\n", marker, step.Name)
	}
	fmt.Println()
	return nil
}
