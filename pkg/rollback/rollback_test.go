package rollback_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/artifact/backend/local"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/rollback"
)

func newTestStore(t *testing.T) *artifact.Store {
	t.Helper()
	b, err := local.NewBackend(map[string]string{"path": t.TempDir()})
	require.NoError(t, err)
	return artifact.NewStore(b)
}

func newCoordinator(t *testing.T) *rollback.Coordinator {
	t.Helper()
	return rollback.NewCoordinator(newTestStore(t), rollback.Options{InUseAttempts: 3}, zerolog.Nop())
}

func action(name string, trace *[]string, errs ...error) rollback.Action {
	calls := 0
	return rollback.Action{
		Name: name,
		Run: func(ctx context.Context) error {
			*trace = append(*trace, name)
			if calls < len(errs) {
				err := errs[calls]
				calls++
				return err
			}
			return nil
		},
	}
}

func TestDetachRunsBeforeDelete(t *testing.T) {
	var trace []string
	plan := &rollback.Plan{
		Stage:    "edge",
		Detach:   []rollback.Action{action("certificate from distribution", &trace)},
		Delete:   []rollback.Action{action("certificate", &trace)},
		Teardown: []rollback.Action{action("stack demo-edge", &trace)},
	}

	result, err := newCoordinator(t).Run(context.Background(), plan, rollback.ModeResourcesOnly)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"certificate from distribution",
		"certificate",
		"stack demo-edge",
	}, trace)
	assert.Equal(t, []string{
		"detach certificate from distribution",
		"delete certificate",
		"teardown stack demo-edge",
	}, result.Executed)
}

func TestDeleteRetriedWhileStillInUse(t *testing.T) {
	var trace []string
	plan := &rollback.Plan{
		Stage: "edge",
		Delete: []rollback.Action{action("certificate", &trace,
			errors.ResourceStillInUse("certificate", nil),
			errors.ResourceStillInUse("certificate", nil),
		)},
	}

	_, err := newCoordinator(t).Run(context.Background(), plan, rollback.ModeResourcesOnly)
	require.NoError(t, err)
	assert.Len(t, trace, 3)
}

func TestDeleteNotRetriedOnOtherErrors(t *testing.T) {
	var trace []string
	plan := &rollback.Plan{
		Stage:  "edge",
		Delete: []rollback.Action{action("certificate", &trace, errors.Fatal("denied", nil))},
	}

	_, err := newCoordinator(t).Run(context.Background(), plan, rollback.ModeResourcesOnly)
	require.Error(t, err)
	assert.Len(t, trace, 1)
	assert.True(t, errors.Is(err, errors.ErrCodeFatal))
}

func TestInUseBudgetExhausted(t *testing.T) {
	var trace []string
	inUse := errors.ResourceStillInUse("certificate", nil)
	plan := &rollback.Plan{
		Stage:  "edge",
		Delete: []rollback.Action{action("certificate", &trace, inUse, inUse, inUse, inUse)},
	}

	_, err := newCoordinator(t).Run(context.Background(), plan, rollback.ModeResourcesOnly)
	require.Error(t, err)
	assert.Len(t, trace, 3)
	assert.True(t, errors.Is(err, errors.ErrCodeResourceStillInUse))
}

func TestDataOnlySkipsResources(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, "edge", artifact.KindOutputs, artifact.Document{
		"readyForStageRelease": true,
	}))

	var trace []string
	plan := &rollback.Plan{
		Stage:  "edge",
		Detach: []rollback.Action{action("certificate from distribution", &trace)},
		Delete: []rollback.Action{action("certificate", &trace)},
	}

	c := rollback.NewCoordinator(store, rollback.Options{InUseAttempts: 1}, zerolog.Nop())
	_, err := c.Run(ctx, plan, rollback.ModeDataOnly)
	require.NoError(t, err)

	assert.Empty(t, trace)
	exists, err := store.Exists(ctx, "edge", artifact.KindOutputs)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestResourcesOnlyKeepsArtifacts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, "edge", artifact.KindOutputs, artifact.Document{
		"readyForStageRelease": true,
	}))

	c := rollback.NewCoordinator(store, rollback.Options{InUseAttempts: 1}, zerolog.Nop())
	_, err := c.Run(ctx, &rollback.Plan{Stage: "edge"}, rollback.ModeResourcesOnly)
	require.NoError(t, err)

	exists, err := store.Exists(ctx, "edge", artifact.KindOutputs)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFallbackToEarlierStage(t *testing.T) {
	var trace []string
	plan := &rollback.Plan{
		Stage:  "edge",
		Delete: []rollback.Action{action("certificate", &trace, errors.Fatal("denied", nil))},
		Fallback: &rollback.Plan{
			Stage:    "app",
			Teardown: []rollback.Action{action("stack demo-app", &trace)},
		},
	}

	result, err := newCoordinator(t).Run(context.Background(), plan, rollback.ModeResourcesOnly)
	require.Error(t, err)
	assert.Equal(t, "app", result.FellBackTo)
	assert.Equal(t, []string{"certificate", "stack demo-app"}, trace)
}

func TestDescribeDryRunOrdering(t *testing.T) {
	plan := &rollback.Plan{
		Stage:    "edge",
		Detach:   []rollback.Action{{Name: "certificate from distribution"}},
		Delete:   []rollback.Action{{Name: "certificate"}},
		Teardown: []rollback.Action{{Name: "stack demo-edge"}},
		Retained: []string{"validation record _abc.example.com"},
	}

	lines := plan.Describe(rollback.ModeFull)
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "detach")
	assert.Contains(t, lines[1], "delete")
	assert.Contains(t, lines[2], "teardown")
	assert.Contains(t, lines[3], "remove")
	assert.Contains(t, lines[4], "retain")

	dataOnly := plan.Describe(rollback.ModeDataOnly)
	require.Len(t, dataOnly, 2)
	assert.Contains(t, dataOnly[0], "remove")
}

func TestParseMode(t *testing.T) {
	for _, ok := range []string{"full", "Resources-Only", "data-only"} {
		_, err := rollback.ParseMode(ok)
		assert.NoError(t, err, ok)
	}
	_, err := rollback.ParseMode("partial")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
}
