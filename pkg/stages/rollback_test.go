package stages_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/provider"
	"github.com/launchpath/stagectl/pkg/rollback"
	"github.com/launchpath/stagectl/pkg/stages"
)

func (h *harness) planDeps() stages.PlanDeps {
	return stages.PlanDeps{
		Store:    h.store,
		Provider: h.api,
		Engine:   h.engine,
		Infra:    h.infra,
		Target:   h.target,
		Prefix:   testPrefix,
		Opts:     testOpts,
	}
}

func callIndex(calls []string, prefix string) int {
	for i, call := range calls {
		if strings.HasPrefix(call, prefix) {
			return i
		}
	}
	return -1
}

func TestEdgeRollbackDetachesBeforeDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	deployPipeline(t, h)

	plan, err := stages.BuildRollbackPlan(ctx, h.planDeps(), "edge")
	require.NoError(t, err)
	require.Len(t, plan.Detach, 1)
	require.Len(t, plan.Delete, 1)
	require.NotNil(t, plan.Fallback)
	assert.Equal(t, "app", plan.Fallback.Stage)

	coordinator := rollback.NewCoordinator(h.store, rollback.Options{InUseAttempts: 2}, zerolog.Nop())
	_, err = coordinator.Run(ctx, plan, rollback.ModeFull)
	require.NoError(t, err)

	detachIdx := callIndex(h.api.Calls, "Update distribution D1")
	deleteIdx := callIndex(h.api.Calls, "Delete certificate")
	require.GreaterOrEqual(t, detachIdx, 0)
	require.GreaterOrEqual(t, deleteIdx, 0)
	assert.Less(t, detachIdx, deleteIdx)

	// The distribution no longer references the certificate.
	dist, ok := h.api.Get(provider.KindDistribution, "D1")
	require.True(t, ok)
	assert.Empty(t, dist.Attributes[provider.AttrCertificateArn])

	// Validation records stay in the target zone.
	assert.Equal(t, -1, callIndex(h.api.Calls, "Delete record-set _validation"))
	require.NotEmpty(t, plan.Retained)
	assert.Contains(t, plan.Retained[0], "validation record")

	// Edge artifacts are gone; app artifacts survive.
	exists, err := h.store.Exists(ctx, "edge", artifact.KindOutputs)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = h.store.Exists(ctx, "app", artifact.KindOutputs)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReleaseRollbackRemovesAliasRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	deployPipeline(t, h)

	plan, err := stages.BuildRollbackPlan(ctx, h.planDeps(), "release")
	require.NoError(t, err)
	require.Len(t, plan.Delete, 1)
	assert.Contains(t, plan.Delete[0].Name, "alias record")

	coordinator := rollback.NewCoordinator(h.store, rollback.Options{InUseAttempts: 2}, zerolog.Nop())
	_, err = coordinator.Run(ctx, plan, rollback.ModeFull)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, callIndex(h.api.Calls, "Delete record-set www.example.com"), 0)
}

func TestAppRollbackTearsDownStack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.run(t, "app")
	require.NoError(t, err)

	plan, err := stages.BuildRollbackPlan(ctx, h.planDeps(), "app")
	require.NoError(t, err)
	require.Len(t, plan.Teardown, 1)
	assert.Nil(t, plan.Fallback)

	coordinator := rollback.NewCoordinator(h.store, rollback.Options{InUseAttempts: 2}, zerolog.Nop())
	_, err = coordinator.Run(ctx, plan, rollback.ModeFull)
	require.NoError(t, err)

	exists, err := h.engine.Exists(ctx, h.infra, "demo-app")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCertificateDeleteRetriedWhileAttached(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	deployPipeline(t, h)

	discovery, err := h.store.Load(ctx, "edge", artifact.KindDiscovery)
	require.NoError(t, err)
	certArn := discovery.String("certificateArn")

	// The first delete lands while the detach is still propagating.
	h.api.FailNext("Delete", provider.KindCertificate, certArn,
		errors.ResourceStillInUse("certificate "+certArn, nil))

	plan, err := stages.BuildRollbackPlan(ctx, h.planDeps(), "edge")
	require.NoError(t, err)

	coordinator := rollback.NewCoordinator(h.store, rollback.Options{InUseAttempts: 3}, zerolog.Nop())
	_, err = coordinator.Run(ctx, plan, rollback.ModeFull)
	require.NoError(t, err)

	_, stillThere := h.api.Get(provider.KindCertificate, certArn)
	assert.False(t, stillThere)
}

func TestRollbackDryRunPlan(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	deployPipeline(t, h)

	plan, err := stages.BuildRollbackPlan(ctx, h.planDeps(), "edge")
	require.NoError(t, err)

	lines := plan.Describe(rollback.ModeFull)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "detach")

	// Describing the plan executes nothing.
	assert.Equal(t, -1, callIndex(h.api.Calls, "Delete certificate"))
}
