package stage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/artifact/backend/local"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/stage"
)

func newTestStore(t *testing.T) *artifact.Store {
	t.Helper()
	b, err := local.NewBackend(map[string]string{"path": t.TempDir()})
	require.NoError(t, err)
	return artifact.NewStore(b)
}

func TestRequireMissingOutputs(t *testing.T) {
	store := newTestStore(t)
	resolver := stage.NewResolver(store)

	_, err := resolver.Require(context.Background(), "app")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePrerequisiteNotMet))
	assert.Contains(t, err.Error(), "deploy app")
}

func TestRequireReadinessFlagFalse(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, "app", artifact.KindOutputs, artifact.Document{
		"readyForStageEdge": false,
		"distributionId":    "E2EXAMPLE",
	}))

	_, err := stage.NewResolver(store).Require(ctx, "app")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePrerequisiteNotMet))
	assert.Contains(t, err.Error(), "readyForStageEdge")
}

func TestRequireReadinessFlagAbsent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, "app", artifact.KindOutputs, artifact.Document{
		"distributionId": "E2EXAMPLE",
	}))

	_, err := stage.NewResolver(store).Require(ctx, "app")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePrerequisiteNotMet))
}

func TestRequireNamedFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, "app", artifact.KindOutputs, artifact.Document{
		"readyForStageEdge": true,
		"distributionId":    "E2EXAMPLE",
		"bucketName":        "demo-app-site",
	}))

	resolver := stage.NewResolver(store)

	doc, err := resolver.Require(ctx, "app", "distributionId", "bucketName")
	require.NoError(t, err)
	assert.Equal(t, "E2EXAMPLE", doc.String("distributionId"))

	_, err = resolver.Require(ctx, "app", "distributionId", "functionArn")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePrerequisiteNotMet))
	assert.Contains(t, err.Error(), "functionArn")
}

// A later stage must be unreachable when an earlier stage's outputs are
// ready but missing a field the later stage depends on, and the failure
// must name that field.
func TestChainedResolutionNamesMissingField(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	resolver := stage.NewResolver(store)

	// Stage app completed and published its distribution.
	require.NoError(t, store.Save(ctx, "app", artifact.KindOutputs, artifact.Document{
		"readyForStageEdge": true,
		"distributionId":    "D1",
	}))

	doc, err := resolver.Require(ctx, "app", "distributionId")
	require.NoError(t, err)
	assert.Equal(t, "D1", doc.String("distributionId"))

	// Stage edge completed, but without the certificate field forwarded.
	require.NoError(t, store.Save(ctx, "edge", artifact.KindOutputs, artifact.Document{
		"readyForStageRelease": true,
		"certificateArn":       "arn:aws:acm:us-east-1:111111111111:certificate/abc",
	}))

	rc := &stage.RunContext{Stage: "release", Store: store, Deps: map[string]artifact.Document{}}
	err = resolver.Resolve(ctx, rc, map[string][]string{
		"app":  {"distributionId"},
		"edge": {"certificateArn", "siteDomain"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePrerequisiteNotMet))
	assert.Contains(t, err.Error(), "siteDomain")
}

// The end-to-end gating scenario: app's outputs are ready but lack
// distributionId, so edge can never start, let alone complete.
func TestEdgeUnreachableWithoutDistributionID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	resolver := stage.NewResolver(store)

	require.NoError(t, store.Save(ctx, "app", artifact.KindOutputs, artifact.Document{
		"readyForStageEdge": true,
	}))

	rc := &stage.RunContext{Stage: "edge", Store: store, Deps: map[string]artifact.Document{}}
	err := resolver.Resolve(ctx, rc, map[string][]string{
		"app": {"distributionId"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePrerequisiteNotMet))
	assert.Contains(t, err.Error(), "distributionId")

	exists, err := store.Exists(ctx, "edge", artifact.KindOutputs)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestResolveGatesEveryPriorStage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	resolver := stage.NewResolver(store)

	// app is complete, edge is not.
	require.NoError(t, store.Save(ctx, "app", artifact.KindOutputs, artifact.Document{
		"readyForStageEdge": true,
		"distributionId":    "D1",
	}))

	rc := &stage.RunContext{Stage: "release", Store: store, Deps: map[string]artifact.Document{}}
	err := resolver.Resolve(ctx, rc, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePrerequisiteNotMet))
	assert.Contains(t, err.Error(), "edge")
}
