package stages_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/artifact/backend/local"
	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/probe"
	"github.com/launchpath/stagectl/pkg/provider"
	"github.com/launchpath/stagectl/pkg/provider/providertest"
	"github.com/launchpath/stagectl/pkg/stack/stacktest"
	"github.com/launchpath/stagectl/pkg/stage"
	"github.com/launchpath/stagectl/pkg/stages"
)

const testPrefix = "demo"

var testOpts = stages.Options{
	Poll: probe.Options{Interval: time.Millisecond, MaxAttempts: 3},
}

type harness struct {
	store  *artifact.Store
	api    *providertest.Fake
	engine *stacktest.Fake
	infra  *creds.Context
	target *creds.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b, err := local.NewBackend(map[string]string{"path": t.TempDir()})
	require.NoError(t, err)

	h := &harness{
		store:  artifact.NewStore(b),
		api:    providertest.NewFake(),
		engine: stacktest.NewFake(),
		infra:  &creds.Context{Role: creds.RoleInfra, Profile: "infra", Region: "us-east-1", AccountID: "111111111111"},
		target: &creds.Context{Role: creds.RoleTarget, Profile: "target", Region: "us-east-1", AccountID: "222222222222"},
	}

	h.engine.SetOutputs("demo-app", map[string]string{
		"BucketName":             "demo-app-site",
		"DistributionId":         "D1",
		"DistributionDomainName": "d1.cloudfront.example",
		"FunctionArn":            "arn:aws:lambda:us-east-1:111111111111:function:demo-app-api",
	})
	h.api.Seed(provider.Resource{
		Handle: provider.Handle{Kind: provider.KindDistribution, ID: "D1", Name: "external-site"},
		Status: provider.DistributionDeployed,
	})
	return h
}

func (h *harness) runContext(t *testing.T, stageName string, confirm func(string) (bool, error)) *stage.RunContext {
	t.Helper()
	rc, err := stage.NewRunContext(context.Background(), h.store, stageName)
	require.NoError(t, err)
	rc.Prefix = testPrefix
	rc.Provider = h.api
	rc.Engine = h.engine
	rc.Infra = h.infra
	rc.Target = h.target
	rc.Confirm = confirm
	return rc
}

func (h *harness) saveInputs(t *testing.T, stageName string, doc artifact.Document) {
	t.Helper()
	require.NoError(t, h.store.Save(context.Background(), stageName, artifact.KindInputs, doc))
}

func (h *harness) run(t *testing.T, stageName string) (*stage.Report, error) {
	t.Helper()
	ctx := context.Background()

	rc := h.runContext(t, stageName, nil)
	resolver := stage.NewResolver(h.store)
	if err := resolver.Resolve(ctx, rc, stages.Requirements(stageName)); err != nil {
		return nil, err
	}

	def, err := stages.Get(stageName, testOpts)
	require.NoError(t, err)
	return stage.NewRunner(stage.RunnerOptions{TransientAttempts: 2}).Run(ctx, rc, def)
}

func TestAppStageDeploysStackAndPublishesOutputs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	report, err := h.run(t, "app")
	require.NoError(t, err)
	assert.Len(t, report.Steps, 5)

	outputs, err := h.store.Load(ctx, "app", artifact.KindOutputs)
	require.NoError(t, err)
	assert.True(t, outputs.Bool("readyForStageEdge"))
	assert.Equal(t, "D1", outputs.String("distributionId"))
	assert.Equal(t, "demo-app-site", outputs.String("bucketName"))
	assert.Equal(t, "demo-app", outputs.String("stackName"))
	assert.Equal(t, 1, h.engine.Deploys)

	discovery, err := h.store.Load(ctx, "app", artifact.KindDiscovery)
	require.NoError(t, err)
	assert.Equal(t, "111111111111", discovery.String("infraAccountId"))
	assert.Equal(t, "222222222222", discovery.String("targetAccountId"))
}

func TestConflictHaltsCreatingStepsWithoutConfirmation(t *testing.T) {
	h := newHarness(t)
	h.api.Seed(provider.Resource{
		Handle: provider.Handle{Kind: provider.KindBucket, ID: "demo-app-site", Name: "demo-app-site"},
		Status: provider.StatusActive,
	})

	_, err := h.run(t, "app")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConflictDetected))

	// Nothing was created: the stack deploy never ran.
	assert.Zero(t, h.engine.Deploys)
}

func TestConflictConfirmationAllowsDeploy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.api.Seed(provider.Resource{
		Handle: provider.Handle{Kind: provider.KindBucket, ID: "demo-app-site", Name: "demo-app-site"},
		Status: provider.StatusActive,
	})

	prompted := false
	rc := h.runContext(t, "app", func(prompt string) (bool, error) {
		prompted = true
		assert.Contains(t, prompt, testPrefix)
		return true, nil
	})
	def, err := stages.Get("app", testOpts)
	require.NoError(t, err)
	_, err = stage.NewRunner(stage.RunnerOptions{TransientAttempts: 1}).Run(ctx, rc, def)
	require.NoError(t, err)

	assert.True(t, prompted)
	assert.Equal(t, 1, h.engine.Deploys)
}

// deployPipeline drives all three stages to completion, resuming the
// edge stage after its certificate-issuance poll times out.
func deployPipeline(t *testing.T, h *harness) {
	t.Helper()
	ctx := context.Background()

	_, err := h.run(t, "app")
	require.NoError(t, err)

	h.saveInputs(t, "edge", artifact.Document{
		"domain":       "www.example.com",
		"hostedZoneId": "Z0TARGET",
	})

	// The certificate never leaves PENDING_VALIDATION within the poll
	// budget, so the first edge run halts with a convergence error.
	_, err = h.run(t, "edge")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrCodeConvergencePending), "got %v", err)

	discovery, err := h.store.Load(ctx, "edge", artifact.KindDiscovery)
	require.NoError(t, err)
	certArn := discovery.String("certificateArn")
	require.NotEmpty(t, certArn)
	assert.True(t, discovery.Bool("validationRecordsCreated"))

	// Once the certificate is issued, a re-run resumes at the wait step
	// without requesting a second certificate.
	h.api.ScriptStatuses(provider.KindCertificate, certArn, provider.CertificateIssued)
	h.api.ScriptStatuses(provider.KindDistribution, "D1", provider.DistributionDeployed)
	_, err = h.run(t, "edge")
	require.NoError(t, err)

	outputs, err := h.store.Load(ctx, "edge", artifact.KindOutputs)
	require.NoError(t, err)
	assert.True(t, outputs.Bool("readyForStageRelease"))
	assert.Equal(t, certArn, outputs.String("certificateArn"))
	assert.Equal(t, "www.example.com", outputs.String("siteDomain"))

	_, err = h.run(t, "release")
	require.NoError(t, err)
}

func TestPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	deployPipeline(t, h)

	outputs, err := h.store.Load(ctx, "release", artifact.KindOutputs)
	require.NoError(t, err)
	assert.True(t, outputs.Bool("complete"))
	assert.Equal(t, "https://www.example.com", outputs.String("siteUrl"))

	// One certificate, validation record, alias record, and invalidation.
	creates := 0
	for _, call := range h.api.Calls {
		if strings.HasPrefix(call, "Create") {
			creates++
		}
	}
	assert.Equal(t, 4, creates)

	// The distribution carries the certificate and alias.
	dist, ok := h.api.Get(provider.KindDistribution, "D1")
	require.True(t, ok)
	assert.Equal(t, "www.example.com", dist.Attributes[provider.AttrAliases])
	assert.NotEmpty(t, dist.Attributes[provider.AttrCertificateArn])
}

func TestPipelineIdempotentRerun(t *testing.T) {
	h := newHarness(t)
	deployPipeline(t, h)

	mutations := h.api.MutatingCalls
	deploys := h.engine.Deploys

	for _, stageName := range stage.Pipeline {
		report, err := h.run(t, stageName)
		require.NoError(t, err, stageName)
		assert.True(t, report.AlreadyComplete, stageName)
		for _, step := range report.Steps {
			assert.True(t, step.Skipped, "%s/%s", stageName, step.Name)
		}
	}

	assert.Equal(t, mutations, h.api.MutatingCalls)
	assert.Equal(t, deploys, h.engine.Deploys)
}

func TestInvalidEdgeInputsRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "app")
	require.NoError(t, err)

	h.saveInputs(t, "edge", artifact.Document{
		"domain": "not a domain",
	})
	_, err = h.run(t, "edge")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
}

func TestValidateInputs(t *testing.T) {
	assert.NoError(t, stages.ValidateInputs("app", artifact.Document{"functionMemoryMb": 512}))
	assert.Error(t, stages.ValidateInputs("app", artifact.Document{"functionMemoryMb": 64}))
	assert.NoError(t, stages.ValidateInputs("edge", artifact.Document{
		"domain":       "www.example.com",
		"hostedZoneId": "Z0TARGET",
	}))
	assert.Error(t, stages.ValidateInputs("edge", artifact.Document{"domain": "www.example.com"}))
	assert.NoError(t, stages.ValidateInputs("release", artifact.Document{}))
	assert.Error(t, stages.ValidateInputs("release", artifact.Document{
		"invalidationPaths": []string{"assets/*"},
	}))
}
