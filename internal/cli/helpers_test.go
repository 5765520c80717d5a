package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpath/stagectl/pkg/artifact"
)

func TestCollectVarsInline(t *testing.T) {
	vars, err := collectVars([]string{"domain=www.example.com", "hostedZoneId=Z0TARGET"}, "")
	require.NoError(t, err)
	assert.Equal(t, "www.example.com", vars.String("domain"))
	assert.Equal(t, "Z0TARGET", vars.String("hostedZoneId"))
}

func TestCollectVarsRejectsMalformed(t *testing.T) {
	_, err := collectVars([]string{"domain"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key=value")
}

func TestCollectVarsFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domain: www.example.com\nhostedZoneId: Z0TARGET\n"), 0o644))

	vars, err := collectVars(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "www.example.com", vars.String("domain"))
}

func TestCollectVarsInlineWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domain: file.example.com\n"), 0o644))

	vars, err := collectVars([]string{"domain=flag.example.com"}, path)
	require.NoError(t, err)
	assert.Equal(t, "flag.example.com", vars.String("domain"))
}

func TestCollectVarsMissingFile(t *testing.T) {
	_, err := collectVars(nil, filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestMergeInputsOverlaysExistingDocument(t *testing.T) {
	ctx := context.Background()
	store, err := createStoreWithConfig("local", []string{"path=" + t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "edge", artifact.KindInputs, artifact.Document{
		"domain":       "old.example.com",
		"hostedZoneId": "Z0TARGET",
	}))

	merged, err := mergeInputs(ctx, store, "edge", artifact.Document{"domain": "new.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "new.example.com", merged.String("domain"))
	assert.Equal(t, "Z0TARGET", merged.String("hostedZoneId"))
}

func TestCreateStoreWithConfigFlagBeatsEnv(t *testing.T) {
	t.Setenv(EnvArtifactBackend, "s3")
	t.Setenv(EnvArtifactPrefix+"PATH", "/tmp/ignored")

	store, err := createStoreWithConfig("local", []string{"path=" + t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "local", store.Backend().Type())
}

func TestCreateStoreWithConfigEnvDefault(t *testing.T) {
	t.Setenv(EnvArtifactBackend, "local")
	t.Setenv(EnvArtifactPrefix+"PATH", t.TempDir())

	store, err := createStoreWithConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "local", store.Backend().Type())
}

func TestEnvBindsDashedProfileKeys(t *testing.T) {
	t.Setenv("STAGECTL_PREFIX", "demo")
	t.Setenv("STAGECTL_INFRA_PROFILE", "ci-infra")
	t.Setenv("STAGECTL_TARGET_PROFILE", "ci-target")

	assert.Equal(t, "demo", viper.GetString("prefix"))
	assert.Equal(t, "ci-infra", viper.GetString("infra-profile"))
	assert.Equal(t, "ci-target", viper.GetString("target-profile"))
}

func TestLoadCredentialsReadsInfraProfileFromEnv(t *testing.T) {
	t.Setenv("STAGECTL_INFRA_PROFILE", "ci-infra")
	t.Setenv("STAGECTL_TARGET_PROFILE", "")

	// The infra profile from the environment passes the required check;
	// the missing target profile is reported instead.
	_, _, err := loadCredentials(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target credential profile")
	assert.NotContains(t, err.Error(), "infrastructure credential profile")
}

func TestArtifactEnvConfigKeyedByFullName(t *testing.T) {
	t.Setenv(EnvArtifactBackend, "s3")
	t.Setenv(EnvArtifactBackend+"_OPTS", "accelerated")
	t.Setenv(EnvArtifactPrefix+"BUCKET", "team-artifacts")

	config := artifactEnvConfig()
	assert.Equal(t, "team-artifacts", config["bucket"])
	assert.Equal(t, "accelerated", config["backend_opts"])
	assert.NotContains(t, config, "backend")
}

func TestConfirmFuncAutoApprove(t *testing.T) {
	fn := confirmFunc(true)
	require.NotNil(t, fn)
	ok, err := fn("anything")
	require.NoError(t, err)
	assert.True(t, ok)
}
