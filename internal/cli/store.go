package cli

import (
	"os"
	"strings"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/artifact/backend"
)

// Environment variable names for artifact backend configuration.
const (
	// EnvArtifactBackend sets the artifact backend type (local, s3, gcs, azurerm).
	EnvArtifactBackend = "STAGECTL_ARTIFACT_BACKEND"

	// EnvArtifactPrefix is the prefix for backend-specific config environment
	// variables. For example, STAGECTL_ARTIFACT_PATH sets the "path" config for
	// the local backend, STAGECTL_ARTIFACT_BUCKET the "bucket" for S3/GCS.
	EnvArtifactPrefix = "STAGECTL_ARTIFACT_"
)

// createStoreWithConfig creates an artifact store with the given backend
// type and config.
//
// Configuration precedence (highest to lowest):
//  1. CLI flags (--backend, --backend-config)
//  2. Environment variables (STAGECTL_ARTIFACT_BACKEND, STAGECTL_ARTIFACT_*)
//  3. Hardcoded defaults (local backend with ~/.stagectl/artifacts)
func createStoreWithConfig(backendType string, backendConfig []string) (*artifact.Store, error) {
	// Start with hardcoded default
	effectiveBackend := "local"
	effectiveConfig := make(map[string]string)

	// Apply environment variables
	if envBackend := os.Getenv(EnvArtifactBackend); envBackend != "" {
		effectiveBackend = envBackend
	}

	// Check for backend-specific env vars (STAGECTL_ARTIFACT_PATH, STAGECTL_ARTIFACT_BUCKET, etc.)
	for key, value := range artifactEnvConfig() {
		effectiveConfig[key] = value
	}

	// Apply CLI flags (highest priority)
	if backendType != "" {
		effectiveBackend = backendType
	}

	for _, c := range backendConfig {
		parts := strings.SplitN(c, "=", 2)
		if len(parts) == 2 {
			effectiveConfig[parts[0]] = parts[1]
		}
	}

	config := backend.Config{
		Type:   effectiveBackend,
		Config: effectiveConfig,
	}

	return artifact.NewStoreFromConfig(config)
}

// artifactEnvConfig collects backend config from STAGECTL_ARTIFACT_*
// variables, keyed by the lowercased suffix. STAGECTL_ARTIFACT_BACKEND
// selects the backend type and is not a config key, but variables that
// merely share it as a prefix still are.
func artifactEnvConfig() map[string]string {
	config := make(map[string]string)
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 || parts[0] == EnvArtifactBackend || !strings.HasPrefix(parts[0], EnvArtifactPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(parts[0], EnvArtifactPrefix))
		config[key] = parts[1]
	}
	return config
}
