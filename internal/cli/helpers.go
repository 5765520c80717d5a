package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/names"
)

// isInteractive returns true if the CLI is running in an interactive
// terminal and not in a CI environment.
func isInteractive() bool {
	// Check if stdin is a terminal
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}

	// Check for common CI environment variables
	ciEnvVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"TRAVIS",
		"JENKINS_URL",
		"BUILDKITE",
		"DRONE",
		"TEAMCITY_VERSION",
		"TF_BUILD", // Azure DevOps
		"BITBUCKET_BUILD_NUMBER",
		"CODEBUILD_BUILD_ID", // AWS CodeBuild
	}

	for _, env := range ciEnvVars {
		if os.Getenv(env) != "" {
			return false
		}
	}

	return true
}

// confirm prints the prompt and reads a yes/no answer from stdin.
func confirm(prompt string) (bool, error) {
	fmt.Printf("%s [y/N]: ", prompt)
	var response string
	_, _ = fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}

// confirmFunc builds the confirmation callback handed to the run
// context. With --auto-approve everything is approved; outside a
// terminal nothing is.
func confirmFunc(autoApprove bool) func(string) (bool, error) {
	if autoApprove {
		return func(string) (bool, error) { return true, nil }
	}
	if !isInteractive() {
		return nil
	}
	return func(prompt string) (bool, error) {
		fmt.Println(prompt)
		return confirm("Proceed?")
	}
}

// collectVars merges --var-file and --var values into one inputs
// overlay. Inline --var entries win over file entries.
func collectVars(variables []string, varFile string) (artifact.Document, error) {
	vars := artifact.Document{}

	if varFile != "" {
		data, err := os.ReadFile(varFile)
		if err != nil {
			return nil, errors.ParseError(varFile, err)
		}
		fileVars := map[string]interface{}{}
		if err := yaml.Unmarshal(data, &fileVars); err != nil {
			return nil, errors.ParseError(varFile, err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}

	for _, v := range variables {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			return nil, errors.ValidationError(fmt.Sprintf("invalid --var %q (expected key=value)", v), nil)
		}
		vars[parts[0]] = parts[1]
	}

	return vars, nil
}

// requirePrefix reads and validates the global resource name prefix.
func requirePrefix() (string, error) {
	prefix := viper.GetString("prefix")
	if prefix == "" {
		return "", errors.ValidationError("a resource name prefix is required (set --prefix or STAGECTL_PREFIX)", nil)
	}
	if err := names.ValidatePrefix(prefix); err != nil {
		return "", err
	}
	return prefix, nil
}

// loadCredentials resolves and validates both account contexts. Nothing
// mutating runs unless both authenticate independently.
func loadCredentials(ctx context.Context) (infra, target *creds.Context, err error) {
	region := viper.GetString("region")

	infraProfile := viper.GetString("infra-profile")
	if infraProfile == "" {
		return nil, nil, errors.ValidationError("an infrastructure credential profile is required (set --infra-profile or STAGECTL_INFRA_PROFILE)", nil)
	}
	targetProfile := viper.GetString("target-profile")
	if targetProfile == "" {
		return nil, nil, errors.ValidationError("a target credential profile is required (set --target-profile or STAGECTL_TARGET_PROFILE)", nil)
	}

	infra, err = creds.Load(ctx, creds.RoleInfra, infraProfile, region)
	if err != nil {
		return nil, nil, err
	}
	target, err = creds.Load(ctx, creds.RoleTarget, targetProfile, region)
	if err != nil {
		return nil, nil, err
	}

	if err := creds.ValidateAll(ctx, infra, target); err != nil {
		return nil, nil, err
	}
	return infra, target, nil
}

// fail renders a classified error with its remediation on stderr and
// returns it so the process exits non-zero.
func fail(err error) error {
	if err == nil {
		return nil
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if remediation := errors.Remediation(err); remediation != "" {
		fmt.Fprintf(os.Stderr, "Remediation: %s\n", remediation)
	}
	return err
}
