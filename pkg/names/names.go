// Package names enforces the resource-naming discipline every stage
// shares: one operator-chosen prefix, deterministic derived names.
package names

import (
	"fmt"
	"regexp"
	"strings"
)

// Bucket names cap the derived-name budget: 63 chars total, and the
// longest derivation adds "-release-artifacts" style suffixes.
const maxPrefixLength = 28

var prefixPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$`)

// ValidatePrefix checks an operator-supplied naming prefix against the
// tightest constraints across the resource kinds it will be used for.
func ValidatePrefix(prefix string) error {
	if len(prefix) < 3 {
		return fmt.Errorf("name prefix %q is too short (minimum 3 characters)", prefix)
	}
	if len(prefix) > maxPrefixLength {
		return fmt.Errorf("name prefix %q is too long (maximum %d characters)", prefix, maxPrefixLength)
	}
	if !prefixPattern.MatchString(prefix) {
		return fmt.Errorf("name prefix %q must be lowercase alphanumeric with hyphens, starting with a letter", prefix)
	}
	if strings.Contains(prefix, "--") {
		return fmt.Errorf("name prefix %q must not contain consecutive hyphens", prefix)
	}
	return nil
}

// Resource derives a deterministic resource name from the prefix, the
// stage that owns it, and a short resource label.
func Resource(prefix, stage, label string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, stage, label)
}

// Stack derives the declarative stack name for a stage.
func Stack(prefix, stage string) string {
	return fmt.Sprintf("%s-%s", prefix, stage)
}

// FunctionLogGroup returns the log group a compute function writes to.
func FunctionLogGroup(functionName string) string {
	return "/aws/lambda/" + functionName
}
