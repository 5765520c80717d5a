// Package conflict detects name collisions with resources a stage is
// about to create.
package conflict

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/provider"
)

// Detector scans the target environment for resources whose names
// collide with the configured prefix.
type Detector struct {
	api provider.API
}

// NewDetector creates a detector over the provisioning API.
func NewDetector(api provider.API) *Detector {
	return &Detector{api: api}
}

// Scan queries every given resource kind for names matching the prefix.
// Results are sorted by kind then name so confirmation prompts are
// stable across runs.
func (d *Detector) Scan(ctx context.Context, cred *creds.Context, namePrefix string, kinds []provider.Kind) ([]provider.Resource, error) {
	var matches []provider.Resource
	for _, kind := range kinds {
		found, err := d.api.List(ctx, cred, kind, namePrefix)
		if err != nil {
			return nil, fmt.Errorf("scanning %s resources: %w", kind, err)
		}
		matches = append(matches, found...)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Kind != matches[j].Kind {
			return matches[i].Kind < matches[j].Kind
		}
		return matches[i].Name < matches[j].Name
	})

	return matches, nil
}

// Format renders scan matches for the operator confirmation prompt.
func Format(matches []provider.Resource) string {
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "  - %s %q (%s)\n", m.Kind, m.Name, m.ID)
	}
	return b.String()
}
