// Package stages defines the concrete deployment pipeline: the app
// stage provisions the serverless application stack, the edge stage
// issues and attaches the TLS certificate, and the release stage points
// DNS at the distribution and verifies the wiring end to end.
package stages

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/probe"
	"github.com/launchpath/stagectl/pkg/stage"
)

// Options tunes the stages' convergence polls. The zero value uses the
// production defaults; tests shrink the intervals.
type Options struct {
	Poll probe.Options
}

// poll returns the step's poll options, preferring an override. The
// logger receives a debug event per observation.
func (o Options) poll(log zerolog.Logger, def probe.Options) probe.Options {
	p := def
	if o.Poll.MaxAttempts > 0 {
		p = o.Poll
	}
	p.Log = log
	return p
}

// Get returns the named stage's definition.
func Get(name string, opts Options) (*stage.Stage, error) {
	switch name {
	case "app":
		return App(opts), nil
	case "edge":
		return Edge(opts), nil
	case "release":
		return Release(opts), nil
	default:
		return nil, errors.ValidationError(fmt.Sprintf("no definition for stage %q", name), nil)
	}
}

// Requirements returns the prerequisite output fields each stage needs,
// keyed by prerequisite stage name. The dependency resolver fails with
// the field name when one is missing.
func Requirements(name string) map[string][]string {
	switch name {
	case "edge":
		return map[string][]string{
			"app": {"distributionId", "distributionDomain"},
		}
	case "release":
		return map[string][]string{
			"app":  {"distributionId", "distributionDomain"},
			"edge": {"certificateArn", "siteDomain", "hostedZoneId"},
		}
	default:
		return nil
	}
}
