package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/probe"
	"github.com/launchpath/stagectl/pkg/provider"
	"github.com/launchpath/stagectl/pkg/stage"
)

var invalidationPoll = probe.Options{Interval: 10 * time.Second, MaxAttempts: 30}

// Release points the public domain at the distribution, flushes the
// distribution cache, and verifies the wiring produced by the earlier
// stages before declaring the site live.
func Release(opts Options) *stage.Stage {
	return &stage.Stage{
		Name:    "release",
		Summary: "publish DNS, invalidate caches, and verify the site",
		Steps: []stage.Step{
			{
				Name: "create-alias-record",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.String("aliasRecordId") != "", nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					res, err := rc.Provider.Create(ctx, rc.Target, provider.CreateRequest{
						Kind: provider.KindRecordSet,
						Name: rc.Dep("edge").String("siteDomain"),
						Attributes: map[string]string{
							provider.AttrZoneID:      rc.Dep("edge").String("hostedZoneId"),
							provider.AttrRecordType:  "A",
							provider.AttrAliasTarget: rc.Dep("app").String("distributionDomain"),
						},
					})
					if err != nil {
						return err
					}
					rc.Discovery["aliasRecordId"] = res.Handle.ID
					return nil
				},
			},
			{
				Name: "invalidate-distribution-cache",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.String("invalidationId") != "", nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					in, err := decodeReleaseInputs(rc.Inputs)
					if err != nil {
						return err
					}

					distributionID := rc.Dep("app").String("distributionId")
					res, err := rc.Provider.Create(ctx, rc.Infra, provider.CreateRequest{
						Kind: provider.KindInvalidation,
						Name: distributionID,
						Attributes: map[string]string{
							provider.AttrPaths: strings.Join(in.Paths(), ","),
						},
					})
					if err != nil {
						return err
					}
					rc.Discovery["invalidationId"] = res.Handle.ID
					rc.Discovery["invalidationDistributionId"] = distributionID
					return nil
				},
			},
			{
				Name: "wait-invalidation-completed",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.Bool("invalidationCompleted"), nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					handle := provider.Handle{
						Kind: provider.KindInvalidation,
						ID:   rc.Discovery.String("invalidationId"),
						Name: rc.Discovery.String("invalidationDistributionId"),
					}
					result, err := probe.WaitFor(ctx, func(ctx context.Context) (provider.Status, error) {
						res, err := rc.Provider.Describe(ctx, rc.Infra, handle)
						if err != nil {
							return "", err
						}
						return res.Status, nil
					}, []provider.Status{provider.InvalidationCompleted}, nil, opts.poll(rc.Log, invalidationPoll))
					if err != nil {
						return err
					}
					if result.TimedOut {
						rc.Log.Warn().
							Str("invalidationId", handle.ID).
							Msg("invalidation still in progress, proceeding")
					}
					rc.Discovery["invalidationCompleted"] = true
					return nil
				},
			},
			{
				Name: "verify-stage-wiring",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.Bool("wiringVerified"), nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					wantArn := rc.Dep("edge").String("certificateArn")

					dist, err := rc.Provider.Describe(ctx, rc.Infra, provider.Handle{
						Kind: provider.KindDistribution,
						ID:   rc.Dep("app").String("distributionId"),
					})
					if err != nil {
						return err
					}
					if got := dist.Attributes[provider.AttrCertificateArn]; got != wantArn {
						return errors.Fatal(fmt.Sprintf("distribution %s references certificate %q, expected %q; re-run the edge stage",
							dist.ID, got, wantArn), nil)
					}
					if dist.Status != provider.DistributionDeployed {
						return errors.ConvergencePending(fmt.Sprintf("distribution %s (status %s)", dist.ID, dist.Status))
					}

					cert, err := rc.Provider.Describe(ctx, rc.Infra, provider.Handle{
						Kind: provider.KindCertificate,
						ID:   wantArn,
					})
					if err != nil {
						return err
					}
					if cert.Status != provider.CertificateIssued {
						return errors.Fatal(fmt.Sprintf("certificate %s is %s, expected %s", wantArn, cert.Status, provider.CertificateIssued), nil)
					}

					rc.Discovery["wiringVerified"] = true
					return nil
				},
			},
			{
				Name: "publish-outputs",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Outputs.Bool("complete") && rc.Outputs.String("siteUrl") != "", nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					rc.Outputs["siteUrl"] = "https://" + rc.Dep("edge").String("siteDomain")
					return nil
				},
			},
		},
	}
}
