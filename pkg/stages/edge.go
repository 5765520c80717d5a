package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/probe"
	"github.com/launchpath/stagectl/pkg/provider"
	"github.com/launchpath/stagectl/pkg/stage"
)

var (
	validationRecordPoll = probe.Options{Interval: 5 * time.Second, MaxAttempts: 12}
	certificatePoll      = probe.Options{Interval: 15 * time.Second, MaxAttempts: 40}

	// recordsAvailable is a synthetic terminal status for the poll that
	// waits on the certificate's validation record data.
	recordsAvailable provider.Status = "RecordsAvailable"
)

// Edge issues the site certificate in the infrastructure account,
// proves domain control through the target account's hosted zone, and
// attaches the certificate to the app stage's distribution.
func Edge(opts Options) *stage.Stage {
	return &stage.Stage{
		Name:    "edge",
		Summary: "issue the TLS certificate and attach it to the distribution",
		Steps: []stage.Step{
			{
				Name: "request-certificate",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.String("certificateArn") != "", nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					in, err := decodeEdgeInputs(rc.Inputs)
					if err != nil {
						return err
					}

					res, err := rc.Provider.Create(ctx, rc.Infra, provider.CreateRequest{
						Kind: provider.KindCertificate,
						Name: in.Domain,
						Attributes: map[string]string{
							provider.AttrDomainName: in.Domain,
						},
					})
					if err != nil {
						return err
					}
					rc.Discovery["certificateArn"] = res.Handle.ID
					rc.Discovery["siteDomain"] = in.Domain
					rc.Discovery["hostedZoneId"] = in.HostedZoneID
					return nil
				},
			},
			{
				Name: "create-validation-records",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.Bool("validationRecordsCreated"), nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					handle := provider.Handle{
						Kind: provider.KindCertificate,
						ID:   rc.Discovery.String("certificateArn"),
					}

					// The provider fills in validation record data shortly
					// after the certificate request.
					var records []provider.ValidationRecord
					result, err := probe.WaitFor(ctx, func(ctx context.Context) (provider.Status, error) {
						res, err := rc.Provider.Describe(ctx, rc.Infra, handle)
						if err != nil {
							return "", err
						}
						if len(res.ValidationRecords) > 0 {
							records = res.ValidationRecords
							return recordsAvailable, nil
						}
						return res.Status, nil
					}, []provider.Status{recordsAvailable}, []provider.Status{provider.CertificateFailed}, opts.poll(rc.Log, validationRecordPoll))
					if err != nil {
						return err
					}
					if result.Failed {
						return errors.Fatal(fmt.Sprintf("certificate %s failed before validation", handle.ID), nil)
					}
					if result.TimedOut {
						return errors.ConvergencePending(fmt.Sprintf("validation records for certificate %s", handle.ID))
					}

					zoneID := rc.Discovery.String("hostedZoneId")
					recordNames := make([]interface{}, 0, len(records))
					for _, rec := range records {
						// Validation records live in the target account's
						// zone, never the certificate's account.
						_, err := rc.Provider.Create(ctx, rc.Target, provider.CreateRequest{
							Kind: provider.KindRecordSet,
							Name: rec.Name,
							Attributes: map[string]string{
								provider.AttrZoneID:      zoneID,
								provider.AttrRecordType:  rec.Type,
								provider.AttrRecordValue: rec.Value,
							},
						})
						if err != nil {
							return err
						}
						recordNames = append(recordNames, rec.Name)
					}
					rc.Discovery["validationRecordNames"] = recordNames
					rc.Discovery["validationRecordsCreated"] = true
					return nil
				},
			},
			{
				Name: "wait-certificate-issued",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.Bool("certificateIssued"), nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					handle := provider.Handle{
						Kind: provider.KindCertificate,
						ID:   rc.Discovery.String("certificateArn"),
					}
					result, err := probe.WaitFor(ctx, func(ctx context.Context) (provider.Status, error) {
						res, err := rc.Provider.Describe(ctx, rc.Infra, handle)
						if err != nil {
							return "", err
						}
						return res.Status, nil
					}, []provider.Status{provider.CertificateIssued}, []provider.Status{provider.CertificateFailed}, opts.poll(rc.Log, certificatePoll))
					if err != nil {
						return err
					}
					if result.Failed {
						return errors.Fatal(fmt.Sprintf("certificate %s failed validation; check the validation records in zone %s",
							handle.ID, rc.Discovery.String("hostedZoneId")), nil)
					}

					// Nothing downstream can proceed without an issued
					// certificate, so a timeout here aborts the stage.
					if result.TimedOut {
						return errors.ConvergencePending(fmt.Sprintf("certificate %s (last status %s)", handle.ID, result.Status))
					}
					rc.Discovery["certificateIssued"] = true
					return nil
				},
			},
			{
				Name: "attach-certificate",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.Bool("certificateAttached"), nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					handle := provider.Handle{
						Kind: provider.KindDistribution,
						ID:   rc.Dep("app").String("distributionId"),
					}
					_, err := rc.Provider.Update(ctx, rc.Infra, handle, map[string]string{
						provider.AttrCertificateArn: rc.Discovery.String("certificateArn"),
						provider.AttrAliases:        rc.Discovery.String("siteDomain"),
					})
					if err != nil {
						return err
					}
					rc.Discovery["certificateAttached"] = true
					return nil
				},
			},
			{
				Name: "wait-distribution-propagated",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Discovery.Bool("edgePropagated"), nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					handle := provider.Handle{
						Kind: provider.KindDistribution,
						ID:   rc.Dep("app").String("distributionId"),
					}
					result, err := probe.WaitFor(ctx, func(ctx context.Context) (provider.Status, error) {
						res, err := rc.Provider.Describe(ctx, rc.Infra, handle)
						if err != nil {
							return "", err
						}
						return res.Status, nil
					}, []provider.Status{provider.DistributionDeployed}, nil, opts.poll(rc.Log, distributionPoll))
					if err != nil {
						return err
					}
					if result.TimedOut {
						rc.Log.Warn().
							Str("distributionId", handle.ID).
							Str("lastStatus", string(result.Status)).
							Msg("distribution still propagating, proceeding")
					}
					rc.Discovery["edgePropagated"] = true
					return nil
				},
			},
			{
				Name: "publish-outputs",
				Complete: func(ctx context.Context, rc *stage.RunContext) (bool, error) {
					return rc.Outputs.Bool("readyForStageRelease") && rc.Outputs.String("certificateArn") != "", nil
				},
				Run: func(ctx context.Context, rc *stage.RunContext) error {
					rc.Outputs["certificateArn"] = rc.Discovery.String("certificateArn")
					rc.Outputs["siteDomain"] = rc.Discovery.String("siteDomain")
					rc.Outputs["hostedZoneId"] = rc.Discovery.String("hostedZoneId")
					return nil
				},
			},
		},
	}
}
