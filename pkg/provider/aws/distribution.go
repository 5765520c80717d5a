package aws

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/google/uuid"
	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/provider"
)

func (p *Provider) describeDistribution(ctx context.Context, cred *creds.Context, h provider.Handle) (*provider.Resource, error) {
	client := cloudfront.NewFromConfig(cred.Config())

	out, err := client.GetDistribution(ctx, &cloudfront.GetDistributionInput{
		Id: aws.String(h.ID),
	})
	if err != nil {
		return nil, provider.Classify("GetDistribution", "distribution "+h.ID, err)
	}

	dist := out.Distribution
	attrs := map[string]string{
		provider.AttrDomainName: aws.ToString(dist.DomainName),
	}
	if cfg := dist.DistributionConfig; cfg != nil {
		if cfg.Aliases != nil {
			attrs[provider.AttrAliases] = strings.Join(cfg.Aliases.Items, ",")
		}
		if cfg.ViewerCertificate != nil {
			attrs[provider.AttrCertificateArn] = aws.ToString(cfg.ViewerCertificate.ACMCertificateArn)
		}
	}

	return &provider.Resource{
		Handle: provider.Handle{
			Kind: provider.KindDistribution,
			ID:   h.ID,
			Name: h.Name,
		},
		Status:     provider.Status(aws.ToString(dist.Status)),
		Attributes: attrs,
	}, nil
}

// updateDistribution applies the routing changes the edge stage and
// rollback need: attaching or detaching a certificate and alias set.
// Setting certificateArn to "" reverts to the default viewer certificate.
func (p *Provider) updateDistribution(ctx context.Context, cred *creds.Context, h provider.Handle, changes map[string]string) (*provider.Resource, error) {
	client := cloudfront.NewFromConfig(cred.Config())

	current, err := client.GetDistributionConfig(ctx, &cloudfront.GetDistributionConfigInput{
		Id: aws.String(h.ID),
	})
	if err != nil {
		return nil, provider.Classify("GetDistributionConfig", "distribution "+h.ID, err)
	}

	cfg := current.DistributionConfig

	if arn, ok := changes[provider.AttrCertificateArn]; ok {
		if arn == "" {
			cfg.ViewerCertificate = &cftypes.ViewerCertificate{
				CloudFrontDefaultCertificate: aws.Bool(true),
			}
		} else {
			cfg.ViewerCertificate = &cftypes.ViewerCertificate{
				ACMCertificateArn:      aws.String(arn),
				SSLSupportMethod:       cftypes.SSLSupportMethodSniOnly,
				MinimumProtocolVersion: cftypes.MinimumProtocolVersionTLSv122021,
			}
		}
	}

	if aliases, ok := changes[provider.AttrAliases]; ok {
		var items []string
		if aliases != "" {
			items = strings.Split(aliases, ",")
		}
		cfg.Aliases = &cftypes.Aliases{
			Quantity: aws.Int32(int32(len(items))),
			Items:    items,
		}
	}

	out, err := client.UpdateDistribution(ctx, &cloudfront.UpdateDistributionInput{
		Id:                 aws.String(h.ID),
		IfMatch:            current.ETag,
		DistributionConfig: cfg,
	})
	if err != nil {
		return nil, provider.Classify("UpdateDistribution", "distribution "+h.ID, err)
	}

	return &provider.Resource{
		Handle: h,
		Status: provider.Status(aws.ToString(out.Distribution.Status)),
	}, nil
}

func (p *Provider) listDistributions(ctx context.Context, cred *creds.Context, namePrefix string) ([]provider.Resource, error) {
	client := cloudfront.NewFromConfig(cred.Config())

	var resources []provider.Resource
	paginator := cloudfront.NewListDistributionsPaginator(client, &cloudfront.ListDistributionsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, provider.Classify("ListDistributions", "distributions", err)
		}
		if page.DistributionList == nil {
			continue
		}
		for _, summary := range page.DistributionList.Items {
			// Distributions carry no name; the stack engine writes the
			// resource name into the comment, and aliases carry the domain.
			comment := aws.ToString(summary.Comment)
			matched := strings.Contains(comment, namePrefix)
			if !matched && summary.Aliases != nil {
				for _, alias := range summary.Aliases.Items {
					if strings.Contains(alias, namePrefix) {
						matched = true
						break
					}
				}
			}
			if !matched {
				continue
			}
			resources = append(resources, provider.Resource{
				Handle: provider.Handle{
					Kind: provider.KindDistribution,
					ID:   aws.ToString(summary.Id),
					Name: comment,
				},
				Status: provider.Status(aws.ToString(summary.Status)),
				Attributes: map[string]string{
					provider.AttrDomainName: aws.ToString(summary.DomainName),
				},
			})
		}
	}

	return resources, nil
}

func (p *Provider) createInvalidation(ctx context.Context, cred *creds.Context, req provider.CreateRequest) (*provider.Resource, error) {
	client := cloudfront.NewFromConfig(cred.Config())

	paths := strings.Split(req.Attributes[provider.AttrPaths], ",")
	out, err := client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(req.Name),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(uuid.New().String()),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	if err != nil {
		return nil, provider.Classify("CreateInvalidation", "distribution "+req.Name, err)
	}

	return &provider.Resource{
		Handle: provider.Handle{
			Kind: provider.KindInvalidation,
			ID:   aws.ToString(out.Invalidation.Id),
			Name: req.Name, // distribution the invalidation belongs to
		},
		Status: provider.Status(aws.ToString(out.Invalidation.Status)),
	}, nil
}

func (p *Provider) describeInvalidation(ctx context.Context, cred *creds.Context, h provider.Handle) (*provider.Resource, error) {
	client := cloudfront.NewFromConfig(cred.Config())

	out, err := client.GetInvalidation(ctx, &cloudfront.GetInvalidationInput{
		DistributionId: aws.String(h.Name),
		Id:             aws.String(h.ID),
	})
	if err != nil {
		return nil, provider.Classify("GetInvalidation", "invalidation "+h.ID, err)
	}

	return &provider.Resource{
		Handle: h,
		Status: provider.Status(aws.ToString(out.Invalidation.Status)),
	}, nil
}
