package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/provider"
)

func (p *Provider) describeLogGroup(ctx context.Context, cred *creds.Context, h provider.Handle) (*provider.Resource, error) {
	groups, err := p.listLogGroups(ctx, cred, h.Name)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Name == h.Name {
			return &g, nil
		}
	}
	return &provider.Resource{Handle: h, Status: provider.StatusDeleted}, nil
}

func (p *Provider) deleteLogGroup(ctx context.Context, cred *creds.Context, h provider.Handle) error {
	client := cloudwatchlogs.NewFromConfig(cred.Config())

	_, err := client.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: aws.String(h.Name),
	})
	if err != nil {
		if provider.IsNotFoundCode(err) {
			return nil
		}
		return provider.Classify("DeleteLogGroup", "log group "+h.Name, err)
	}
	return nil
}

func (p *Provider) listLogGroups(ctx context.Context, cred *creds.Context, namePrefix string) ([]provider.Resource, error) {
	client := cloudwatchlogs.NewFromConfig(cred.Config())

	var resources []provider.Resource
	paginator := cloudwatchlogs.NewDescribeLogGroupsPaginator(client, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(namePrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, provider.Classify("DescribeLogGroups", "log groups", err)
		}
		for _, group := range page.LogGroups {
			resources = append(resources, provider.Resource{
				Handle: provider.Handle{
					Kind: provider.KindLogGroup,
					ID:   aws.ToString(group.Arn),
					Name: aws.ToString(group.LogGroupName),
				},
				Status: provider.StatusActive,
			})
		}
	}

	return resources, nil
}
