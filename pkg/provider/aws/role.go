package aws

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/provider"
)

func (p *Provider) describeRole(ctx context.Context, cred *creds.Context, h provider.Handle) (*provider.Resource, error) {
	client := iam.NewFromConfig(cred.Config())

	out, err := client.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(h.Name),
	})
	if err != nil {
		if provider.IsNotFoundCode(err) {
			return &provider.Resource{Handle: h, Status: provider.StatusDeleted}, nil
		}
		return nil, provider.Classify("GetRole", "role "+h.Name, err)
	}

	return &provider.Resource{
		Handle: provider.Handle{
			Kind: provider.KindRole,
			ID:   aws.ToString(out.Role.Arn),
			Name: aws.ToString(out.Role.RoleName),
		},
		Status: provider.StatusActive,
	}, nil
}

func (p *Provider) deleteRole(ctx context.Context, cred *creds.Context, h provider.Handle) error {
	client := iam.NewFromConfig(cred.Config())

	_, err := client.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: aws.String(h.Name),
	})
	if err != nil {
		if provider.IsNotFoundCode(err) {
			return nil
		}
		// DeleteConflict: the role still has attached policies or is in
		// use by a function; classified retryable.
		return provider.Classify("DeleteRole", "role "+h.Name, err)
	}
	return nil
}

func (p *Provider) listRoles(ctx context.Context, cred *creds.Context, namePrefix string) ([]provider.Resource, error) {
	client := iam.NewFromConfig(cred.Config())

	var resources []provider.Resource
	paginator := iam.NewListRolesPaginator(client, &iam.ListRolesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, provider.Classify("ListRoles", "roles", err)
		}
		for _, role := range page.Roles {
			name := aws.ToString(role.RoleName)
			if !strings.Contains(name, namePrefix) {
				continue
			}
			resources = append(resources, provider.Resource{
				Handle: provider.Handle{
					Kind: provider.KindRole,
					ID:   aws.ToString(role.Arn),
					Name: name,
				},
				Status: provider.StatusActive,
			})
		}
	}

	return resources, nil
}
