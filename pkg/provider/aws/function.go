package aws

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/provider"
)

func (p *Provider) describeFunction(ctx context.Context, cred *creds.Context, h provider.Handle) (*provider.Resource, error) {
	client := lambda.NewFromConfig(cred.Config())

	out, err := client.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(h.Name),
	})
	if err != nil {
		if provider.IsNotFoundCode(err) {
			return &provider.Resource{Handle: h, Status: provider.StatusDeleted}, nil
		}
		return nil, provider.Classify("GetFunction", "function "+h.Name, err)
	}

	return &provider.Resource{
		Handle: provider.Handle{
			Kind: provider.KindFunction,
			ID:   aws.ToString(out.Configuration.FunctionArn),
			Name: aws.ToString(out.Configuration.FunctionName),
		},
		Status: provider.StatusActive,
	}, nil
}

func (p *Provider) deleteFunction(ctx context.Context, cred *creds.Context, h provider.Handle) error {
	client := lambda.NewFromConfig(cred.Config())

	_, err := client.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: aws.String(h.Name),
	})
	if err != nil {
		if provider.IsNotFoundCode(err) {
			return nil
		}
		return provider.Classify("DeleteFunction", "function "+h.Name, err)
	}
	return nil
}

func (p *Provider) listFunctions(ctx context.Context, cred *creds.Context, namePrefix string) ([]provider.Resource, error) {
	client := lambda.NewFromConfig(cred.Config())

	var resources []provider.Resource
	paginator := lambda.NewListFunctionsPaginator(client, &lambda.ListFunctionsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, provider.Classify("ListFunctions", "functions", err)
		}
		for _, fn := range page.Functions {
			name := aws.ToString(fn.FunctionName)
			if !strings.Contains(name, namePrefix) {
				continue
			}
			resources = append(resources, provider.Resource{
				Handle: provider.Handle{
					Kind: provider.KindFunction,
					ID:   aws.ToString(fn.FunctionArn),
					Name: name,
				},
				Status: provider.StatusActive,
			})
		}
	}

	return resources, nil
}
