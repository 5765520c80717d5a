package aws

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/provider"
)

func (p *Provider) describeBucket(ctx context.Context, cred *creds.Context, h provider.Handle) (*provider.Resource, error) {
	client := s3.NewFromConfig(cred.Config())

	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(h.Name),
	})
	if err != nil {
		if provider.IsNotFoundCode(err) {
			return &provider.Resource{Handle: h, Status: provider.StatusDeleted}, nil
		}
		return nil, provider.Classify("HeadBucket", "bucket "+h.Name, err)
	}

	return &provider.Resource{
		Handle: provider.Handle{
			Kind: provider.KindBucket,
			ID:   h.Name,
			Name: h.Name,
		},
		Status: provider.StatusActive,
	}, nil
}

func (p *Provider) deleteBucket(ctx context.Context, cred *creds.Context, h provider.Handle) error {
	client := s3.NewFromConfig(cred.Config())

	_, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(h.Name),
	})
	if err != nil {
		if provider.IsNotFoundCode(err) {
			return nil
		}
		// BucketNotEmpty classifies as still-in-use; the stack teardown
		// empties the bucket before this runs.
		return provider.Classify("DeleteBucket", "bucket "+h.Name, err)
	}
	return nil
}

func (p *Provider) listBuckets(ctx context.Context, cred *creds.Context, namePrefix string) ([]provider.Resource, error) {
	client := s3.NewFromConfig(cred.Config())

	out, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, provider.Classify("ListBuckets", "buckets", err)
	}

	var resources []provider.Resource
	for _, bucket := range out.Buckets {
		name := aws.ToString(bucket.Name)
		if !strings.Contains(name, namePrefix) {
			continue
		}
		resources = append(resources, provider.Resource{
			Handle: provider.Handle{
				Kind: provider.KindBucket,
				ID:   name,
				Name: name,
			},
			Status: provider.StatusActive,
		})
	}

	return resources, nil
}
