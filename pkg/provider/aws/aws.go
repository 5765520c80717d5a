// Package aws implements the Provisioning API against AWS.
package aws

import (
	"context"
	"fmt"

	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/provider"
)

// Provider implements provider.API on the AWS control plane. Service
// clients are built per call from the credential context's resolved
// configuration, so cross-account calls can never share ambient state.
type Provider struct{}

// NewProvider creates an AWS provider.
func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) Create(ctx context.Context, cred *creds.Context, req provider.CreateRequest) (*provider.Resource, error) {
	switch req.Kind {
	case provider.KindCertificate:
		return p.createCertificate(ctx, cred, req)
	case provider.KindRecordSet:
		return p.createRecordSet(ctx, cred, req)
	case provider.KindInvalidation:
		return p.createInvalidation(ctx, cred, req)
	default:
		// Functions, roles, log groups, buckets, and distributions are
		// provisioned declaratively through the stack engine.
		return nil, fmt.Errorf("kind %s is not created through the provisioning API", req.Kind)
	}
}

func (p *Provider) Describe(ctx context.Context, cred *creds.Context, h provider.Handle) (*provider.Resource, error) {
	switch h.Kind {
	case provider.KindCertificate:
		return p.describeCertificate(ctx, cred, h)
	case provider.KindDistribution:
		return p.describeDistribution(ctx, cred, h)
	case provider.KindInvalidation:
		return p.describeInvalidation(ctx, cred, h)
	case provider.KindRecordSet:
		return p.describeRecordSet(ctx, cred, h)
	case provider.KindFunction:
		return p.describeFunction(ctx, cred, h)
	case provider.KindRole:
		return p.describeRole(ctx, cred, h)
	case provider.KindLogGroup:
		return p.describeLogGroup(ctx, cred, h)
	case provider.KindBucket:
		return p.describeBucket(ctx, cred, h)
	default:
		return nil, fmt.Errorf("unsupported resource kind %s", h.Kind)
	}
}

func (p *Provider) Update(ctx context.Context, cred *creds.Context, h provider.Handle, changes map[string]string) (*provider.Resource, error) {
	switch h.Kind {
	case provider.KindDistribution:
		return p.updateDistribution(ctx, cred, h, changes)
	default:
		return nil, fmt.Errorf("kind %s does not support updates", h.Kind)
	}
}

func (p *Provider) Delete(ctx context.Context, cred *creds.Context, h provider.Handle) error {
	switch h.Kind {
	case provider.KindCertificate:
		return p.deleteCertificate(ctx, cred, h)
	case provider.KindRecordSet:
		return p.deleteRecordSet(ctx, cred, h)
	case provider.KindFunction:
		return p.deleteFunction(ctx, cred, h)
	case provider.KindRole:
		return p.deleteRole(ctx, cred, h)
	case provider.KindLogGroup:
		return p.deleteLogGroup(ctx, cred, h)
	case provider.KindBucket:
		return p.deleteBucket(ctx, cred, h)
	default:
		return fmt.Errorf("kind %s is not deleted through the provisioning API", h.Kind)
	}
}

func (p *Provider) List(ctx context.Context, cred *creds.Context, kind provider.Kind, namePrefix string) ([]provider.Resource, error) {
	switch kind {
	case provider.KindCertificate:
		return p.listCertificates(ctx, cred, namePrefix)
	case provider.KindDistribution:
		return p.listDistributions(ctx, cred, namePrefix)
	case provider.KindFunction:
		return p.listFunctions(ctx, cred, namePrefix)
	case provider.KindRole:
		return p.listRoles(ctx, cred, namePrefix)
	case provider.KindLogGroup:
		return p.listLogGroups(ctx, cred, namePrefix)
	case provider.KindBucket:
		return p.listBuckets(ctx, cred, namePrefix)
	default:
		return nil, fmt.Errorf("kind %s does not support listing", kind)
	}
}
