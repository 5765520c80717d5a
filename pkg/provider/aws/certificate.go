package aws

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	acmtypes "github.com/aws/aws-sdk-go-v2/service/acm/types"
	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/provider"
)

func (p *Provider) createCertificate(ctx context.Context, cred *creds.Context, req provider.CreateRequest) (*provider.Resource, error) {
	client := acm.NewFromConfig(cred.Config())

	domain := req.Attributes[provider.AttrDomainName]
	out, err := client.RequestCertificate(ctx, &acm.RequestCertificateInput{
		DomainName:       aws.String(domain),
		ValidationMethod: acmtypes.ValidationMethodDns,
	})
	if err != nil {
		return nil, provider.Classify("RequestCertificate", "certificate for "+domain, err)
	}

	return &provider.Resource{
		Handle: provider.Handle{
			Kind: provider.KindCertificate,
			ID:   aws.ToString(out.CertificateArn),
			Name: domain,
		},
		Status: provider.CertificatePendingValidation,
		Attributes: map[string]string{
			provider.AttrDomainName: domain,
		},
	}, nil
}

func (p *Provider) describeCertificate(ctx context.Context, cred *creds.Context, h provider.Handle) (*provider.Resource, error) {
	client := acm.NewFromConfig(cred.Config())

	out, err := client.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
		CertificateArn: aws.String(h.ID),
	})
	if err != nil {
		return nil, provider.Classify("DescribeCertificate", "certificate "+h.ID, err)
	}

	cert := out.Certificate
	res := &provider.Resource{
		Handle: provider.Handle{
			Kind: provider.KindCertificate,
			ID:   h.ID,
			Name: aws.ToString(cert.DomainName),
		},
		Status: certificateStatus(cert.Status),
		Attributes: map[string]string{
			provider.AttrDomainName: aws.ToString(cert.DomainName),
		},
	}

	// Validation records become available shortly after the request; the
	// edge stage polls Describe until they appear.
	for _, dv := range cert.DomainValidationOptions {
		if dv.ResourceRecord == nil {
			continue
		}
		res.ValidationRecords = append(res.ValidationRecords, provider.ValidationRecord{
			Name:  aws.ToString(dv.ResourceRecord.Name),
			Type:  string(dv.ResourceRecord.Type),
			Value: aws.ToString(dv.ResourceRecord.Value),
		})
	}

	return res, nil
}

func (p *Provider) deleteCertificate(ctx context.Context, cred *creds.Context, h provider.Handle) error {
	client := acm.NewFromConfig(cred.Config())

	_, err := client.DeleteCertificate(ctx, &acm.DeleteCertificateInput{
		CertificateArn: aws.String(h.ID),
	})
	if err != nil {
		if provider.IsNotFoundCode(err) {
			return nil
		}
		return provider.Classify("DeleteCertificate", "certificate "+h.ID, err)
	}
	return nil
}

func (p *Provider) listCertificates(ctx context.Context, cred *creds.Context, namePrefix string) ([]provider.Resource, error) {
	client := acm.NewFromConfig(cred.Config())

	var resources []provider.Resource
	paginator := acm.NewListCertificatesPaginator(client, &acm.ListCertificatesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, provider.Classify("ListCertificates", "certificates", err)
		}
		for _, summary := range page.CertificateSummaryList {
			domain := aws.ToString(summary.DomainName)
			if !strings.Contains(domain, namePrefix) {
				continue
			}
			resources = append(resources, provider.Resource{
				Handle: provider.Handle{
					Kind: provider.KindCertificate,
					ID:   aws.ToString(summary.CertificateArn),
					Name: domain,
				},
				Status: certificateStatus(summary.Status),
			})
		}
	}

	return resources, nil
}

func certificateStatus(s acmtypes.CertificateStatus) provider.Status {
	switch s {
	case acmtypes.CertificateStatusPendingValidation:
		return provider.CertificatePendingValidation
	case acmtypes.CertificateStatusIssued:
		return provider.CertificateIssued
	case acmtypes.CertificateStatusFailed, acmtypes.CertificateStatusValidationTimedOut:
		return provider.CertificateFailed
	default:
		return provider.Status(s)
	}
}
