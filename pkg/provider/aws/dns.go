package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/provider"
)

// cloudfrontHostedZoneID is the fixed zone ID alias records targeting
// CloudFront must reference.
const cloudfrontHostedZoneID = "Z2FDTNDATAQYW2"

// RecordSetID packs a record set's coordinates into an opaque handle ID.
func RecordSetID(zoneID, name, recordType string) string {
	return fmt.Sprintf("%s/%s/%s", zoneID, name, recordType)
}

func parseRecordSetID(id string) (zoneID, name, recordType string, err error) {
	parts := strings.SplitN(id, "/", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("malformed record set ID %q (want zone/name/type)", id)
	}
	return parts[0], parts[1], parts[2], nil
}

func (p *Provider) createRecordSet(ctx context.Context, cred *creds.Context, req provider.CreateRequest) (*provider.Resource, error) {
	client := route53.NewFromConfig(cred.Config())

	zoneID := req.Attributes[provider.AttrZoneID]
	recordType := req.Attributes[provider.AttrRecordType]

	rrset := &r53types.ResourceRecordSet{
		Name: aws.String(req.Name),
		Type: r53types.RRType(recordType),
	}

	if target := req.Attributes[provider.AttrAliasTarget]; target != "" {
		rrset.AliasTarget = &r53types.AliasTarget{
			DNSName:              aws.String(target),
			HostedZoneId:         aws.String(cloudfrontHostedZoneID),
			EvaluateTargetHealth: false,
		}
	} else {
		rrset.TTL = aws.Int64(300)
		rrset.ResourceRecords = []r53types.ResourceRecord{
			{Value: aws.String(req.Attributes[provider.AttrRecordValue])},
		}
	}

	// UPSERT keeps record creation idempotent across re-runs.
	_, err := client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &r53types.ChangeBatch{
			Changes: []r53types.Change{
				{
					Action:            r53types.ChangeActionUpsert,
					ResourceRecordSet: rrset,
				},
			},
		},
	})
	if err != nil {
		return nil, provider.Classify("ChangeResourceRecordSets", "record "+req.Name, err)
	}

	return &provider.Resource{
		Handle: provider.Handle{
			Kind: provider.KindRecordSet,
			ID:   RecordSetID(zoneID, req.Name, recordType),
			Name: req.Name,
		},
		Status:     provider.StatusActive,
		Attributes: req.Attributes,
	}, nil
}

func (p *Provider) describeRecordSet(ctx context.Context, cred *creds.Context, h provider.Handle) (*provider.Resource, error) {
	zoneID, name, recordType, err := parseRecordSetID(h.ID)
	if err != nil {
		return nil, err
	}

	rrset, err := p.findRecordSet(ctx, cred, zoneID, name, recordType)
	if err != nil {
		return nil, err
	}
	if rrset == nil {
		return &provider.Resource{Handle: h, Status: provider.StatusDeleted}, nil
	}

	return &provider.Resource{
		Handle: h,
		Status: provider.StatusActive,
		Attributes: map[string]string{
			provider.AttrZoneID:     zoneID,
			provider.AttrRecordType: string(rrset.Type),
		},
	}, nil
}

func (p *Provider) deleteRecordSet(ctx context.Context, cred *creds.Context, h provider.Handle) error {
	zoneID, name, recordType, err := parseRecordSetID(h.ID)
	if err != nil {
		return err
	}

	// Route53 DELETE requires the full current record set, so look it up first.
	rrset, err := p.findRecordSet(ctx, cred, zoneID, name, recordType)
	if err != nil {
		return err
	}
	if rrset == nil {
		return nil // already gone
	}

	client := route53.NewFromConfig(cred.Config())
	_, err = client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &r53types.ChangeBatch{
			Changes: []r53types.Change{
				{
					Action:            r53types.ChangeActionDelete,
					ResourceRecordSet: rrset,
				},
			},
		},
	})
	if err != nil {
		return provider.Classify("ChangeResourceRecordSets", "record "+name, err)
	}
	return nil
}

func (p *Provider) findRecordSet(ctx context.Context, cred *creds.Context, zoneID, name, recordType string) (*r53types.ResourceRecordSet, error) {
	client := route53.NewFromConfig(cred.Config())

	out, err := client.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(name),
		StartRecordType: r53types.RRType(recordType),
		MaxItems:        aws.Int32(1),
	})
	if err != nil {
		return nil, provider.Classify("ListResourceRecordSets", "record "+name, err)
	}

	for _, rrset := range out.ResourceRecordSets {
		if recordNamesEqual(aws.ToString(rrset.Name), name) && string(rrset.Type) == recordType {
			return &rrset, nil
		}
	}
	return nil, nil
}

// recordNamesEqual compares DNS names ignoring the trailing dot Route53
// appends.
func recordNamesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}
