// Package provider defines the Provisioning API the orchestrator drives.
//
// The orchestrator never talks to a cloud control plane directly; it
// creates, describes, updates, deletes, and lists resources through this
// interface, keyed by kind and handle, with the credential context passed
// explicitly on every call.
package provider

import (
	"context"

	"github.com/launchpath/stagectl/pkg/creds"
)

// Kind identifies a resource kind the orchestrator manages.
type Kind string

const (
	KindCertificate  Kind = "certificate"
	KindDistribution Kind = "distribution"
	KindFunction     Kind = "function"
	KindRole         Kind = "role"
	KindLogGroup     Kind = "log-group"
	KindBucket       Kind = "bucket"
	KindRecordSet    Kind = "record-set"
	KindInvalidation Kind = "invalidation"
)

// ConflictKinds are the kinds scanned for name collisions before a stage
// creates anything.
var ConflictKinds = []Kind{
	KindFunction,
	KindRole,
	KindLogGroup,
	KindDistribution,
	KindBucket,
}

// Status is a kind-specific resource status.
type Status string

const (
	StatusUnknown Status = ""

	// Certificate statuses
	CertificatePendingValidation Status = "PENDING_VALIDATION"
	CertificateIssued            Status = "ISSUED"
	CertificateFailed            Status = "FAILED"

	// Distribution and invalidation statuses
	DistributionInProgress Status = "InProgress"
	DistributionDeployed   Status = "Deployed"
	InvalidationInProgress Status = "InProgress"
	InvalidationCompleted  Status = "Completed"

	// Generic statuses for kinds without an asynchronous lifecycle
	StatusActive  Status = "Active"
	StatusDeleted Status = "Deleted"
)

// Handle addresses one external resource.
type Handle struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`             // provider identifier (ARN or ID)
	Name string `json:"name,omitempty"` // human-assigned name, when the kind has one
}

// ValidationRecord is the DNS challenge record proving control of a
// namespace before a certificate is issued. It is created in the target
// account's zone, not the account that owns the certificate.
type ValidationRecord struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Resource is the observed state of one external resource.
type Resource struct {
	Handle
	Status            Status             `json:"status"`
	Attributes        map[string]string  `json:"attributes,omitempty"`
	ValidationRecords []ValidationRecord `json:"validationRecords,omitempty"`
}

// Attribute keys shared between the orchestrator and implementations.
const (
	AttrDomainName     = "domainName"     // certificate domain / distribution alias
	AttrAliases        = "aliases"        // comma-separated distribution aliases
	AttrCertificateArn = "certificateArn" // certificate attached to a distribution
	AttrZoneID         = "zoneId"         // hosted zone a record set lives in
	AttrRecordType     = "recordType"     // record set type (CNAME, A)
	AttrRecordValue    = "recordValue"    // record set value
	AttrAliasTarget    = "aliasTarget"    // alias target domain for A records
	AttrPaths          = "paths"          // comma-separated invalidation paths
)

// CreateRequest describes a resource to create.
type CreateRequest struct {
	Kind       Kind
	Name       string
	Attributes map[string]string
}

// API is the Provisioning API collaborator.
type API interface {
	// Create provisions a resource and returns its initial observed state.
	Create(ctx context.Context, cred *creds.Context, req CreateRequest) (*Resource, error)

	// Describe returns the current observed state of a resource.
	Describe(ctx context.Context, cred *creds.Context, h Handle) (*Resource, error)

	// Update applies attribute changes to a resource and returns the new
	// observed state.
	Update(ctx context.Context, cred *creds.Context, h Handle, changes map[string]string) (*Resource, error)

	// Delete removes a resource. Deleting a resource that no longer
	// exists is a no-op; a delete rejected because the resource is still
	// referenced is classified RESOURCE_STILL_IN_USE.
	Delete(ctx context.Context, cred *creds.Context, h Handle) error

	// List returns resources of the kind whose name contains or starts
	// with the given prefix.
	List(ctx context.Context, cred *creds.Context, kind Kind, namePrefix string) ([]Resource, error)
}
