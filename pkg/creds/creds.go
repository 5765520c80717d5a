// Package creds models the credential contexts a deployment touches.
//
// Every provider call takes a Context value explicitly. The deployment
// uses two: the infrastructure account that owns the application
// resources, and the target account that owns the DNS zone the site is
// validated and served under. Keeping them as distinct values makes a
// swapped-account call a visible bug at the call site rather than a
// runtime surprise.
package creds

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/launchpath/stagectl/pkg/errors"
)

// Role names which account a credential context belongs to.
type Role string

const (
	// RoleInfra is the account application resources are created in.
	RoleInfra Role = "infra"

	// RoleTarget is the account that owns the public DNS zone.
	RoleTarget Role = "target"
)

// IdentityAPI is the subset of STS used to validate a context.
type IdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Context is one validated credential context.
type Context struct {
	Role    Role
	Profile string
	Region  string

	// AccountID is resolved by Validate.
	AccountID string

	cfg      aws.Config
	identity IdentityAPI
}

// Option customizes a Context during Load.
type Option func(*Context)

// WithIdentityClient overrides the STS client used by Validate. Tests use
// this to avoid network calls.
func WithIdentityClient(client IdentityAPI) Option {
	return func(c *Context) {
		c.identity = client
	}
}

// Load resolves the AWS configuration for a named profile and region.
// The returned context is not yet validated.
func Load(ctx context.Context, role Role, profile, region string, opts ...Option) (*Context, error) {
	if profile == "" {
		return nil, errors.CredentialsError(string(role), fmt.Errorf("no profile configured for the %s account", role))
	}

	var loadOpts []func(*config.LoadOptions) error
	loadOpts = append(loadOpts, config.WithSharedConfigProfile(profile))
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.CredentialsError(string(role), err)
	}

	c := &Context{
		Role:    role,
		Profile: profile,
		Region:  cfg.Region,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the resolved AWS configuration for building service clients.
func (c *Context) Config() aws.Config {
	return c.cfg
}

// Validate proves the context can authenticate by resolving the caller
// identity, and records the account ID.
func (c *Context) Validate(ctx context.Context) error {
	client := c.identity
	if client == nil {
		client = sts.NewFromConfig(c.cfg)
	}

	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return errors.CredentialsError(string(c.Role), err)
	}
	if out.Account != nil {
		c.AccountID = *out.Account
	}
	return nil
}

// ValidateAll validates every context, failing on the first that cannot
// authenticate. Both accounts must be provable before any mutating call.
func ValidateAll(ctx context.Context, contexts ...*Context) error {
	for _, c := range contexts {
		if err := c.Validate(ctx); err != nil {
			return err
		}
	}
	return nil
}
