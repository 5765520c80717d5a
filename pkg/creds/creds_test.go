package creds

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	stagerrors "github.com/launchpath/stagectl/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct {
	account string
	err     error
	calls   int
}

func (f *fakeIdentity) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

func testContext(role Role, id IdentityAPI) *Context {
	return &Context{
		Role:     role,
		Profile:  "test-profile",
		Region:   "us-east-1",
		identity: id,
	}
}

func TestLoadRequiresProfile(t *testing.T) {
	_, err := Load(context.Background(), RoleInfra, "", "us-east-1")
	require.Error(t, err)
	assert.Equal(t, stagerrors.ErrCodeCredentials, stagerrors.CodeOf(err))
}

func TestValidateResolvesAccount(t *testing.T) {
	c := testContext(RoleInfra, &fakeIdentity{account: "111122223333"})

	require.NoError(t, c.Validate(context.Background()))
	assert.Equal(t, "111122223333", c.AccountID)
}

func TestValidateFailureIsClassified(t *testing.T) {
	c := testContext(RoleTarget, &fakeIdentity{err: errors.New("expired token")})

	err := c.Validate(context.Background())
	require.Error(t, err)
	assert.Equal(t, stagerrors.ErrCodeCredentials, stagerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "target")
}

func TestValidateAllStopsAtFirstFailure(t *testing.T) {
	bad := &fakeIdentity{err: errors.New("denied")}
	good := &fakeIdentity{account: "444455556666"}

	infra := testContext(RoleInfra, bad)
	target := testContext(RoleTarget, good)

	err := ValidateAll(context.Background(), infra, target)
	require.Error(t, err)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 0, good.calls, "second context must not be probed after the first fails")
}
