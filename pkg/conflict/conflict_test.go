package conflict

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/launchpath/stagectl/pkg/provider"
	"github.com/launchpath/stagectl/pkg/provider/providertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanFindsMatchesAcrossKinds(t *testing.T) {
	fake := providertest.NewFake()
	fake.Seed(provider.Resource{
		Handle: provider.Handle{Kind: provider.KindFunction, ID: "arn:fn", Name: "myapp-app-api"},
		Status: provider.StatusActive,
	})
	fake.Seed(provider.Resource{
		Handle: provider.Handle{Kind: provider.KindBucket, ID: "myapp-app-site", Name: "myapp-app-site"},
		Status: provider.StatusActive,
	})
	fake.Seed(provider.Resource{
		Handle: provider.Handle{Kind: provider.KindBucket, ID: "unrelated", Name: "unrelated"},
		Status: provider.StatusActive,
	})

	d := NewDetector(fake)
	matches, err := d.Scan(context.Background(), nil, "myapp", provider.ConflictKinds)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	// Sorted by kind then name.
	assert.Equal(t, provider.KindBucket, matches[0].Kind)
	assert.Equal(t, provider.KindFunction, matches[1].Kind)
}

func TestScanEmptyEnvironment(t *testing.T) {
	d := NewDetector(providertest.NewFake())
	matches, err := d.Scan(context.Background(), nil, "myapp", provider.ConflictKinds)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestScanPropagatesListErrors(t *testing.T) {
	fake := providertest.NewFake()
	fake.FailNext("List", provider.KindRole, "myapp", stderrors.New("denied"))

	d := NewDetector(fake)
	_, err := d.Scan(context.Background(), nil, "myapp", []provider.Kind{provider.KindRole})
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	out := Format([]provider.Resource{
		{Handle: provider.Handle{Kind: provider.KindBucket, ID: "myapp-site", Name: "myapp-site"}},
	})
	assert.Contains(t, out, `bucket "myapp-site"`)
}
