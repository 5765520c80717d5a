package stack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpath/stagectl/pkg/stack"
	_ "github.com/launchpath/stagectl/pkg/stack/cloudformation"
)

func TestCreateKnownEngine(t *testing.T) {
	engine, err := stack.Create("cloudformation")
	require.NoError(t, err)
	assert.Equal(t, "cloudformation", engine.Name())
}

func TestCreateUnknownEngine(t *testing.T) {
	_, err := stack.Create("terraform")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stack engine")
	assert.Contains(t, err.Error(), "cloudformation")
}

func TestRegisteredIsSorted(t *testing.T) {
	stack.Register("zzz-test", func() stack.Engine { return nil })
	stack.Register("aaa-test", func() stack.Engine { return nil })

	names := stack.Registered()
	require.GreaterOrEqual(t, len(names), 3)
	for i := 1; i < len(names); i++ {
		assert.LessOrEqual(t, names[i-1], names[i])
	}
}
