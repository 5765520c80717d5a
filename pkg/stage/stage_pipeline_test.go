package stage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpath/stagectl/pkg/stage"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"app", "app"},
		{"App", "app"},
		{"a", "app"},
		{"B", "edge"},
		{"edge", "edge"},
		{"c", "release"},
		{" release ", "release"},
	}
	for _, tc := range cases {
		got, err := stage.Normalize(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}

	_, err := stage.Normalize("staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging")
}

func TestNextAndPrevious(t *testing.T) {
	assert.Equal(t, "edge", stage.Next("app"))
	assert.Equal(t, "release", stage.Next("edge"))
	assert.Equal(t, "", stage.Next("release"))

	assert.Equal(t, "", stage.Previous("app"))
	assert.Equal(t, "app", stage.Previous("edge"))
	assert.Equal(t, "edge", stage.Previous("release"))
}

func TestCompletionFlag(t *testing.T) {
	assert.Equal(t, "readyForStageEdge", stage.CompletionFlag("app"))
	assert.Equal(t, "readyForStageRelease", stage.CompletionFlag("edge"))
	assert.Equal(t, "complete", stage.CompletionFlag("release"))
}
