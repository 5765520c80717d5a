package names

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePrefixAccepts(t *testing.T) {
	for _, prefix := range []string{"myapp", "my-app", "app2", "team-site-prod"} {
		assert.NoError(t, ValidatePrefix(prefix), prefix)
	}
}

func TestValidatePrefixRejects(t *testing.T) {
	cases := []struct {
		prefix string
		why    string
	}{
		{"ab", "too short"},
		{"My-App", "uppercase"},
		{"2app", "leading digit"},
		{"app-", "trailing hyphen"},
		{"-app", "leading hyphen"},
		{"my--app", "consecutive hyphens"},
		{"my_app", "underscore"},
		{"my.app", "dot"},
		{strings.Repeat("a", 40), "too long"},
	}
	for _, tc := range cases {
		assert.Error(t, ValidatePrefix(tc.prefix), "%s (%s)", tc.prefix, tc.why)
	}
}

func TestResourceIsDeterministic(t *testing.T) {
	assert.Equal(t, "myapp-app-api", Resource("myapp", "app", "api"))
	assert.Equal(t, Resource("myapp", "app", "api"), Resource("myapp", "app", "api"))
}

func TestStack(t *testing.T) {
	assert.Equal(t, "myapp-edge", Stack("myapp", "edge"))
}

func TestFunctionLogGroup(t *testing.T) {
	assert.Equal(t, "/aws/lambda/myapp-app-api", FunctionLogGroup("myapp-app-api"))
}
