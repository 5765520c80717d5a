package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldNested(t *testing.T) {
	doc := Document{
		"dns": map[string]interface{}{
			"zoneId": "Z123",
		},
		"distributionId": "D1",
	}

	v, ok := doc.Field("dns.zoneId")
	assert.True(t, ok)
	assert.Equal(t, "Z123", v)

	_, ok = doc.Field("dns.missing")
	assert.False(t, ok)

	_, ok = doc.Field("distributionId.not.a.map")
	assert.False(t, ok)
}

func TestFieldOrDefault(t *testing.T) {
	doc := Document{"region": "us-east-1"}

	assert.Equal(t, "us-east-1", doc.FieldOrDefault("region", "eu-west-1"))
	assert.Equal(t, "eu-west-1", doc.FieldOrDefault("fallbackRegion", "eu-west-1"))
}

func TestStringAndBool(t *testing.T) {
	doc := Document{
		"certificateArn":    "arn:aws:acm:us-east-1:123:certificate/abc",
		"readyForStageEdge": true,
		"count":             3.0,
	}

	assert.Equal(t, "arn:aws:acm:us-east-1:123:certificate/abc", doc.String("certificateArn"))
	assert.Equal(t, "", doc.String("count"), "non-string reads as empty")
	assert.True(t, doc.Bool("readyForStageEdge"))
	assert.False(t, doc.Bool("missing"))
	assert.False(t, doc.Bool("certificateArn"), "non-bool reads as false")
}

func TestReadinessFlag(t *testing.T) {
	assert.Equal(t, "readyForStageEdge", ReadinessFlag("edge"))
	assert.Equal(t, "readyForStageRelease", ReadinessFlag("release"))
	assert.Equal(t, "", ReadinessFlag(""))
}

func TestReadyFor(t *testing.T) {
	assert.True(t, Document{"readyForStageEdge": true}.ReadyFor("edge"))
	assert.False(t, Document{"readyForStageEdge": false}.ReadyFor("edge"))
	assert.False(t, Document{}.ReadyFor("edge"))
	assert.False(t, Document{"readyForStageEdge": true}.ReadyFor(""))
}
